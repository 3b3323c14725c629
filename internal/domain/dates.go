package domain

import "time"

// DateLayout is the ISO layout used across the API and the database.
const DateLayout = "2006-01-02"

// CompactDateLayout is the layout SAP uses in export file names.
const CompactDateLayout = "20060102"

// Day truncates t to midnight UTC, keeping the calendar date it carries.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses either an ISO or a compact date.
func ParseDay(s string) (time.Time, error) {
	layout := DateLayout
	if len(s) == len(CompactDateLayout) {
		layout = CompactDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
