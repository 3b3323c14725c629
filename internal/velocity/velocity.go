// Package velocity loads the average daily sales (VMD) SAP publishes per material.
package velocity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// ErrNoVelocityFile means SAP published no VMD export for the date.
var ErrNoVelocityFile = errors.New("velocity export not found")

const (
	materialColumn = "MATNR"
	velocityColumn = "ZZVMD"
)

// Table maps a material to its VMD. Missing materials read as zero.
type Table map[domain.MaterialID]decimal.Decimal

// Of returns the VMD of id, zero when unknown.
func (t Table) Of(id domain.MaterialID) decimal.Decimal {
	if v, ok := t[id]; ok {
		return v
	}
	return decimal.Zero
}

// FileName returns the VMD export name for date.
func FileName(date time.Time) string {
	return "MARA-DATA-VMD_" + date.Format(domain.CompactDateLayout) + "-0001.csv"
}

// IsExport reports whether name looks like a VMD export.
func IsExport(name string) bool {
	return strings.HasPrefix(name, "MARA-DATA-VMD_") && strings.HasSuffix(strings.ToLower(name), ".csv")
}

// Load reads the VMD export of date from dir.
func Load(dir string, date time.Time) (Table, error) {
	path := filepath.Join(dir, FileName(date))
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoVelocityFile, filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	log.Debug().Str("file", filepath.Base(path)).Int("materials", len(table)).Msg("velocity export loaded")
	return table, nil
}

// Read parses a ;-separated VMD export. Rows whose material is not purely
// numeric (service codes, totals) are dropped.
func Read(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	idxMaterial, idxVelocity := -1, -1
	for i, h := range header {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case materialColumn:
			idxMaterial = i
		case velocityColumn:
			idxVelocity = i
		}
	}
	if idxMaterial < 0 || idxVelocity < 0 {
		return nil, fmt.Errorf("missing %s or %s column in header %v", materialColumn, velocityColumn, header)
	}

	table := make(Table)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if idxMaterial >= len(record) || idxVelocity >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[idxMaterial])
		if !isDigits(raw) {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid material %q", line, raw)
		}
		v := strings.Replace(strings.TrimSpace(record[idxVelocity]), ",", ".", 1)
		vmd := decimal.Zero
		if v != "" {
			vmd, err = decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid VMD %q", line, record[idxVelocity])
			}
		}
		table[domain.MaterialID(id)] = vmd
	}
	return table, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
