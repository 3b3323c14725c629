package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/pipeline"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate days of stock coverage for one or more reference dates",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "date",
				Usage: "Reference date (YYYY-MM-DD), repeatable; defaults to the latest snapshot",
			},
			&cli.StringFlag{Name: "from", Usage: "First date of a range (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Last date of a range (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "all-dates", Usage: "Estimate every date with a stock snapshot"},
			&cli.StringSliceFlag{
				Name:  "material",
				Usage: "Material id to estimate, repeatable; defaults to every material with demand",
			},
			&cli.BoolFlag{Name: "json", Usage: "Print the summaries as JSON"},
			&cli.BoolFlag{Name: "skips", Usage: "List skipped materials and their reason"},
		},
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	dates, err := parseDates(c.StringSlice("date"), c.String("from"), c.String("to"))
	if err != nil {
		return err
	}
	if c.Bool("all-dates") {
		dates = append(dates, a.stock.Snapshot().Dates()...)
	}
	if len(dates) == 0 {
		latest, err := a.service.ResolveDate(time.Time{})
		if err != nil {
			return err
		}
		dates = []time.Time{latest}
	}
	materials, err := parseMaterials(c.StringSlice("material"))
	if err != nil {
		return err
	}

	start := time.Now()
	batches, err := pipeline.NewOrchestrator(a.runner).RunDates(c.Context, dates, materials)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("dates", len(batches)).Dur("duration", time.Since(start)).Msg("estimation finished")

	summaries := make([]domain.LifetimeSummary, 0, len(batches))
	for _, b := range batches {
		summaries = append(summaries, b.Summary())
	}
	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	return printSummaries(out, summaries, c.Bool("skips"))
}

func printSummaries(out io.Writer, summaries []domain.LifetimeSummary, withSkips bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "date %s: %d estimated, %d skipped\n", s.Date, s.Estimated, s.Skipped)
		fmt.Fprintln(tw, "MATERIAL\tDAYS")
		for _, e := range s.Estimates {
			fmt.Fprintf(tw, "%d\t%d\n", e.MaterialID, e.DaysOfCoverage)
		}
		if withSkips && len(s.Skips) > 0 {
			fmt.Fprintln(tw, "SKIPPED\tREASON")
			for _, sk := range s.Skips {
				fmt.Fprintf(tw, "%d\t%s\n", sk.MaterialID, sk.Reason)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// parseDates merges explicit dates with an optional from/to range.
func parseDates(raw []string, from, to string) ([]time.Time, error) {
	var dates []time.Time
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			d, err := domain.ParseDay(part)
			if err != nil {
				return nil, fmt.Errorf("invalid --date %q: %w", part, err)
			}
			dates = append(dates, d)
		}
	}

	if from == "" && to == "" {
		return dates, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	start, err := domain.ParseDay(from)
	if err != nil {
		return nil, fmt.Errorf("invalid --from %q: %w", from, err)
	}
	end, err := domain.ParseDay(to)
	if err != nil {
		return nil, fmt.Errorf("invalid --to %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return append(dates, pipeline.DateRange(start, end)...), nil
}

func parseMaterials(raw []string) ([]domain.MaterialID, error) {
	var ids []domain.MaterialID
	seen := make(map[domain.MaterialID]struct{})
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --material %q", part)
			}
			if _, ok := seen[domain.MaterialID(id)]; ok {
				continue
			}
			seen[domain.MaterialID(id)] = struct{}{}
			ids = append(ids, domain.MaterialID(id))
		}
	}
	return ids, nil
}
