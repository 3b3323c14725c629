package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Write the stock coverage workbook for a reference date",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "date",
				Usage: "Reference date (YYYY-MM-DD); defaults to the latest snapshot",
			},
			&cli.StringSliceFlag{
				Name:  "material",
				Usage: "Limit the workbook to these material ids, repeatable",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter domain.LifetimeFilter
			if raw := c.String("date"); raw != "" {
				if filter.Date, err = domain.ParseDay(raw); err != nil {
					return fmt.Errorf("invalid --date %q: %w", raw, err)
				}
			}
			if filter.Materials, err = parseMaterials(c.StringSlice("material")); err != nil {
				return err
			}

			path, err := a.service.GenerateReport(c.Context, filter)
			if err != nil {
				return err
			}
			logger.Log.Info().Str("path", path).Bool("uploaded", a.storage != nil).Msg("report written")
			fmt.Fprintln(c.App.Writer, path)
			return nil
		},
	}
}
