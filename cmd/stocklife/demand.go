package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/demand"
	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/repository/postgres"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

func demandCommand() *cli.Command {
	return &cli.Command{
		Name:  "demand",
		Usage: "Manage the demand history",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Copy <material>_demanda.csv files into Postgres",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory holding the demand files; defaults to DEMAND_DIR",
					},
				},
				Action: runDemandImport,
			},
		},
	}
}

func runDemandImport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is disabled: set DB_ENABLED=true")
	}
	dir := c.String("dir")
	if dir == "" {
		dir = cfg.Paths.DemandDir
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(c.Context); err != nil {
		return err
	}

	pool, err := postgres.NewPool(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	files := demand.NewFileStore(dir)
	ids, err := files.AllMaterialIDs(c.Context)
	if err != nil {
		return err
	}

	series := make([]domain.DemandSeries, 0, len(ids))
	for _, id := range ids {
		s, err := files.SeriesFor(c.Context, id)
		if errors.Is(err, demand.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("material %d: %w", id, err)
		}
		series = append(series, s)
	}

	rows, err := postgres.NewDemandRepository(pool).ImportSeries(c.Context, series)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("materials", len(series)).Int64("rows", rows).Str("dir", dir).Msg("demand imported")
	return nil
}
