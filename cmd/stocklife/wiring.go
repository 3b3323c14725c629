package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/cache"
	"github.com/andresuchdata/stocklife/internal/config"
	"github.com/andresuchdata/stocklife/internal/demand"
	"github.com/andresuchdata/stocklife/internal/lifetime"
	"github.com/andresuchdata/stocklife/internal/pipeline"
	"github.com/andresuchdata/stocklife/internal/report"
	"github.com/andresuchdata/stocklife/internal/repository/postgres"
	"github.com/andresuchdata/stocklife/internal/service"
	"github.com/andresuchdata/stocklife/internal/stock"
	"github.com/andresuchdata/stocklife/internal/storage"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	stock   *stock.Store
	runner  *pipeline.Runner
	service *service.LifetimeService

	runs    *postgres.RunRepository // nil unless DB_ENABLED
	db      *postgres.DB
	pool    *pgxpool.Pool
	storage storage.ObjectStorage
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	// stdout carries command output
	logger.Configure(os.Stderr, format, cfg.LogLevel)
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func estimatorConfig(cfg config.EstimatorConfig) (lifetime.Config, error) {
	mode, err := lifetime.ParseWindowMode(cfg.WindowMode)
	if err != nil {
		return lifetime.Config{}, err
	}
	return lifetime.Config{
		Mode:              mode,
		WindowDays:        cfg.WindowDays,
		Sentinel:          cfg.Sentinel,
		MaxSimulationDays: cfg.MaxSimulationDays,
	}, nil
}

// newApp wires the estimator stack. Callers must Close the result.
func newApp(c *cli.Context) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	ctx := c.Context
	estCfg, err := estimatorConfig(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	a.stock, err = stock.NewStore(stock.DirLoader(cfg.Paths.SAPDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load stock exports: %w", err)
	}

	var recorder pipeline.RunRecorder
	if cfg.Database.Enabled {
		a.db, err = postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := a.db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.runs = postgres.NewRunRepository(a.db)
		recorder = a.runs
	}

	demandStore, err := a.demandStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.storage = client
	}

	lifetimeCache, err := cache.NewLifetimeCache(cfg.Cache, cacheScope(estCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to init cache: %w", err)
	}

	a.runner = pipeline.NewRunner(
		lifetime.NewEstimator(estCfg),
		a.stock,
		demandStore,
		recorder,
		pipeline.Config{WorkerCount: cfg.Estimator.Workers},
	)
	writer := report.NewXLSXWriter(cfg.Paths.ReportDir, a.storage, cfg.Storage.ReportsPrefix)
	a.service = service.NewLifetimeService(a.runner, a.stock, lifetimeCache, writer, cfg.Paths.SAPDir)

	ok = true
	return a, nil
}

func (a *app) demandStore(ctx context.Context) (demand.Store, error) {
	if a.cfg.Estimator.DemandSource != "postgres" {
		return demand.NewFileStore(a.cfg.Paths.DemandDir), nil
	}
	pool, err := postgres.NewPool(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return postgres.NewDemandRepository(pool), nil
}

// cacheScope keeps summaries from different estimator settings apart.
func cacheScope(cfg lifetime.Config) string {
	return fmt.Sprintf("%s-%d-%d", cfg.Mode, cfg.WindowDays, cfg.Sentinel)
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
