package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/api"
	"github.com/andresuchdata/stocklife/internal/drive"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the stock lifetime HTTP API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	services := &api.Services{Lifetime: a.service}
	if a.runs != nil {
		services.Runs = a.runs
	}
	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		syncer := drive.NewSyncer(driveService)
		services.Drive = drive.NewHandler(driveService, cfg.Drive.FolderID, func(ctx context.Context) (*drive.SyncResult, error) {
			res, err := syncer.Sync(ctx, cfg.Drive.FolderID, cfg.Paths.SAPDir, acceptSAPFile)
			if err != nil {
				return nil, err
			}
			if len(res.Downloaded) > 0 {
				if err := a.service.Refresh(ctx); err != nil {
					return nil, err
				}
			}
			return res, nil
		})
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Bool("drive", services.Drive != nil).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logger.Log.Info().Msg("Server exiting")
	return nil
}
