package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocklife/internal/drive"
	"github.com/andresuchdata/stocklife/internal/stock"
	"github.com/andresuchdata/stocklife/internal/storage"
	"github.com/andresuchdata/stocklife/internal/velocity"
	"github.com/andresuchdata/stocklife/pkg/logger"
)

// acceptSAPFile keeps the files the stock and velocity loaders read.
func acceptSAPFile(name string) bool {
	return stock.IsExport(name) || velocity.IsExport(name)
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Download SAP exports into the local SAP directory",
		Subcommands: []*cli.Command{
			{
				Name:  "drive",
				Usage: "Download exports from a Google Drive folder",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "folder-id",
						Usage:   "Drive folder id holding the exports",
						EnvVars: []string{"SAP_DRIVE_FOLDER_ID"},
					},
					&cli.StringFlag{
						Name:  "folder-path",
						Usage: "Resolve the folder by a slash separated path instead of an id",
					},
				},
				Action: runSyncDrive,
			},
			{
				Name:  "bucket",
				Usage: "Download exports from the object storage bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Object key prefix; defaults to STORAGE_EXPORTS_PREFIX",
					},
				},
				Action: runSyncBucket,
			},
		},
	}
}

func runSyncDrive(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Drive.CredentialsJSON == "" {
		return fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON is not set")
	}

	svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	if path := c.String("folder-path"); path != "" {
		if folderID, err = svc.FindFolderByPath(c.Context, path); err != nil {
			return err
		}
	}
	if folderID == "" {
		return fmt.Errorf("no drive folder given: set --folder-id or --folder-path")
	}

	res, err := drive.NewSyncer(svc).Sync(c.Context, folderID, cfg.Paths.SAPDir, acceptSAPFile)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("downloaded", len(res.Downloaded)).Int("unchanged", len(res.Unchanged)).
		Str("dir", cfg.Paths.SAPDir).Msg("drive sync finished")
	return nil
}

func runSyncBucket(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Storage.Enabled {
		return fmt.Errorf("object storage is disabled: set STORAGE_ENABLED=true")
	}

	client, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		return err
	}
	prefix := c.String("prefix")
	if prefix == "" {
		prefix = cfg.Storage.ExportsPrefix
	}

	downloaded, err := storage.SyncPrefix(c.Context, client, prefix, cfg.Paths.SAPDir, acceptSAPFile)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("downloaded", len(downloaded)).Str("prefix", prefix).
		Str("dir", cfg.Paths.SAPDir).Msg("bucket sync finished")
	return nil
}
