package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// Syncer mirrors the SAP export files of a Drive folder into a local directory.
type Syncer struct {
	source Source
}

// NewSyncer creates a new Syncer.
func NewSyncer(source Source) *Syncer {
	return &Syncer{source: source}
}

// SyncResult lists what a sync did, by file name.
type SyncResult struct {
	Downloaded []string `json:"downloaded"`
	Unchanged  []string `json:"unchanged"`
}

// Sync downloads every file of folderID accepted by accept into destDir.
// Files already present locally with the same size are left alone.
func (s *Syncer) Sync(ctx context.Context, folderID, destDir string, accept func(name string) bool) (*SyncResult, error) {
	if destDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := s.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Downloaded: []string{}, Unchanged: []string{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.IsFolder() || (accept != nil && !accept(f.Name)) {
			continue
		}

		localPath := filepath.Join(destDir, filepath.Base(f.Name))
		if info, err := os.Stat(localPath); err == nil && f.Size > 0 && info.Size() == f.Size {
			res.Unchanged = append(res.Unchanged, f.Name)
			continue
		}
		if err := s.download(ctx, f, localPath); err != nil {
			return nil, err
		}
		log.Info().Str("file", f.Name).Int64("size", f.Size).Msg("drive export downloaded")
		res.Downloaded = append(res.Downloaded, f.Name)
	}

	sort.Strings(res.Downloaded)
	sort.Strings(res.Unchanged)
	return res, nil
}

// download writes to a temp file first so a failed transfer never leaves a
// truncated export behind.
func (s *Syncer) download(ctx context.Context, f *File, localPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create local file for %s: %w", f.Name, err)
	}
	defer os.Remove(tmp.Name())

	if err := s.source.DownloadFile(ctx, f.ID, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), localPath)
}
