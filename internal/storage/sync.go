package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// SyncPrefix downloads every object under prefix whose base name passes
// accept into destDir, flattening the key to its base name. It returns the
// local paths, sorted.
func SyncPrefix(ctx context.Context, client ObjectStorage, prefix, destDir string, accept func(name string) bool) ([]string, error) {
	listPrefix := strings.TrimSpace(prefix)
	objects, err := client.ListObjects(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
	}

	var localPaths []string
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") || (accept != nil && !accept(name)) {
			continue
		}
		localPath := filepath.Join(destDir, name)
		if err := client.DownloadObject(ctx, obj.Key, localPath); err != nil {
			return nil, err
		}
		log.Debug().Str("key", obj.Key).Int64("size", obj.Size).Msg("object downloaded")
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

// ObjectKey joins prefix and name into an object key.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
