package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	objects map[string][]byte
}

func (m *memoryStorage) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStorage) DownloadObject(_ context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, m.objects[key], 0o644)
}

func (m *memoryStorage) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func TestSyncPrefix(t *testing.T) {
	store := &memoryStorage{objects: map[string][]byte{
		"sap/2023/Stock_CENTRO_20230601.csv":       []byte("a"),
		"sap/2023/MARA-DATA-VMD_20230531-0001.csv": []byte("b"),
		"sap/readme.txt":                           []byte("c"),
		"reports/Comprobacion_stock_20230531.xlsx": []byte("d"),
	}}
	dest := t.TempDir()

	paths, err := SyncPrefix(context.Background(), store, "sap/", dest, func(name string) bool {
		return strings.HasSuffix(name, ".csv")
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dest, "MARA-DATA-VMD_20230531-0001.csv"),
		filepath.Join(dest, "Stock_CENTRO_20230601.csv"),
	}, paths)
	data, err := os.ReadFile(filepath.Join(dest, "Stock_CENTRO_20230601.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "reports/x.xlsx", ObjectKey("reports/", "x.xlsx"))
	assert.Equal(t, "reports/x.xlsx", ObjectKey("/reports", "/x.xlsx"))
	assert.Equal(t, "x.xlsx", ObjectKey("", "x.xlsx"))
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://minio.local:9000", false, "minio.local:9000", true},
		{"http://minio.local:9000/", true, "minio.local:9000", false},
		{"minio.local:9000", true, "minio.local:9000", true},
		{"minio.local:9000", false, "minio.local:9000", false},
	}
	for _, tt := range tests {
		host, secure := splitEndpoint(tt.raw, tt.useSSL)
		assert.Equal(t, tt.wantHost, host, tt.raw)
		assert.Equal(t, tt.wantSecure, secure, tt.raw)
	}
}
