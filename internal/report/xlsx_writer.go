package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/storage"
)

const (
	sheetName = "Stock"
	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []interface{}{"Material", "Dias Stock", "Stock", "VMD", "Cobertura VMD"}

// FileName returns the report name for date.
func FileName(date time.Time) string {
	return "Comprobacion_stock_" + date.Format(domain.CompactDateLayout) + ".xlsx"
}

// XLSXWriter renders report rows as a workbook, saves it under dir and
// optionally uploads it.
type XLSXWriter struct {
	dir      string
	uploader storage.ObjectStorage
	prefix   string
}

// NewXLSXWriter creates a writer saving into dir. uploader may be nil.
func NewXLSXWriter(dir string, uploader storage.ObjectStorage, prefix string) *XLSXWriter {
	return &XLSXWriter{dir: dir, uploader: uploader, prefix: prefix}
}

// Render writes the workbook to w.
func Render(w io.Writer, rows []domain.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			int64(r.MaterialID),
			r.DaysOfCoverage,
			r.Stock,
			r.VMD.InexactFloat64(),
			r.VMDCover.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// Write saves the report of date and returns its path.
func (x *XLSXWriter) Write(ctx context.Context, date time.Time, rows []domain.ReportRow) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, rows); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir %s: %w", x.dir, err)
	}
	name := FileName(date)
	path := filepath.Join(x.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("rows", len(rows)).Msg("report written")

	if x.uploader != nil {
		key := storage.ObjectKey(x.prefix, name)
		if err := x.uploader.UploadObject(ctx, key, buf.Bytes(), ContentType); err != nil {
			return path, err
		}
		log.Info().Str("key", key).Msg("report uploaded")
	}
	return path, nil
}
