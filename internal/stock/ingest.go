package stock

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// InvalidSourceFileError aborts an ingestion run; File names the export that
// could not be read.
type InvalidSourceFileError struct {
	File string
	Err  error
}

func (e *InvalidSourceFileError) Error() string {
	return fmt.Sprintf("invalid stock source file %s: %v", e.File, e.Err)
}

func (e *InvalidSourceFileError) Unwrap() error {
	return e.Err
}

// exportFormat describes one family of SAP stock exports.
type exportFormat struct {
	name           string
	prefix         string
	materialColumn string
	encoding       encoding.Encoding
	exportDate     func(base string) (string, error)
}

var exportFormats = []exportFormat{
	{
		// Stock_<anything>_YYYYMMDD.csv
		name:           "stock",
		prefix:         "Stock",
		materialColumn: "MATNR",
		encoding:       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
		exportDate: func(base string) (string, error) {
			parts := strings.Split(base, "_")
			return strings.Split(parts[len(parts)-1], ".")[0], nil
		},
	},
	{
		// ZMM_PBL_ENV_ART-<...>-YYYYMMDD-<seq>.csv
		name:           "env_art",
		prefix:         "ZMM_PBL_ENV_ART",
		materialColumn: "CODART",
		encoding:       charmap.ISO8859_1,
		exportDate: func(base string) (string, error) {
			parts := strings.Split(strings.Split(base, ".")[0], "-")
			if len(parts) < 2 {
				return "", fmt.Errorf("no date segment in %s", base)
			}
			return parts[len(parts)-2], nil
		},
	},
}

const stockColumn = "STOCK"

// classify returns the export format of a file name, if any.
func classify(base string) (exportFormat, bool) {
	for _, f := range exportFormats {
		if strings.HasPrefix(base, f.prefix) {
			return f, true
		}
	}
	return exportFormat{}, false
}

// SnapshotDate returns the stock date carried by an export file name. Exports
// are generated the morning after the stock they describe.
func SnapshotDate(path string) (time.Time, error) {
	base := filepath.Base(path)
	f, ok := classify(base)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is not a stock export", base)
	}
	raw, err := f.exportDate(base)
	if err != nil {
		return time.Time{}, err
	}
	exported, err := domain.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable export date %q: %w", raw, err)
	}
	return exported.AddDate(0, 0, -1), nil
}

// IsExport reports whether a file name belongs to a known stock export.
func IsExport(path string) bool {
	_, ok := classify(filepath.Base(path))
	return ok
}

// LoadDir reads every stock export in dir. Unrelated files are ignored; the
// first unreadable export aborts the load.
func LoadDir(dir string) ([]domain.StockSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsExport(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var all []domain.StockSnapshot
	for _, name := range names {
		rows, err := ReadExport(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", name).Int("rows", len(rows)).Msg("stock export loaded")
		all = append(all, rows...)
	}
	log.Info().Str("dir", dir).Int("files", len(names)).Int("rows", len(all)).Msg("stock exports loaded")
	return all, nil
}

// ReadExport parses a single stock export into snapshot rows.
func ReadExport(path string) ([]domain.StockSnapshot, error) {
	base := filepath.Base(path)
	f, ok := classify(base)
	if !ok {
		return nil, &InvalidSourceFileError{File: base, Err: fmt.Errorf("unknown export type")}
	}
	date, err := SnapshotDate(base)
	if err != nil {
		return nil, &InvalidSourceFileError{File: base, Err: err}
	}

	var records [][]string
	if strings.EqualFold(filepath.Ext(base), ".xlsx") {
		records, err = readXLSXRecords(path)
	} else {
		records, err = readCSVRecords(path, f.encoding)
	}
	if err != nil {
		return nil, &InvalidSourceFileError{File: base, Err: err}
	}

	rows, err := parseRecords(records, f.materialColumn, date)
	if err != nil {
		return nil, &InvalidSourceFileError{File: base, Err: err}
	}
	return rows, nil
}

func readCSVRecords(path string, enc encoding.Encoding) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if enc != nil {
		r = transform.NewReader(file, unicode.BOMOverride(enc.NewDecoder()))
	}
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func parseRecords(records [][]string, materialColumn string, date time.Time) ([]domain.StockSnapshot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty export")
	}
	header := records[0]
	idxMaterial, idxStock := -1, -1
	for i, h := range header {
		switch strings.ToUpper(strings.Trim(strings.TrimSpace(h), "\ufeff")) {
		case materialColumn:
			idxMaterial = i
		case stockColumn:
			idxStock = i
		}
	}
	if idxMaterial < 0 || idxStock < 0 {
		return nil, fmt.Errorf("missing %s or %s column in header %v", materialColumn, stockColumn, header)
	}

	rows := make([]domain.StockSnapshot, 0, len(records)-1)
	for n, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		line := n + 2
		if idxMaterial >= len(record) || idxStock >= len(record) {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", line, max(idxMaterial, idxStock)+1, len(record))
		}
		material, err := strconv.ParseInt(strings.TrimSpace(record[idxMaterial]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid material %q", line, record[idxMaterial])
		}
		qty, err := parseQuantity(record[idxStock])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, domain.StockSnapshot{
			MaterialID: domain.MaterialID(material),
			Date:       date,
			Quantity:   qty,
		})
	}
	return rows, nil
}

// parseQuantity accepts integer or decimal notation and truncates to units.
func parseQuantity(raw string) (int64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("invalid stock %q", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative stock %q", raw)
	}
	return d.IntPart(), nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
