package demand

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// FileSuffix names the per-material demand files: <material>_demanda.csv.
const FileSuffix = "_demanda.csv"

// FileStore reads one CSV file per material from a directory.
// Each file has a date;demand header followed by one row per day.
type FileStore struct {
	dir string
}

// NewFileStore creates a store over dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// FileName returns the file holding the series of id.
func FileName(id domain.MaterialID) string {
	return strconv.FormatInt(int64(id), 10) + FileSuffix
}

// SeriesFor reads the series of id. Points keep the file order.
func (s *FileStore) SeriesFor(ctx context.Context, id domain.MaterialID) (domain.DemandSeries, error) {
	if err := ctx.Err(); err != nil {
		return domain.DemandSeries{}, err
	}
	path := filepath.Join(s.dir, FileName(id))
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DemandSeries{}, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	if err != nil {
		return domain.DemandSeries{}, err
	}
	defer f.Close()

	points, err := ReadSeries(f)
	if err != nil {
		return domain.DemandSeries{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return domain.DemandSeries{MaterialID: id, Points: points}, nil
}

// AllMaterialIDs lists the materials that have a demand file.
func (s *FileStore) AllMaterialIDs(ctx context.Context) ([]domain.MaterialID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list demand dir %s: %w", s.dir, err)
	}
	ids := make([]domain.MaterialID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		raw := strings.TrimSuffix(e.Name(), FileSuffix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn().Str("file", e.Name()).Msg("ignoring demand file without numeric material prefix")
			continue
		}
		ids = append(ids, domain.MaterialID(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ReadSeries parses date;demand rows. A header line is optional, blank lines
// are ignored and decimal commas are accepted.
func ReadSeries(r io.Reader) ([]domain.DemandPoint, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var points []domain.DemandPoint
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected date;demand, got %v", line, record)
		}
		rawDate := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if line == 1 && strings.EqualFold(rawDate, "date") {
			continue
		}
		date, err := domain.ParseDay(rawDate)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[0])
		}
		value, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(record[1]), ",", ".", 1))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid demand %q", line, record[1])
		}
		points = append(points, domain.DemandPoint{Date: date, Demand: value.InexactFloat64()})
	}
	return points, nil
}

// WriteSeries writes points in the format ReadSeries understands.
func WriteSeries(w io.Writer, points []domain.DemandPoint) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'
	if err := writer.Write([]string{"date", "demand"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			p.Date.Format(domain.DateLayout),
			strconv.FormatFloat(p.Demand, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
