package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"mastermind/internal/domain"
)

// Compile-time interface checks.
var _ TickStore = (*ParquetStore)(nil)
var _ BrickStore = (*ParquetStore)(nil)

// ParquetStore implements TickStore and BrickStore using Parquet files on
// disk. Ticks are partitioned by symbol and date, bricks by symbol and year.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// TickRecord is the Parquet schema for raw tick data.
type TickRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
	Size      int64   `parquet:"size"`
	Exchange  string  `parquet:"exchange"`
	ID        string  `parquet:"id"`
}

// BrickRecord is the Parquet schema for finalized Renko bricks.
type BrickRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	Close     float64 `parquet:"close"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	IsUp      bool    `parquet:"is_up"`
}

// ---------------------------------------------------------------------------
// TickStore implementation
// ---------------------------------------------------------------------------

// WriteTicks writes ticks to Parquet files organized by symbol and date.
// Layout: <DataDir>/ticks/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteTicks(_ context.Context, ticks []domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		symbol string
		date   string // YYYY-MM-DD
	}
	groups := make(map[key][]TickRecord)
	for _, t := range ticks {
		k := key{symbol: t.Symbol, date: t.Timestamp.Format("2006-01-02")}
		groups[k] = append(groups[k], TickRecord{
			Symbol:    t.Symbol,
			Timestamp: t.Timestamp.UnixMilli(),
			Price:     t.Price,
			Size:      t.Size,
			Exchange:  t.Exchange,
			ID:        t.ID,
		})
	}

	for k, records := range groups {
		t, _ := time.Parse("2006-01-02", k.date)
		path := s.tickPath(k.symbol, t)

		existing, _ := readParquetFile[TickRecord](path)
		merged := mergeTickRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing ticks for %s/%s: %w", k.symbol, k.date, err)
		}
	}
	return nil
}

// ReadTicks reads tick data for the given symbol and time range.
func (s *ParquetStore) ReadTicks(_ context.Context, symbol string, start, end time.Time) ([]domain.Tick, error) {
	var ticks []domain.Tick
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		path := s.tickPath(symbol, d)
		records, err := readParquetFile[TickRecord](path)
		if err != nil {
			// No file for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if inRange(ts, start, end) {
				ticks = append(ticks, domain.Tick{
					Symbol:    r.Symbol,
					Timestamp: ts,
					Price:     r.Price,
					Size:      r.Size,
					Exchange:  r.Exchange,
					ID:        r.ID,
				})
			}
		}
	}
	return ticks, nil
}

// ---------------------------------------------------------------------------
// BrickStore implementation
// ---------------------------------------------------------------------------

// WriteBricks writes finalized bricks to Parquet files organized by symbol
// and year. Layout: <DataDir>/bricks/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBricks(_ context.Context, symbol string, bricks []domain.Brick) error {
	if len(bricks) == 0 {
		return nil
	}

	groups := make(map[int][]BrickRecord)
	for _, b := range bricks {
		year := b.Timestamp.Year()
		groups[year] = append(groups[year], BrickRecord{
			Symbol:    symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			Close:     b.Close,
			High:      b.High,
			Low:       b.Low,
			IsUp:      b.IsUp,
		})
	}

	for year, records := range groups {
		path := s.brickPath(symbol, year)

		existing, _ := readParquetFile[BrickRecord](path)
		merged := mergeBrickRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bricks for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadBricks reads brick data for the given symbol and time range.
func (s *ParquetStore) ReadBricks(_ context.Context, symbol string, start, end time.Time) ([]domain.Brick, error) {
	var bricks []domain.Brick
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BrickRecord](s.brickPath(symbol, year))
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if inRange(ts, start, end) {
				bricks = append(bricks, domain.Brick{
					Open:      r.Open,
					Close:     r.Close,
					High:      r.High,
					Low:       r.Low,
					Timestamp: ts,
					IsUp:      r.IsUp,
				})
			}
		}
	}
	return bricks, nil
}

// ListSymbols lists all symbols that have stored bricks.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "bricks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (s *ParquetStore) tickPath(symbol string, t time.Time) string {
	date := t.Format("2006-01-02")
	return filepath.Join(s.DataDir, "ticks", strings.ToUpper(symbol), date+".parquet")
}

func (s *ParquetStore) brickPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "bricks", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeTickRecords deduplicates tick records by (symbol, id), preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeTickRecords(existing, incoming []TickRecord) []TickRecord {
	type key struct {
		symbol string
		id     string
	}
	seen := make(map[key]TickRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.ID}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.ID}] = r
	}

	merged := make([]TickRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeBrickRecords deduplicates brick records by (symbol, timestamp, close),
// preferring new records over existing ones. Close participates in the key
// because a multi-brick jump finalizes several bricks at one timestamp.
func mergeBrickRecords(existing, incoming []BrickRecord) []BrickRecord {
	type key struct {
		symbol string
		ts     int64
		close  float64
	}
	seen := make(map[key]BrickRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp, r.Close}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp, r.Close}] = r
	}

	merged := make([]BrickRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Close < merged[j].Close
	})
	return merged
}
