package store

import (
	"context"
	"testing"
	"time"

	"mastermind/internal/domain"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func sampleTicks() []domain.Tick {
	return []domain.Tick{
		{Symbol: "EURUSD", Price: 1.1000, Size: 100, Exchange: "X", ID: "t1", Timestamp: day.Add(10 * time.Hour)},
		{Symbol: "EURUSD", Price: 1.1003, Size: 200, Exchange: "X", ID: "t2", Timestamp: day.Add(11 * time.Hour)},
		{Symbol: "EURUSD", Price: 1.0998, Size: 50, Exchange: "X", ID: "t3", Timestamp: day.Add(12 * time.Hour)},
	}
}

func TestWriteAndReadTicks(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := s.WriteTicks(ctx, sampleTicks()); err != nil {
		t.Fatalf("WriteTicks: %v", err)
	}

	got, err := s.ReadTicks(ctx, "EURUSD", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadTicks returned %d ticks, want 3", len(got))
	}
	if got[0].ID != "t1" || got[2].ID != "t3" {
		t.Errorf("ticks out of order: %s .. %s, want t1 .. t3", got[0].ID, got[2].ID)
	}
	if got[1].Price != 1.1003 {
		t.Errorf("tick t2 Price = %v, want 1.1003", got[1].Price)
	}
}

func TestWriteTicksDeduplicates(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()

	s.WriteTicks(ctx, sampleTicks())
	// Rewriting the same batch must not duplicate rows.
	s.WriteTicks(ctx, sampleTicks())

	got, _ := s.ReadTicks(ctx, "EURUSD", day, day.Add(24*time.Hour))
	if len(got) != 3 {
		t.Errorf("ReadTicks returned %d ticks after rewrite, want 3", len(got))
	}
}

func TestReadTicksTimeFilter(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()
	s.WriteTicks(ctx, sampleTicks())

	got, _ := s.ReadTicks(ctx, "EURUSD", day.Add(11*time.Hour), day.Add(11*time.Hour))
	if len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("ReadTicks(window) = %v, want only t2", got)
	}
}

func TestReadTicksMissingSymbol(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	got, err := s.ReadTicks(context.Background(), "NOPE", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadTicks returned %d ticks for unknown symbol, want 0", len(got))
	}
}

func TestWriteAndReadBricks(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bricks := []domain.Brick{
		domain.NewBrick(1.1000, 1.1010, day.Add(10*time.Hour), true),
		domain.NewBrick(1.1010, 1.1020, day.Add(10*time.Hour), true),
		domain.NewBrick(1.1020, 1.1010, day.Add(13*time.Hour), false),
	}
	if err := s.WriteBricks(ctx, "EURUSD", bricks); err != nil {
		t.Fatalf("WriteBricks: %v", err)
	}

	got, err := s.ReadBricks(ctx, "EURUSD", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ReadBricks: %v", err)
	}
	// Two bricks share a timestamp (multi-brick jump); both must survive.
	if len(got) != 3 {
		t.Fatalf("ReadBricks returned %d bricks, want 3", len(got))
	}
	if got[0].Close != 1.1010 || got[1].Close != 1.1020 {
		t.Errorf("same-timestamp bricks = %v/%v, want 1.1010/1.1020", got[0].Close, got[1].Close)
	}
	if got[2].IsUp {
		t.Error("third brick IsUp = true, want false")
	}
}

func TestListSymbols(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()

	brick := []domain.Brick{domain.NewBrick(1, 2, day, true)}
	s.WriteBricks(ctx, "EURUSD", brick)
	s.WriteBricks(ctx, "AAPL", brick)

	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "EURUSD" {
		t.Errorf("ListSymbols = %v, want [AAPL EURUSD]", symbols)
	}
}

func TestListSymbolsEmpty(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	symbols, err := s.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("ListSymbols = %v on empty store, want none", symbols)
	}
}
