package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mastermind/internal/domain"
	"mastermind/internal/store"
)

// ReplayFeed replays stored ticks through a handler in timestamp order,
// driving the same pipeline the live feed does.
type ReplayFeed struct {
	ticks   store.TickStore
	symbols []string
	start   time.Time
	end     time.Time
	// speed 0 replays as fast as possible; 1 replays in real time.
	speed   float64
	handler TickHandler
	log     *slog.Logger
}

// NewReplayFeed creates a replay over [start, end] for the given symbols.
func NewReplayFeed(ticks store.TickStore, symbols []string, start, end time.Time, speed float64, handler TickHandler, log *slog.Logger) *ReplayFeed {
	if log == nil {
		log = slog.Default()
	}
	return &ReplayFeed{
		ticks:   ticks,
		symbols: symbols,
		start:   start,
		end:     end,
		speed:   speed,
		handler: handler,
		log:     log.With("component", "replay"),
	}
}

// Run loads the ticks for every symbol, interleaves them chronologically,
// and feeds them to the handler. It returns once the replay completes or ctx
// is cancelled.
func (f *ReplayFeed) Run(ctx context.Context) error {
	var all []domain.Tick
	for _, sym := range f.symbols {
		ticks, err := f.ticks.ReadTicks(ctx, sym, f.start, f.end)
		if err != nil {
			return fmt.Errorf("reading ticks for %s: %w", sym, err)
		}
		all = append(all, ticks...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	f.log.Info("replay starting", "ticks", len(all), "symbols", f.symbols)

	var prev time.Time
	for _, tick := range all {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if f.speed > 0 && !prev.IsZero() {
			gap := tick.Timestamp.Sub(prev)
			if gap > 0 {
				wait := time.Duration(float64(gap) / f.speed)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		prev = tick.Timestamp

		f.handler(ctx, tick)
	}

	f.log.Info("replay complete", "ticks", len(all))
	return nil
}
