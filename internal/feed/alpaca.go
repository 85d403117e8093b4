// Package feed delivers market ticks to the engine, either live from the
// Alpaca websocket or replayed from storage.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"mastermind/internal/domain"
)

// TickHandler receives each incoming tick.
type TickHandler func(ctx context.Context, tick domain.Tick)

// AlpacaFeed streams live trades from the Alpaca websocket into a handler.
type AlpacaFeed struct {
	apiKey    string
	apiSecret string
	feed      string // "iex" or "sip"
	symbols   []string
	handler   TickHandler
	log       *slog.Logger
}

// NewAlpacaFeed creates a live feed for the given symbols.
func NewAlpacaFeed(apiKey, apiSecret, feedName string, symbols []string, handler TickHandler, log *slog.Logger) *AlpacaFeed {
	if log == nil {
		log = slog.Default()
	}
	if feedName == "" {
		feedName = "iex"
	}
	return &AlpacaFeed{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		feed:      feedName,
		symbols:   symbols,
		handler:   handler,
		log:       log.With("component", "feed"),
	}
}

// Run connects to the Alpaca stream and delivers trades until ctx is
// cancelled. Dropped connections are redialed with exponential backoff; a
// feed outage must not take the whole process down.
func (f *AlpacaFeed) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Error("stream disconnected, redialing", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (f *AlpacaFeed) runOnce(ctx context.Context) error {
	client := stream.NewStocksClient(f.feed,
		stream.WithCredentials(f.apiKey, f.apiSecret),
		stream.WithTrades(f.onTrade, f.symbols...),
	)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to stream: %w", err)
	}
	f.log.Info("connected to trade stream", "feed", f.feed, "symbols", f.symbols)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Terminated():
		return fmt.Errorf("stream terminated")
	}
}

func (f *AlpacaFeed) onTrade(t stream.Trade) {
	f.handler(context.Background(), domain.Tick{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Size:      int64(t.Size),
		Exchange:  t.Exchange,
		ID:        strconv.FormatInt(t.ID, 10),
		Timestamp: t.Timestamp,
	})
}
