package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"mastermind/internal/domain"
	"mastermind/internal/util"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

const (
	alpacaMaxAttempts = 3
	alpacaRetryDelay  = 500 * time.Millisecond
)

// AlpacaBroker implements the Broker interface against the Alpaca trading
// API. Calls are rate limited to stay under the venue's request budget and
// retried with backoff on transient failures.
type AlpacaBroker struct {
	client  *alpaca.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaBroker creates an AlpacaBroker with the given credentials and API
// endpoint. rateLimitPerMin bounds outgoing requests; Alpaca's default budget
// is 200 per minute.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string, rateLimitPerMin int, log *slog.Logger) *AlpacaBroker {
	if log == nil {
		log = slog.Default()
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}

	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}

	return &AlpacaBroker{
		client:  alpaca.NewClient(opts),
		limiter: util.NewRateLimiter(rateLimitPerMin),
		log:     log.With("broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string { return "alpaca" }

// SubmitOrder places the order at Alpaca. Orders carrying both a stop loss
// and a take profit are submitted as bracket orders so the venue manages the
// exits server side.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	qty := decimal.NewFromFloat(order.Quantity)
	req := alpaca.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		Side:        alpacaSide(order.Side),
		Type:        alpacaType(order.Type),
		TimeInForce: alpaca.GTC,
	}

	if order.Type == domain.OrderTypeLimit {
		limit := decimal.NewFromFloat(order.Price)
		req.LimitPrice = &limit
	}
	if order.Type == domain.OrderTypeStop {
		stop := decimal.NewFromFloat(order.Price)
		req.StopPrice = &stop
	}

	if order.StopLoss > 0 && order.TakeProfit > 0 {
		tp := decimal.NewFromFloat(order.TakeProfit)
		sl := decimal.NewFromFloat(order.StopLoss)
		req.OrderClass = alpaca.Bracket
		req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
		req.StopLoss = &alpaca.StopLoss{StopPrice: &sl}
	}

	var placed *alpaca.Order
	err := util.Retry(ctx, alpacaMaxAttempts, alpacaRetryDelay, func() error {
		var err error
		placed, err = b.client.PlaceOrder(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("placing order for %s: %w", order.Symbol, err)
	}

	order.ID = placed.ID
	order.Status = domain.OrderStatusSubmitted
	order.CreatedAt = placed.CreatedAt
	order.UpdatedAt = placed.UpdatedAt
	order.FilledQuantity = placed.FilledQty.InexactFloat64()

	b.log.Info("order submitted",
		"id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"qty", order.Quantity,
	)
	return order, nil
}

// CancelOrder cancels an open order at Alpaca.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	err := util.Retry(ctx, alpacaMaxAttempts, alpacaRetryDelay, func() error {
		return b.client.CancelOrder(orderID)
	})
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	b.log.Info("order cancelled", "id", orderID)
	return nil
}

// GetPositions returns all open positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []alpaca.Position
	err := util.Retry(ctx, alpacaMaxAttempts, alpacaRetryDelay, func() error {
		var err error
		raw, err = b.client.GetPositions()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, positionFromAlpaca(p))
	}
	return positions, nil
}

// positionFromAlpaca maps an Alpaca position to the domain type. The venue
// reports short positions with Side "short" and a negative-leaning PnL.
func positionFromAlpaca(p alpaca.Position) domain.Position {
	pos := domain.Position{
		Symbol:       p.Symbol,
		Side:         domain.SideBuy,
		Quantity:     p.Qty.InexactFloat64(),
		AveragePrice: p.AvgEntryPrice.InexactFloat64(),
		UpdateTime:   time.Now(),
	}
	if p.Side == "short" {
		pos.Side = domain.SideSell
	}
	if p.CurrentPrice != nil {
		pos.CurrentPrice = p.CurrentPrice.InexactFloat64()
	}
	if p.UnrealizedPL != nil {
		pos.UnrealizedPnL = p.UnrealizedPL.InexactFloat64()
	}
	return pos
}

// GetAccount returns a snapshot of the Alpaca account.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var acct *alpaca.Account
	err := util.Retry(ctx, alpacaMaxAttempts, alpacaRetryDelay, func() error {
		var err error
		acct, err = b.client.GetAccount()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	equity := acct.Equity.InexactFloat64()
	margin := acct.InitialMargin.InexactFloat64()
	return &domain.AccountInfo{
		Balance:    acct.Cash.InexactFloat64(),
		Equity:     equity,
		Margin:     margin,
		FreeMargin: equity - margin,
		Currency:   acct.Currency,
		LastUpdate: time.Now(),
	}, nil
}

func alpacaSide(s domain.Side) alpaca.Side {
	if s == domain.SideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func alpacaType(t domain.OrderType) alpaca.OrderType {
	switch t {
	case domain.OrderTypeLimit:
		return alpaca.Limit
	case domain.OrderTypeStop:
		return alpaca.Stop
	default:
		return alpaca.Market
	}
}
