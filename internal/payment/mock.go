// Package payment holds the PaymentGateway implementations.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Charge struct {
	Reference string
	Amount    decimal.Decimal
	Approved  bool
}

// MockGateway approves every charge up to an optional limit. It stands in
// for a real provider in development and tests.
type MockGateway struct {
	latency time.Duration
	limit   decimal.Decimal

	mu      sync.Mutex
	charges []Charge
}

type MockOption func(*MockGateway)

func WithLatency(d time.Duration) MockOption {
	return func(g *MockGateway) { g.latency = d }
}

// WithDeclineAbove declines any charge larger than limit.
func WithDeclineAbove(limit decimal.Decimal) MockOption {
	return func(g *MockGateway) { g.limit = limit }
}

func NewMockGateway(opts ...MockOption) *MockGateway {
	g := &MockGateway{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Charge(ctx context.Context, reference string, amount decimal.Decimal) (bool, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	approved := g.limit.IsZero() || amount.LessThanOrEqual(g.limit)

	g.mu.Lock()
	g.charges = append(g.charges, Charge{Reference: reference, Amount: amount, Approved: approved})
	g.mu.Unlock()
	return approved, nil
}

func (g *MockGateway) Charges() []Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Charge(nil), g.charges...)
}
