package insight

import (
	"context"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/velocity"
)

// Request carries the figures the generator turns into prose.
type Request struct {
	ProductTitle      string
	ShopDomain        string
	StockOnHand       int64
	DailyVelocity     decimal.Decimal
	Trend             velocity.Trend
	DaysUntilStockout *int
}

// Generator produces a free-text insight for a product's situation. The
// engine stores and forwards the text verbatim; it never interprets it.
type Generator interface {
	GenerateInsight(ctx context.Context, req Request) (string, error)
}

// Noop satisfies Generator without calling anything. Used when the insight
// service is disabled and in tests.
type Noop struct{}

func (Noop) GenerateInsight(ctx context.Context, req Request) (string, error) {
	return "", nil
}

var _ Generator = Noop{}
