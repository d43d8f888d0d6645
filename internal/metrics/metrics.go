package metrics

import (
	"github.com/shopspring/decimal"
)

// Status classifies the stock health of a single product.
type Status string

const (
	StatusHealthy  Status = "Healthy"
	StatusLow      Status = "Low"
	StatusCritical Status = "Critical"
	StatusUnknown  Status = "Unknown"
)

const defaultCriticalStockoutDays = 3

// Thresholds parameterise the stock evaluation for one shop.
type Thresholds struct {
	// LowStockUnits is the absolute quantity below which a product counts as low.
	LowStockUnits int64
	// CriticalStockUnits overrides the derived critical quantity when non-nil.
	CriticalStockUnits *int64
	// CriticalStockoutDays marks stock critical once the runway drops below it.
	// Zero means the default of 3 days.
	CriticalStockoutDays int64
}

// Result is the outcome of a single stock evaluation.
type Result struct {
	Status Status
	// StockoutDays is the estimated runway in days. Nil means it cannot be
	// estimated (unknown velocity) or the product never sells out (zero velocity).
	StockoutDays *decimal.Decimal
}

// criticalUnits resolves the override or derives min(5, floor(low*0.3)).
func (t Thresholds) criticalUnits() int64 {
	if t.CriticalStockUnits != nil {
		return *t.CriticalStockUnits
	}
	derived := t.LowStockUnits * 3 / 10
	if derived > 5 {
		derived = 5
	}
	return derived
}

func (t Thresholds) criticalDays() decimal.Decimal {
	if t.CriticalStockoutDays > 0 {
		return decimal.NewFromInt(t.CriticalStockoutDays)
	}
	return decimal.NewFromInt(defaultCriticalStockoutDays)
}

// Evaluate maps a stock quantity and daily sales velocity onto a status.
// A nil velocity means the velocity is unknown, which is distinct from a
// known velocity of zero.
//
// The rules form an ordered decision: the first match wins.
func Evaluate(stock int64, velocity *decimal.Decimal, th Thresholds) Result {
	stockoutDays := stockoutDays(stock, velocity)

	hasVelocity := velocity != nil && velocity.IsPositive()

	switch {
	case stock == 0:
		zero := decimal.Zero
		return Result{Status: StatusCritical, StockoutDays: &zero}
	case stock <= th.criticalUnits():
		return Result{Status: StatusCritical, StockoutDays: stockoutDays}
	case hasVelocity && stockoutDays != nil && stockoutDays.LessThanOrEqual(th.criticalDays()):
		return Result{Status: StatusCritical, StockoutDays: stockoutDays}
	case stock <= th.LowStockUnits:
		return Result{Status: StatusLow, StockoutDays: stockoutDays}
	case hasVelocity && stockoutDays != nil &&
		stockoutDays.LessThanOrEqual(decimal.NewFromInt(th.LowStockUnits).Div(*velocity)):
		return Result{Status: StatusLow, StockoutDays: stockoutDays}
	default:
		return Result{Status: StatusHealthy, StockoutDays: stockoutDays}
	}
}

// stockoutDays estimates the runway: stock/velocity when velocity is positive,
// zero when the shelf is already empty, nil otherwise. Zero velocity with
// stock on hand means the product never sells out, also reported as nil.
func stockoutDays(stock int64, velocity *decimal.Decimal) *decimal.Decimal {
	if stock == 0 {
		zero := decimal.Zero
		return &zero
	}
	if velocity == nil || !velocity.IsPositive() {
		return nil
	}
	days := decimal.NewFromInt(stock).Div(*velocity)
	return &days
}
