package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/velocity"
)

var alertTitles = map[AlertType]string{
	TypeVelocitySpike:       "Sales Spike: %s",
	TypeFastSellingWarning:  "Fast Selling: %s",
	TypeImminentStockout:    "Stockout Alert: %s",
	TypeVelocityTrendChange: "Sales Accelerating: %s",
}

// Title renders the alert headline for a product.
func Title(t AlertType, productTitle string) string {
	format, ok := alertTitles[t]
	if !ok {
		format = "Inventory Alert: %s"
	}
	return fmt.Sprintf(format, productTitle)
}

// Message renders the alert body. It always carries the current velocity and
// trend word, and the projected day count when the stockout is close.
func Message(t AlertType, productTitle string, daily decimal.Decimal, trend velocity.Trend, daysUntilStockout *int) string {
	msg := fmt.Sprintf("%s is selling %s units/day (trend: %s).",
		productTitle, daily.StringFixed(1), trend)
	if daysUntilStockout != nil && *daysUntilStockout <= 7 {
		msg += fmt.Sprintf(" Projected to sell out in %d days.", *daysUntilStockout)
	}
	return msg
}

// SuggestedAction derives the recommended follow-up from the stockout runway
// and trend.
func SuggestedAction(daysUntilStockout *int, trend velocity.Trend) string {
	switch {
	case daysUntilStockout != nil && *daysUntilStockout <= 3:
		return "Urgent: reorder stock now"
	case daysUntilStockout != nil && *daysUntilStockout <= 7:
		return "Expedite your next reorder"
	case trend == velocity.TrendAccelerating:
		return "Monitor closely and plan a reorder"
	default:
		return "Review inventory levels"
	}
}
