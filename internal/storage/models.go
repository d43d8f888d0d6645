package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/metrics"
	"inventory-alerts/internal/risk"
	"inventory-alerts/internal/velocity"
)

// Shop holds per-tenant analysis and notification settings.
type Shop struct {
	ID                   string
	Domain               string
	AnalysisEnabled      bool
	LowStockUnits        int64
	CriticalStockUnits   *int64
	CriticalStockoutDays int64
	// Channels lists the notification channels enabled for this shop
	// (email, chat, webhook, sms). Endpoint credentials live in config;
	// recipients live here.
	Channels      []string
	NotifyEmail   string
	NotifyPhone   string
	WebhookURL    string
	WebhookSecret string
	CreatedAt     time.Time
}

// Product is the per-product snapshot mutated once per analysis run.
type Product struct {
	ID            string
	ShopID        string
	Title         string
	TotalQuantity int64
	DailyVelocity *decimal.Decimal
	StockoutDays  *decimal.Decimal
	Status        metrics.Status
	Trending      bool
	UpdatedAt     time.Time
}

// Prediction is the one-per-product velocity record, superseded every run.
type Prediction struct {
	ProductID             string
	CurrentVelocity       decimal.Decimal
	PredictedVelocity     decimal.Decimal
	Trend                 velocity.Trend
	PredictedStockoutDate *time.Time
	DaysUntilStockout     *int
	Confidence            float64
	RiskLevel             risk.Level
	Insight               string
	UpdatedAt             time.Time
}

// AnalyticsPoint is one row of the append-only velocity history series.
type AnalyticsPoint struct {
	ProductID       string
	RunAt           time.Time
	DailyVelocity   decimal.Decimal
	WeeklyVelocity  decimal.Decimal
	MonthlyVelocity decimal.Decimal
	Acceleration    decimal.Decimal
	Trend           velocity.Trend
}

// AlertKey is the dedup key: at most one active, unresolved alert per key.
type AlertKey struct {
	ShopID    string
	ProductID string
	Type      alerting.AlertType
}

// AlertFields are the values written on create and refreshed on update.
type AlertFields struct {
	Severity              alerting.Severity
	Title                 string
	Message               string
	SuggestedAction       string
	Rationale             string
	Velocity              decimal.Decimal
	DaysUntilStockout     *int
	PredictedStockoutDate *time.Time
	Trend                 velocity.Trend
}

// Alert is a persisted alert row.
type Alert struct {
	ID                    string
	ShopID                string
	ProductID             string
	Type                  alerting.AlertType
	Severity              alerting.Severity
	Title                 string
	Message               string
	SuggestedAction       string
	Rationale             string
	Velocity              decimal.Decimal
	DaysUntilStockout     *int
	PredictedStockoutDate *time.Time
	Trend                 velocity.Trend
	Active                bool
	Resolved              bool
	Notified              bool
	LastNotifiedAt        *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Delivery is a persisted delivery-log row.
type Delivery struct {
	ID         int64
	Channel    string
	Recipient  string
	Payload    []byte
	Status     alerting.DeliveryStatus
	RetryCount int
	Error      *string
	SentAt     *time.Time
	CreatedAt  time.Time
}
