package analyzer

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/insight"
	"inventory-alerts/internal/metrics"
	"inventory-alerts/internal/risk"
	"inventory-alerts/internal/storage"
	"inventory-alerts/internal/velocity"
)

const defaultSampleWindowDays = 30

// Dispatcher abstracts the notification fan-out so runs can be tested with a stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, note alerting.Notification) alerting.DispatchResult
}

// DispatcherFactory builds the channel fan-out for one shop's settings.
type DispatcherFactory func(shop storage.Shop) Dispatcher

// Deps collects the analyzer's collaborators. Locker may be nil when run
// exclusion is not available (tests, dry runs).
type Deps struct {
	Shops       storage.ShopStore
	Products    storage.ProductStore
	Samples     storage.SampleStore
	Predictions storage.PredictionStore
	Alerts      storage.AlertStore
	Locker      storage.AdvisoryLocker
	Dispatch    DispatcherFactory
	Insights    insight.Generator
}

// Options tune the analysis pass.
type Options struct {
	SampleWindowDays int
	// Shop rows may leave thresholds at zero; these fill the gaps.
	DefaultLowStockUnits        int64
	DefaultCriticalStockoutDays int64
	// DefaultCriticalStockUnits fills the critical override when the shop
	// leaves it unset. Zero keeps the derived value.
	DefaultCriticalStockUnits int64
}

// Analyzer runs the per-shop inventory analysis batch.
type Analyzer struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs the batch analyzer.
func New(deps Deps, opts Options, logger zerolog.Logger) *Analyzer {
	if opts.SampleWindowDays <= 0 {
		opts.SampleWindowDays = defaultSampleWindowDays
	}
	if deps.Insights == nil {
		deps.Insights = insight.Noop{}
	}

	return &Analyzer{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "analyzer").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Summary reports one shop's analysis run.
type Summary struct {
	ShopID              string         `json:"shopId"`
	Skipped             bool           `json:"skipped,omitempty"`
	SkipReason          string         `json:"skipReason,omitempty"`
	ProductsAnalyzed    int            `json:"productsAnalyzed"`
	ProductsFailed      int            `json:"productsFailed"`
	AlertsGenerated     int            `json:"alertsGenerated"`
	CriticalAlerts      int            `json:"criticalAlerts"`
	FastSellingProducts int            `json:"fastSellingProducts"`
	ImminentStockouts   int            `json:"imminentStockouts"`
	VelocitySpikes      int            `json:"velocitySpikes"`
	TrendChanges        int            `json:"trendChanges"`
	ByType              map[string]int `json:"byType,omitempty"`
}

// RunResult is the external batch-trigger response shape.
type RunResult struct {
	Success          bool         `json:"success"`
	ProductsAnalyzed int          `json:"productsAnalyzed"`
	AlertsGenerated  int          `json:"alertsGenerated"`
	CriticalAlerts   int          `json:"criticalAlerts"`
	Summary          RunBreakdown `json:"summary"`
	Error            string       `json:"error,omitempty"`
}

// RunBreakdown carries the per-condition counts of a run.
type RunBreakdown struct {
	FastSellingProducts int `json:"fastSellingProducts"`
	ImminentStockouts   int `json:"imminentStockouts"`
	VelocitySpikes      int `json:"velocitySpikes"`
}

// RunAnalysis wraps RunForShop into the externally-invoked trigger shape.
func (a *Analyzer) RunAnalysis(ctx context.Context, shopID string) RunResult {
	summary, err := a.RunForShop(ctx, shopID)
	if err != nil {
		return RunResult{Error: err.Error()}
	}

	return RunResult{
		Success:          true,
		ProductsAnalyzed: summary.ProductsAnalyzed,
		AlertsGenerated:  summary.AlertsGenerated,
		CriticalAlerts:   summary.CriticalAlerts,
		Summary: RunBreakdown{
			FastSellingProducts: summary.FastSellingProducts,
			ImminentStockouts:   summary.ImminentStockouts,
			VelocitySpikes:      summary.VelocitySpikes,
		},
	}
}

// RunAll analyses every shop sequentially. Shop-level failures are logged and
// do not stop the pass.
func (a *Analyzer) RunAll(ctx context.Context) error {
	shops, err := a.deps.Shops.ListShops(ctx)
	if err != nil {
		return fmt.Errorf("list shops: %w", err)
	}

	for _, shop := range shops {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		summary, runErr := a.RunForShop(ctx, shop.ID)
		if runErr != nil {
			a.logger.Error().Err(runErr).Str("shop", shop.ID).Msg("shop analysis failed")
			continue
		}
		a.logger.Info().Str("shop", shop.ID).
			Int("products", summary.ProductsAnalyzed).
			Int("alerts", summary.AlertsGenerated).
			Int("critical", summary.CriticalAlerts).
			Bool("skipped", summary.Skipped).
			Msg("shop analysis complete")
	}

	return nil
}

// RunForShop analyses every product of one shop. A disabled shop or a run
// already holding the shop lock yields a skipped summary, not an error.
// Failures on a single product are counted and never abort the loop.
func (a *Analyzer) RunForShop(ctx context.Context, shopID string) (Summary, error) {
	summary := Summary{ShopID: shopID, ByType: make(map[string]int)}

	shop, err := a.deps.Shops.GetShop(ctx, shopID)
	if err != nil {
		return summary, fmt.Errorf("load shop %s: %w", shopID, err)
	}

	if a.deps.Locker != nil {
		unlock, acquired, lockErr := a.deps.Locker.TryAdvisoryLock(ctx, shopLockKey(shop.ID))
		if lockErr != nil {
			return summary, fmt.Errorf("acquire shop lock: %w", lockErr)
		}
		if !acquired {
			summary.Skipped = true
			summary.SkipReason = "analysis already running for shop"
			return summary, nil
		}
		defer unlock()
	}

	if !shop.AnalysisEnabled {
		summary.Skipped = true
		summary.SkipReason = "analysis disabled for shop"
		return summary, nil
	}

	products, err := a.deps.Products.ListProductsByShop(ctx, shop.ID)
	if err != nil {
		return summary, fmt.Errorf("list products for shop %s: %w", shop.ID, err)
	}

	var dispatcher Dispatcher
	if a.deps.Dispatch != nil {
		dispatcher = a.deps.Dispatch(shop)
	}

	thresholds := a.thresholds(shop)
	now := a.now()

	for _, product := range products {
		if err := a.analyzeProduct(ctx, shop, product, thresholds, dispatcher, now, &summary); err != nil {
			summary.ProductsFailed++
			a.logger.Error().Err(err).Str("shop", shop.ID).Str("product", product.ID).
				Msg("product analysis failed")
			continue
		}
		summary.ProductsAnalyzed++
	}

	return summary, nil
}

func (a *Analyzer) analyzeProduct(ctx context.Context, shop storage.Shop, product storage.Product, thresholds metrics.Thresholds, dispatcher Dispatcher, now time.Time, summary *Summary) error {
	windowStart := now.AddDate(0, 0, -a.opts.SampleWindowDays)
	samples, err := a.deps.Samples.ListSamplesSince(ctx, product.ID, windowStart)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	pred := velocity.Predict(now, samples, product.TotalQuantity)

	// No samples at all means the velocity is unknown, not zero.
	var dailyVelocity *decimal.Decimal
	if pred.HasSamples {
		v := pred.DailyVelocity
		dailyVelocity = &v
	}

	evaluated := metrics.Evaluate(product.TotalQuantity, dailyVelocity, thresholds)
	signal := risk.Classify(pred)

	product.DailyVelocity = dailyVelocity
	product.StockoutDays = evaluated.StockoutDays
	product.Status = evaluated.Status
	product.Trending = pred.Trend == velocity.TrendIncreasing || pred.Trend == velocity.TrendAccelerating
	if err := a.deps.Products.UpdateProductSnapshot(ctx, product); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	insightText := a.generateInsight(ctx, shop, product, pred, signal)

	if err := a.deps.Predictions.UpsertPrediction(ctx, storage.Prediction{
		ProductID:             product.ID,
		CurrentVelocity:       pred.DailyVelocity,
		PredictedVelocity:     pred.PredictedVelocity,
		Trend:                 pred.Trend,
		PredictedStockoutDate: pred.PredictedStockoutDate,
		DaysUntilStockout:     pred.DaysUntilStockout,
		Confidence:            pred.Confidence,
		RiskLevel:             signal.Level,
		Insight:               insightText,
	}); err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}

	if err := a.deps.Predictions.AppendAnalyticsPoint(ctx, storage.AnalyticsPoint{
		ProductID:       product.ID,
		RunAt:           now,
		DailyVelocity:   pred.DailyVelocity,
		WeeklyVelocity:  pred.WeeklyVelocity,
		MonthlyVelocity: pred.MonthlyVelocity,
		Acceleration:    pred.Acceleration,
		Trend:           pred.Trend,
	}); err != nil {
		return fmt.Errorf("append analytics: %w", err)
	}

	if !signal.ShouldAlert {
		return nil
	}

	switch signal.Type {
	case alerting.TypeFastSellingWarning:
		summary.FastSellingProducts++
	case alerting.TypeImminentStockout:
		summary.ImminentStockouts++
	case alerting.TypeVelocitySpike:
		summary.VelocitySpikes++
	case alerting.TypeVelocityTrendChange:
		summary.TrendChanges++
	}

	message := alerting.Message(signal.Type, product.Title, pred.DailyVelocity, pred.Trend, pred.DaysUntilStockout)
	rationale := insightText
	if rationale == "" {
		rationale = message
	}

	alert, created, err := a.deps.Alerts.UpsertActiveAlert(ctx,
		storage.AlertKey{ShopID: shop.ID, ProductID: product.ID, Type: signal.Type},
		storage.AlertFields{
			Severity:              signal.Severity,
			Title:                 alerting.Title(signal.Type, product.Title),
			Message:               message,
			SuggestedAction:       alerting.SuggestedAction(pred.DaysUntilStockout, pred.Trend),
			Rationale:             rationale,
			Velocity:              pred.DailyVelocity,
			DaysUntilStockout:     pred.DaysUntilStockout,
			PredictedStockoutDate: pred.PredictedStockoutDate,
			Trend:                 pred.Trend,
		})
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}

	if !created {
		// Updated in place; the existing active alert was already notified.
		return nil
	}

	summary.AlertsGenerated++
	summary.ByType[string(alert.Type)]++
	if alert.Severity == alerting.SeverityCritical {
		summary.CriticalAlerts++
	}

	if dispatcher == nil {
		return nil
	}

	lowUnits := thresholds.LowStockUnits
	result := dispatcher.Dispatch(ctx, alerting.Notification{
		Event:             "inventory.alert.created",
		ShopID:            shop.ID,
		ShopDomain:        shop.Domain,
		ProductID:         product.ID,
		ProductTitle:      product.Title,
		Quantity:          product.TotalQuantity,
		Threshold:         &lowUnits,
		AlertID:           alert.ID,
		AlertType:         alert.Type,
		Severity:          alert.Severity,
		Title:             alert.Title,
		Message:           alert.Message,
		DailyVelocity:     pred.DailyVelocity,
		Trend:             pred.Trend,
		DaysUntilStockout: pred.DaysUntilStockout,
		Timestamp:         now,
	})

	if !result.Success() {
		a.logger.Warn().Str("shop", shop.ID).Str("product", product.ID).
			Str("type", string(alert.Type)).Err(result.Err).
			Msg("alert dispatch failed; alert remains unnotified")
		return nil
	}

	if err := a.deps.Alerts.MarkAlertNotified(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}

	return nil
}

func (a *Analyzer) generateInsight(ctx context.Context, shop storage.Shop, product storage.Product, pred velocity.Prediction, signal risk.Signal) string {
	if !signal.ShouldAlert {
		return ""
	}

	text, err := a.deps.Insights.GenerateInsight(ctx, insight.Request{
		ProductTitle:      product.Title,
		ShopDomain:        shop.Domain,
		StockOnHand:       product.TotalQuantity,
		DailyVelocity:     pred.DailyVelocity,
		Trend:             pred.Trend,
		DaysUntilStockout: pred.DaysUntilStockout,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("product", product.ID).Msg("insight generation failed")
		return ""
	}
	return text
}

func (a *Analyzer) thresholds(shop storage.Shop) metrics.Thresholds {
	th := metrics.Thresholds{
		LowStockUnits:        shop.LowStockUnits,
		CriticalStockUnits:   shop.CriticalStockUnits,
		CriticalStockoutDays: shop.CriticalStockoutDays,
	}
	if th.LowStockUnits <= 0 {
		th.LowStockUnits = a.opts.DefaultLowStockUnits
	}
	if th.CriticalStockUnits == nil && a.opts.DefaultCriticalStockUnits > 0 {
		units := a.opts.DefaultCriticalStockUnits
		th.CriticalStockUnits = &units
	}
	if th.CriticalStockoutDays <= 0 {
		th.CriticalStockoutDays = a.opts.DefaultCriticalStockoutDays
	}
	return th
}

// shopLockKey folds the shop id into the advisory-lock keyspace.
func shopLockKey(shopID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("stockwatcher:" + shopID))
	return int64(h.Sum64())
}
