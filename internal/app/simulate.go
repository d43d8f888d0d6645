package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/risk"
	"inventory-alerts/internal/storage"
	"inventory-alerts/internal/velocity"
)

// SimulateOptions 描述模拟告警的输入参数。
type SimulateOptions struct {
	Stock         int64
	DailySales    int64
	WebhookURL    string
	WebhookSecret string
}

// SimulateAlert 基于合成的销量样本跑一遍完整的分析与告警链路,
// 用于在不接入真实店铺数据的情况下验证通知通道配置。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	now := time.Now().UTC()
	samples := syntheticSamples(now, opts.DailySales)

	pred := velocity.Predict(now, samples, opts.Stock)
	signal := risk.Classify(pred)
	if !signal.ShouldAlert {
		fmt.Printf("no alert condition triggered (trend=%s, daily=%s)\n", pred.Trend, pred.DailyVelocity.StringFixed(2))
		return nil
	}

	shop := storage.Shop{
		ID:            "simulated-shop",
		Domain:        "simulated.example.com",
		WebhookURL:    opts.WebhookURL,
		WebhookSecret: opts.WebhookSecret,
	}
	channels := a.channelsFor(shop)
	if len(channels) == 0 {
		return errors.New("未配置任何告警通道")
	}

	note := alerting.Notification{
		Event:             "inventory.alert.created",
		ShopID:            shop.ID,
		ShopDomain:        shop.Domain,
		ProductID:         uuid.NewString(),
		ProductTitle:      "Simulated Product",
		Quantity:          opts.Stock,
		AlertID:           uuid.NewString(),
		AlertType:         signal.Type,
		Severity:          signal.Severity,
		Title:             alerting.Title(signal.Type, "Simulated Product"),
		Message:           alerting.Message(signal.Type, "Simulated Product", pred.DailyVelocity, pred.Trend, pred.DaysUntilStockout),
		DailyVelocity:     pred.DailyVelocity,
		Trend:             pred.Trend,
		DaysUntilStockout: pred.DaysUntilStockout,
		Timestamp:         now,
	}

	dispatcher := alerting.NewDispatcher(channels, nil, a.Logger)
	result := dispatcher.Dispatch(ctx, note)
	if result.Err != nil {
		return result.Err
	}

	fmt.Println(result.Summary)
	return nil
}

// syntheticSamples fabricates two weeks of sales with the recent week double
// the prior week, enough to register as an accelerating trend.
func syntheticSamples(now time.Time, dailySales int64) []velocity.Sample {
	if dailySales <= 0 {
		dailySales = 10
	}

	samples := make([]velocity.Sample, 0, 14)
	for i := 1; i <= 14; i++ {
		units := dailySales
		if i > 7 {
			units = dailySales / 2
		}
		samples = append(samples, velocity.Sample{
			Date:      now.AddDate(0, 0, -i),
			UnitsSold: units,
		})
	}
	return samples
}
