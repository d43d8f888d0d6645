package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"inventory-alerts/internal/storage"
)

// Export renders a product's velocity history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.ProductID == "" {
		return errors.New("--product is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -90)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	points, err := store.ListAnalyticsBetween(ctx, opts.ProductID, from, to)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Str("product_id", opts.ProductID).Msg("no analytics found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting velocity history")

	if opts.CSVPath != "" {
		if err := writeAnalyticsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAnalyticsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points []storage.AnalyticsPoint, max int) []storage.AnalyticsPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]storage.AnalyticsPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeAnalyticsCSV(path string, points []storage.AnalyticsPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"run_at", "product_id", "daily_velocity", "weekly_velocity", "monthly_velocity", "acceleration", "trend"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			point.RunAt.Format(time.RFC3339),
			point.ProductID,
			point.DailyVelocity.String(),
			point.WeeklyVelocity.String(),
			point.MonthlyVelocity.String(),
			point.Acceleration.String(),
			string(point.Trend),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAnalyticsPNG(path string, points []storage.AnalyticsPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	daily := make([]float64, len(points))
	weekly := make([]float64, len(points))
	accel := make([]float64, len(points))

	for i, point := range points {
		x[i] = point.RunAt
		daily[i] = point.DailyVelocity.InexactFloat64()
		weekly[i] = point.WeeklyVelocity.InexactFloat64()
		accel[i] = point.Acceleration.InexactFloat64()
	}

	velocityFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Velocity (units/day)",
			ValueFormatter: velocityFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Acceleration (units/day²)",
			ValueFormatter: velocityFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Daily",
				XValues: x,
				YValues: daily,
			},
			chart.TimeSeries{
				Name:    "Weekly avg",
				XValues: x,
				YValues: weekly,
			},
			chart.TimeSeries{
				Name:    "Acceleration",
				XValues: x,
				YValues: accel,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
