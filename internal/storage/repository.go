package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/metrics"
	"inventory-alerts/internal/velocity"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrShopNotFound indicates the shop id has no row.
	ErrShopNotFound = errors.New("storage: shop not found")
)

const (
	listShopsSQL = `SELECT
        id, domain, analysis_enabled,
        low_stock_units, critical_stock_units, critical_stockout_days,
        channels, notify_email, notify_phone, webhook_url, webhook_secret,
        created_at
    FROM shops
    ORDER BY id;`

	getShopSQL = `SELECT
        id, domain, analysis_enabled,
        low_stock_units, critical_stock_units, critical_stockout_days,
        channels, notify_email, notify_phone, webhook_url, webhook_secret,
        created_at
    FROM shops
    WHERE id = $1;`

	listProductsByShopSQL = `SELECT
        id, shop_id, title, total_quantity,
        daily_velocity, stockout_days, status, trending, updated_at
    FROM products
    WHERE shop_id = $1
    ORDER BY id;`

	updateProductSnapshotSQL = `UPDATE products
    SET daily_velocity = $2,
        stockout_days  = $3,
        status         = $4,
        trending       = $5,
        updated_at     = now()
    WHERE id = $1;`

	listSamplesSinceSQL = `SELECT sample_date, units_sold
    FROM velocity_samples
    WHERE product_id = $1
      AND sample_date >= $2
    ORDER BY sample_date;`

	upsertPredictionSQL = `INSERT INTO velocity_predictions (
        product_id,
        current_velocity,
        predicted_velocity,
        trend,
        predicted_stockout_date,
        days_until_stockout,
        confidence,
        risk_level,
        insight,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,now()
    )
    ON CONFLICT (product_id) DO UPDATE
    SET
        current_velocity        = EXCLUDED.current_velocity,
        predicted_velocity      = EXCLUDED.predicted_velocity,
        trend                   = EXCLUDED.trend,
        predicted_stockout_date = EXCLUDED.predicted_stockout_date,
        days_until_stockout     = EXCLUDED.days_until_stockout,
        confidence              = EXCLUDED.confidence,
        risk_level              = EXCLUDED.risk_level,
        insight                 = EXCLUDED.insight,
        updated_at              = now();`

	appendAnalyticsSQL = `INSERT INTO velocity_analytics (
        product_id, run_at, daily_velocity, weekly_velocity,
        monthly_velocity, acceleration, trend
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`

	listAnalyticsBetweenSQL = `SELECT
        product_id, run_at, daily_velocity, weekly_velocity,
        monthly_velocity, acceleration, trend
    FROM velocity_analytics
    WHERE product_id = $1
      AND run_at >= $2
      AND run_at < $3
    ORDER BY run_at;`

	alertColumns = `id, shop_id, product_id, alert_type, severity,
        title, message, suggested_action, rationale,
        velocity, days_until_stockout, predicted_stockout_date, trend,
        active, resolved, notified, last_notified_at, created_at, updated_at`

	upsertActiveAlertSQL = `INSERT INTO alerts (
        id, shop_id, product_id, alert_type, severity,
        title, message, suggested_action, rationale,
        velocity, days_until_stockout, predicted_stockout_date, trend,
        active, resolved, notified
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,true,false,false
    )
    ON CONFLICT (shop_id, product_id, alert_type) WHERE active AND NOT resolved
    DO UPDATE
    SET velocity                = EXCLUDED.velocity,
        days_until_stockout     = EXCLUDED.days_until_stockout,
        predicted_stockout_date = EXCLUDED.predicted_stockout_date,
        trend                   = EXCLUDED.trend,
        rationale               = EXCLUDED.rationale,
        updated_at              = now()
    RETURNING ` + alertColumns + `, (xmax = 0) AS inserted;`

	markAlertNotifiedSQL = `UPDATE alerts
    SET notified = true, last_notified_at = $2, updated_at = now()
    WHERE id = $1;`

	listRecentAlertsSQL = `SELECT ` + alertColumns + `
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	appendDeliverySQL = `INSERT INTO notification_deliveries (
        channel, recipient, payload, status, retry_count, error, sent_at, metadata
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	listRecentDeliveriesSQL = `SELECT
        id, channel, recipient, payload, status, retry_count, error, sent_at, created_at
    FROM notification_deliveries
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ShopStore reads per-tenant settings.
type ShopStore interface {
	ListShops(ctx context.Context) ([]Shop, error)
	GetShop(ctx context.Context, id string) (Shop, error)
}

// ProductStore reads and updates product snapshots.
type ProductStore interface {
	ListProductsByShop(ctx context.Context, shopID string) ([]Product, error)
	UpdateProductSnapshot(ctx context.Context, product Product) error
}

// SampleStore reads the append-only sales series.
type SampleStore interface {
	ListSamplesSince(ctx context.Context, productID string, from time.Time) ([]velocity.Sample, error)
}

// PredictionStore persists prediction records and the analytics series.
type PredictionStore interface {
	UpsertPrediction(ctx context.Context, pred Prediction) error
	AppendAnalyticsPoint(ctx context.Context, point AnalyticsPoint) error
	ListAnalyticsBetween(ctx context.Context, productID string, from, to time.Time) ([]AnalyticsPoint, error)
}

// AlertStore enforces the dedup invariant with an atomic upsert.
type AlertStore interface {
	// UpsertActiveAlert creates a new alert for the key, or refreshes the
	// mutable fields of the existing active unresolved one. The bool reports
	// whether a new row was created.
	UpsertActiveAlert(ctx context.Context, key AlertKey, fields AlertFields) (Alert, bool, error)
	MarkAlertNotified(ctx context.Context, alertID string, at time.Time) error
	ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// DeliveryStore reads the delivery audit log; writes go through the
// alerting.DeliverySink implementation.
type DeliveryStore interface {
	ListRecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to every table behind a single pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// ListShops lists every shop ordered by id.
func (s *Store) ListShops(ctx context.Context) ([]Shop, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listShopsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list shops: %w", queryErr)
	}
	defer rows.Close()

	shops := make([]Shop, 0)
	for rows.Next() {
		shop, scanErr := scanShop(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		shops = append(shops, shop)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return shops, nil
}

// GetShop loads one shop by id.
func (s *Store) GetShop(ctx context.Context, id string) (Shop, error) {
	pool, err := s.getPool()
	if err != nil {
		return Shop{}, err
	}

	rows, queryErr := pool.Query(ctx, getShopSQL, id)
	if queryErr != nil {
		return Shop{}, fmt.Errorf("get shop: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Shop{}, rows.Err()
		}
		return Shop{}, ErrShopNotFound
	}
	return scanShop(rows)
}

// ListProductsByShop lists a shop's products ordered by id.
func (s *Store) ListProductsByShop(ctx context.Context, shopID string) ([]Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listProductsByShopSQL, shopID)
	if queryErr != nil {
		return nil, fmt.Errorf("list products: %w", queryErr)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var (
			p           Product
			dailyStr    sql.NullString
			stockoutStr sql.NullString
			status      string
		)
		if err := rows.Scan(
			&p.ID, &p.ShopID, &p.Title, &p.TotalQuantity,
			&dailyStr, &stockoutStr, &status, &p.Trending, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Status = metrics.Status(status)

		var convErr error
		if p.DailyVelocity, convErr = parseNullDecimal(dailyStr); convErr != nil {
			return nil, fmt.Errorf("parse daily velocity: %w", convErr)
		}
		if p.StockoutDays, convErr = parseNullDecimal(stockoutStr); convErr != nil {
			return nil, fmt.Errorf("parse stockout days: %w", convErr)
		}
		products = append(products, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return products, nil
}

// UpdateProductSnapshot writes the per-run status/velocity/trend fields.
func (s *Store) UpdateProductSnapshot(ctx context.Context, product Product) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateProductSnapshotSQL,
		product.ID,
		nullDecimalString(product.DailyVelocity),
		nullDecimalString(product.StockoutDays),
		string(product.Status),
		product.Trending,
	)
	if execErr != nil {
		return fmt.Errorf("update product snapshot: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListSamplesSince reads the sales series from a cutoff date onward.
func (s *Store) ListSamplesSince(ctx context.Context, productID string, from time.Time) ([]velocity.Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesSinceSQL, productID, from)
	if queryErr != nil {
		return nil, fmt.Errorf("list velocity samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]velocity.Sample, 0)
	for rows.Next() {
		var sample velocity.Sample
		if err := rows.Scan(&sample.Date, &sample.UnitsSold); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// UpsertPrediction supersedes the per-product prediction record.
func (s *Store) UpsertPrediction(ctx context.Context, pred Prediction) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var days interface{}
	if pred.DaysUntilStockout != nil {
		days = *pred.DaysUntilStockout
	}
	var date interface{}
	if pred.PredictedStockoutDate != nil {
		date = *pred.PredictedStockoutDate
	}

	_, execErr := pool.Exec(ctx, upsertPredictionSQL,
		pred.ProductID,
		pred.CurrentVelocity.String(),
		pred.PredictedVelocity.String(),
		string(pred.Trend),
		date,
		days,
		pred.Confidence,
		string(pred.RiskLevel),
		pred.Insight,
	)
	if execErr != nil {
		return fmt.Errorf("upsert prediction: %w", execErr)
	}
	return nil
}

// AppendAnalyticsPoint appends one row of the velocity history series.
func (s *Store) AppendAnalyticsPoint(ctx context.Context, point AnalyticsPoint) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, appendAnalyticsSQL,
		point.ProductID,
		point.RunAt,
		point.DailyVelocity.String(),
		point.WeeklyVelocity.String(),
		point.MonthlyVelocity.String(),
		point.Acceleration.String(),
		string(point.Trend),
	)
	if execErr != nil {
		return fmt.Errorf("append analytics point: %w", execErr)
	}
	return nil
}

// ListAnalyticsBetween reads the history series within a window.
func (s *Store) ListAnalyticsBetween(ctx context.Context, productID string, from, to time.Time) ([]AnalyticsPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAnalyticsBetweenSQL, productID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list analytics: %w", queryErr)
	}
	defer rows.Close()

	points := make([]AnalyticsPoint, 0)
	for rows.Next() {
		var (
			point   AnalyticsPoint
			daily   string
			weekly  string
			monthly string
			accel   string
			trend   string
		)
		if err := rows.Scan(&point.ProductID, &point.RunAt, &daily, &weekly, &monthly, &accel, &trend); err != nil {
			return nil, err
		}
		point.Trend = velocity.Trend(trend)

		var convErr error
		if point.DailyVelocity, convErr = decimal.NewFromString(daily); convErr != nil {
			return nil, fmt.Errorf("parse daily velocity: %w", convErr)
		}
		if point.WeeklyVelocity, convErr = decimal.NewFromString(weekly); convErr != nil {
			return nil, fmt.Errorf("parse weekly velocity: %w", convErr)
		}
		if point.MonthlyVelocity, convErr = decimal.NewFromString(monthly); convErr != nil {
			return nil, fmt.Errorf("parse monthly velocity: %w", convErr)
		}
		if point.Acceleration, convErr = decimal.NewFromString(accel); convErr != nil {
			return nil, fmt.Errorf("parse acceleration: %w", convErr)
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// UpsertActiveAlert atomically creates or refreshes an active alert for the
// dedup key. A partial unique index on (shop_id, product_id, alert_type)
// WHERE active AND NOT resolved backs the ON CONFLICT clause, so concurrent
// runs cannot create duplicate active alerts.
func (s *Store) UpsertActiveAlert(ctx context.Context, key AlertKey, fields AlertFields) (Alert, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, false, err
	}

	var days interface{}
	if fields.DaysUntilStockout != nil {
		days = *fields.DaysUntilStockout
	}
	var date interface{}
	if fields.PredictedStockoutDate != nil {
		date = *fields.PredictedStockoutDate
	}

	row := pool.QueryRow(ctx, upsertActiveAlertSQL,
		uuid.NewString(),
		key.ShopID,
		key.ProductID,
		string(key.Type),
		string(fields.Severity),
		fields.Title,
		fields.Message,
		fields.SuggestedAction,
		fields.Rationale,
		fields.Velocity.String(),
		days,
		date,
		string(fields.Trend),
	)

	alert, created, scanErr := scanAlertWithInserted(row)
	if scanErr != nil {
		return Alert{}, false, fmt.Errorf("upsert active alert: %w", scanErr)
	}
	return alert, created, nil
}

// MarkAlertNotified stamps the alert after a successful dispatch.
func (s *Store) MarkAlertNotified(ctx context.Context, alertID string, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markAlertNotifiedSQL, alertID, at)
	if execErr != nil {
		return fmt.Errorf("mark alert notified: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0, limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// AppendDelivery writes one row of the append-only delivery audit log.
// Implements alerting.DeliverySink.
func (s *Store) AppendDelivery(ctx context.Context, rec alerting.DeliveryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	metadata, marshalErr := json.Marshal(rec.Metadata)
	if marshalErr != nil {
		return fmt.Errorf("marshal delivery metadata: %w", marshalErr)
	}

	var errMsg interface{}
	if rec.Error != "" {
		errMsg = rec.Error
	}
	var sentAt interface{}
	if rec.SentAt != nil {
		sentAt = *rec.SentAt
	}

	_, execErr := pool.Exec(ctx, appendDeliverySQL,
		rec.Channel,
		rec.Recipient,
		[]byte(rec.Payload),
		string(rec.Status),
		rec.RetryCount,
		errMsg,
		sentAt,
		metadata,
	)
	if execErr != nil {
		return fmt.Errorf("append delivery: %w", execErr)
	}
	return nil
}

// ListRecentDeliveries lists most recent delivery-log rows.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent deliveries: %w", queryErr)
	}
	defer rows.Close()

	deliveries := make([]Delivery, 0, limit)
	for rows.Next() {
		var (
			d      Delivery
			status string
			errMsg sql.NullString
			sentAt sql.NullTime
		)
		if err := rows.Scan(
			&d.ID, &d.Channel, &d.Recipient, &d.Payload,
			&status, &d.RetryCount, &errMsg, &sentAt, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Status = alerting.DeliveryStatus(status)
		if errMsg.Valid {
			msg := errMsg.String
			d.Error = &msg
		}
		if sentAt.Valid {
			ts := sentAt.Time
			d.SentAt = &ts
		}
		deliveries = append(deliveries, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return deliveries, nil
}

func scanShop(rows pgx.Rows) (Shop, error) {
	var (
		shop          Shop
		criticalUnits sql.NullInt64
	)
	if err := rows.Scan(
		&shop.ID, &shop.Domain, &shop.AnalysisEnabled,
		&shop.LowStockUnits, &criticalUnits, &shop.CriticalStockoutDays,
		&shop.Channels, &shop.NotifyEmail, &shop.NotifyPhone,
		&shop.WebhookURL, &shop.WebhookSecret, &shop.CreatedAt,
	); err != nil {
		return Shop{}, err
	}
	if criticalUnits.Valid {
		value := criticalUnits.Int64
		shop.CriticalStockUnits = &value
	}
	return shop, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlertColumns(row alertScanner, extra ...any) (Alert, error) {
	var (
		alert       Alert
		alertType   string
		severity    string
		trend       string
		velocityStr string
		days        sql.NullInt64
		date        sql.NullTime
		notifiedAt  sql.NullTime
	)

	dest := []any{
		&alert.ID, &alert.ShopID, &alert.ProductID, &alertType, &severity,
		&alert.Title, &alert.Message, &alert.SuggestedAction, &alert.Rationale,
		&velocityStr, &days, &date, &trend,
		&alert.Active, &alert.Resolved, &alert.Notified, &notifiedAt,
		&alert.CreatedAt, &alert.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return Alert{}, err
	}

	alert.Type = alerting.AlertType(alertType)
	alert.Severity = alerting.Severity(severity)
	alert.Trend = velocity.Trend(trend)

	parsed, err := decimal.NewFromString(velocityStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse alert velocity: %w", err)
	}
	alert.Velocity = parsed

	if days.Valid {
		value := int(days.Int64)
		alert.DaysUntilStockout = &value
	}
	if date.Valid {
		value := date.Time
		alert.PredictedStockoutDate = &value
	}
	if notifiedAt.Valid {
		value := notifiedAt.Time
		alert.LastNotifiedAt = &value
	}

	return alert, nil
}

func scanAlert(rows pgx.Rows) (Alert, error) {
	return scanAlertColumns(rows)
}

func scanAlertWithInserted(row pgx.Row) (Alert, bool, error) {
	var inserted bool
	alert, err := scanAlertColumns(row, &inserted)
	if err != nil {
		return Alert{}, false, err
	}
	return alert, inserted, nil
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullDecimalString(v *decimal.Decimal) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}
