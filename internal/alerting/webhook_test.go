package alerting

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"inventory-alerts/internal/velocity"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testNotification() Notification {
	days := 3
	return Notification{
		Event:             "inventory.alert.created",
		ShopID:            "shop-1",
		ShopDomain:        "demo.example.com",
		ProductID:         "prod-1",
		ProductTitle:      "Blue Widget",
		Quantity:          12,
		AlertID:           "alert-1",
		AlertType:         TypeImminentStockout,
		Severity:          SeverityCritical,
		Title:             "Stockout Alert: Blue Widget",
		Message:           "Blue Widget is about to sell out",
		DailyVelocity:     decimal.NewFromInt(4),
		Trend:             velocity.TrendIncreasing,
		DaysUntilStockout: &days,
		Timestamp:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

type fakeSink struct {
	mu      sync.Mutex
	records []DeliveryRecord
}

func (s *fakeSink) AppendDelivery(ctx context.Context, rec DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) byStatus(status DeliveryStatus) []DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DeliveryRecord
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

func fastOptions(url string) WebhookOptions {
	return WebhookOptions{
		URL:            url,
		Secret:         "test-secret",
		Timeout:        2 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestWebhookSendSignsBody(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(fastOptions(srv.URL), nil, testLogger())
	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))

	if !result.Success {
		t.Fatalf("发送应成功: %v", result.Err)
	}
	if result.RetryCount != 0 {
		t.Fatalf("首次成功不应重试: %d", result.RetryCount)
	}
	if gotSignature == "" {
		t.Fatal("缺少签名头")
	}
	if !VerifySignature("test-secret", gotBody, gotSignature) {
		t.Fatal("签名校验失败")
	}
	if VerifySignature("test-secret", append(gotBody, 'x'), gotSignature) {
		t.Fatal("篡改后的请求体不应通过校验")
	}
	if VerifySignature("wrong-secret", gotBody, gotSignature) {
		t.Fatal("错误密钥不应通过校验")
	}
}

func TestWebhookSendRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(fastOptions(srv.URL), nil, testLogger())
	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))

	if !result.Success {
		t.Fatalf("第三次尝试应成功: %v", result.Err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("应请求 3 次, 实际 %d", got)
	}
	if result.RetryCount != 2 {
		t.Fatalf("RetryCount 应为 2: %d", result.RetryCount)
	}
}

func TestWebhookSendExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := &fakeSink{}
	transport := NewWebhookTransport(fastOptions(srv.URL), sink, testLogger())
	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))

	if result.Success {
		t.Fatal("持续 502 不应成功")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("应请求 3 次, 实际 %d", got)
	}
	if result.ErrKind != ErrorKindHTTP {
		t.Fatalf("错误类型应为 http: %s", result.ErrKind)
	}
	if result.StatusCode != http.StatusBadGateway {
		t.Fatalf("应记录最后一次状态码: %d", result.StatusCode)
	}

	if len(sink.records) != 2 {
		t.Fatalf("应写入 pending 和终态两条记录: %d", len(sink.records))
	}
	if sink.records[0].Status != DeliveryPending {
		t.Fatalf("首行应为 pending: %s", sink.records[0].Status)
	}
	if sink.records[0].SentAt != nil {
		t.Fatal("pending 行不应带 SentAt")
	}
	rec := sink.records[1]
	if rec.Status != DeliveryFailed {
		t.Fatalf("HTTP 失败应记为 failed: %s", rec.Status)
	}
	if rec.RetryCount != 2 {
		t.Fatalf("记录的重试次数应为 2: %d", rec.RetryCount)
	}
	if !rec.Metadata.Signed {
		t.Fatal("配置了密钥时 metadata 应标记已签名")
	}
}

func TestWebhookSendWritesPendingBeforeAttempt(t *testing.T) {
	sink := &fakeSink{}
	var pendingAtRequest int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pendingAtRequest = len(sink.byStatus(DeliveryPending))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(fastOptions(srv.URL), sink, testLogger())
	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))

	if !result.Success {
		t.Fatalf("发送应成功: %v", result.Err)
	}
	// The pending row must exist before the first HTTP attempt lands.
	if pendingAtRequest != 1 {
		t.Fatalf("请求前应已有 pending 记录: %d", pendingAtRequest)
	}
	if got := sink.byStatus(DeliverySent); len(got) != 1 {
		t.Fatalf("应有一条 sent 终态记录: %d", len(got))
	}
	if got := sink.records[0]; !got.Metadata.Signed {
		t.Fatal("pending 记录的 metadata 也应标记已签名")
	}
}

func TestWebhookSendTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	opts := fastOptions(srv.URL)
	opts.Timeout = 20 * time.Millisecond
	opts.RetryAttempts = 1
	transport := NewWebhookTransport(opts, nil, testLogger())

	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))
	if result.Success {
		t.Fatal("超时不应成功")
	}
	if result.ErrKind != ErrorKindTimeout {
		t.Fatalf("错误类型应为 timeout: %s (%v)", result.ErrKind, result.Err)
	}
}

func TestWebhookSendNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	opts := fastOptions(url)
	opts.RetryAttempts = 1
	transport := NewWebhookTransport(opts, nil, testLogger())

	result := transport.Send(context.Background(), BuildWebhookPayload(testNotification()))
	if result.Success {
		t.Fatal("连接拒绝不应成功")
	}
	if result.ErrKind != ErrorKindNetwork {
		t.Fatalf("错误类型应为 network: %s (%v)", result.ErrKind, result.Err)
	}
}

func TestBulkSendLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(fastOptions(srv.URL), nil, testLogger())

	payloads := make([]WebhookPayload, 17)
	for i := range payloads {
		payloads[i] = BuildWebhookPayload(testNotification())
	}

	results := transport.BulkSend(context.Background(), payloads)
	if len(results) != len(payloads) {
		t.Fatalf("结果数量不符: %d", len(results))
	}
	for i, res := range results {
		if !res.Success {
			t.Fatalf("第 %d 个发送应成功: %v", i, res.Err)
		}
	}
	if got := peak.Load(); got > 5 {
		t.Fatalf("并发峰值不应超过 5, 实际 %d", got)
	}
}
