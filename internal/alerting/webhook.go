package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SignatureHeader carries the hex HMAC-SHA256 of the exact request body.
const SignatureHeader = "X-Webhook-Signature"

const (
	defaultWebhookTimeout   = 30 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryBaseDelay   = time.Second
	bulkChunkSize           = 5
	maxResponseSnippetBytes = 2048
)

// ErrorKind distinguishes delivery failure classes. A timeout is not a
// network error, and neither is an HTTP-level rejection.
type ErrorKind string

const (
	ErrorKindNone    ErrorKind = ""
	ErrorKindHTTP    ErrorKind = "http"
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindTimeout ErrorKind = "timeout"
)

// WebhookOptions parameterise the signed HTTP transport.
type WebhookOptions struct {
	URL            string
	Secret         string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Headers        map[string]string
	UserAgent      string
}

// SendResult captures the outcome of one logical send, including retries.
type SendResult struct {
	Success    bool
	StatusCode int
	Response   string
	Err        error
	ErrKind    ErrorKind
	RetryCount int
	Duration   time.Duration
}

// WebhookTransport delivers JSON payloads over HTTP POST with HMAC signing,
// a hard per-attempt timeout, and exponential-backoff retries.
type WebhookTransport struct {
	opts   WebhookOptions
	client *http.Client
	sink   DeliverySink
	logger zerolog.Logger
}

// NewWebhookTransport applies defaults and wires the optional delivery sink.
// Pass a nil sink when the caller records deliveries itself.
func NewWebhookTransport(opts WebhookOptions, sink DeliverySink, logger zerolog.Logger) *WebhookTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebhookTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}

	return &WebhookTransport{
		opts: opts,
		// The per-attempt deadline is enforced via context so timeouts are
		// distinguishable from connection failures.
		client: &http.Client{},
		sink:   sink,
		logger: logger.With().Str("component", "webhook_transport").Logger(),
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Send posts the payload, retrying on any failure with delays of
// base, 2*base, 4*base... and stopping early on the first success.
func (t *WebhookTransport) Send(ctx context.Context, payload WebhookPayload) SendResult {
	started := time.Now()

	body, err := payload.MarshalBody()
	if err != nil {
		result := SendResult{Err: fmt.Errorf("marshal webhook payload: %w", err), ErrKind: ErrorKindHTTP}
		result.Duration = time.Since(started)
		return result
	}

	t.recordPending(ctx, body)

	var result SendResult
	for attempt := 0; attempt < t.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := t.opts.RetryBaseDelay << (attempt - 1)
			t.logger.Debug().Int("attempt", attempt).Dur("delay", delay).
				Str("url", t.opts.URL).Msg("retrying webhook delivery")
			if err := sleepCtx(ctx, delay); err != nil {
				result.Err = err
				result.ErrKind = ErrorKindTimeout
				break
			}
		}

		result = t.attempt(ctx, body)
		result.RetryCount = attempt
		if result.Success {
			break
		}
	}

	result.Duration = time.Since(started)
	t.record(ctx, body, result)

	if result.Success {
		t.logger.Info().Str("url", t.opts.URL).Int("status", result.StatusCode).
			Int("retries", result.RetryCount).Msg("webhook delivered")
	} else {
		t.logger.Warn().Str("url", t.opts.URL).Err(result.Err).
			Str("kind", string(result.ErrKind)).Int("retries", result.RetryCount).
			Msg("webhook delivery failed")
	}

	return result
}

// BulkSend partitions payloads into chunks of five, delivers each chunk
// concurrently, and processes chunks sequentially. Peak in-flight requests
// never exceed the chunk size. Results keep the input order.
func (t *WebhookTransport) BulkSend(ctx context.Context, payloads []WebhookPayload) []SendResult {
	results := make([]SendResult, len(payloads))

	for start := 0; start < len(payloads); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(payloads) {
			end = len(payloads)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = t.Send(ctx, payloads[idx])
			}(i)
		}
		wg.Wait()
	}

	return results
}

func (t *WebhookTransport) attempt(ctx context.Context, body []byte) SendResult {
	attemptCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, t.opts.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: fmt.Errorf("create webhook request: %w", err), ErrKind: ErrorKindNetwork}
	}

	req.Header.Set("Content-Type", "application/json")
	ua := t.opts.UserAgent
	if ua == "" {
		ua = "stockwatcher/1.0"
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range t.opts.Headers {
		req.Header.Set(k, v)
	}
	if t.opts.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(t.opts.Secret, body))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return SendResult{Err: fmt.Errorf("webhook request timed out after %s: %w", t.opts.Timeout, err), ErrKind: ErrorKindTimeout}
		}
		return SendResult{Err: fmt.Errorf("webhook request: %w", err), ErrKind: ErrorKindNetwork}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippetBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{
			StatusCode: resp.StatusCode,
			Response:   string(snippet),
			Err:        fmt.Errorf("webhook endpoint returned %d", resp.StatusCode),
			ErrKind:    ErrorKindHTTP,
		}
	}

	return SendResult{Success: true, StatusCode: resp.StatusCode, Response: string(snippet)}
}

// recordPending opens the delivery-log lifecycle for this send, before the
// first HTTP attempt. The terminal row appended by record supersedes it.
func (t *WebhookTransport) recordPending(ctx context.Context, body []byte) {
	if t.sink == nil {
		return
	}

	rec := DeliveryRecord{
		Channel:   "webhook",
		Recipient: t.opts.URL,
		Payload:   body,
		Status:    DeliveryPending,
		Metadata:  NewDeliveryMetadata(len(body), t.opts.Secret != ""),
	}

	if err := t.sink.AppendDelivery(ctx, rec); err != nil {
		t.logger.Error().Err(err).Msg("failed to append delivery log row")
	}
}

// record appends the terminal delivery-log row for this send.
func (t *WebhookTransport) record(ctx context.Context, body []byte, result SendResult) {
	if t.sink == nil {
		return
	}

	status := DeliverySent
	errMsg := ""
	if !result.Success {
		status = DeliveryFailed
		if result.ErrKind == ErrorKindNetwork || result.ErrKind == ErrorKindTimeout {
			status = DeliveryErrored
		}
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
	}

	now := time.Now().UTC()
	rec := DeliveryRecord{
		Channel:    "webhook",
		Recipient:  t.opts.URL,
		Payload:    body,
		Status:     status,
		RetryCount: result.RetryCount,
		Error:      errMsg,
		Metadata:   NewDeliveryMetadata(len(body), t.opts.Secret != ""),
	}
	if result.Success {
		rec.SentAt = &now
	}

	if err := t.sink.AppendDelivery(ctx, rec); err != nil {
		t.logger.Error().Err(err).Msg("failed to append delivery log row")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
