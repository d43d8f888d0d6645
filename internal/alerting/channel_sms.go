package alerting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMSOptions configure the Twilio-compatible messaging endpoint.
type SMSOptions struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// SMSChannel delivers a short text rendering of the alert.
type SMSChannel struct {
	opts      SMSOptions
	recipient string
	client    *http.Client
	logger    zerolog.Logger
}

// NewSMSChannel constructs an SMS channel addressed to one phone number.
func NewSMSChannel(opts SMSOptions, recipient string, logger zerolog.Logger) *SMSChannel {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twilio.com"
	}

	return &SMSChannel{
		opts:      opts,
		recipient: recipient,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "alert_sms").Logger(),
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Recipient() string { return c.recipient }

// Send posts a form-encoded message create request.
func (c *SMSChannel) Send(ctx context.Context, note Notification) ChannelResult {
	result := ChannelResult{Channel: c.Name(), Recipient: c.recipient}

	if c.recipient == "" {
		result.Err = fmt.Errorf("sms channel has no recipient configured")
		return result
	}

	text := note.Title + ": " + note.Message
	// SMS segments are 160 chars; keep the body to one segment.
	if len(text) > 160 {
		text = text[:157] + "..."
	}

	form := url.Values{}
	form.Set("To", c.recipient)
	form.Set("From", c.opts.FromNumber)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.opts.BaseURL, "/"), c.opts.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		result.Err = fmt.Errorf("create sms request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.opts.AccountSID, c.opts.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("send sms request: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = fmt.Errorf("sms service returned %d", resp.StatusCode)
		return result
	}

	c.logger.Info().Str("recipient", c.recipient).
		Str("type", string(note.AlertType)).Msg("alert sms sent")

	result.Success = true
	return result
}

var _ Channel = (*SMSChannel)(nil)
