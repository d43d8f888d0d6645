package alerting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EmailOptions configure the transactional email API endpoint.
type EmailOptions struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	SenderEmail string
	SenderName  string
	Timeout     time.Duration
}

// EmailChannel delivers alerts through a Mailjet-compatible send API.
type EmailChannel struct {
	opts      EmailOptions
	recipient string
	client    *http.Client
	logger    zerolog.Logger
}

// NewEmailChannel constructs an email channel addressed to one recipient.
func NewEmailChannel(opts EmailOptions, recipient string, logger zerolog.Logger) *EmailChannel {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &EmailChannel{
		opts:      opts,
		recipient: recipient,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "alert_email").Logger(),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Recipient() string { return c.recipient }

type emailAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type emailMessage struct {
	From     emailAddress   `json:"From"`
	To       []emailAddress `json:"To"`
	Subject  string         `json:"Subject"`
	TextPart string         `json:"TextPart"`
	HTMLPart string         `json:"HTMLPart"`
}

type emailSendRequest struct {
	Messages []emailMessage `json:"Messages"`
}

// Send posts the alert through the email API with basic auth.
func (c *EmailChannel) Send(ctx context.Context, note Notification) ChannelResult {
	result := ChannelResult{Channel: c.Name(), Recipient: c.recipient}

	if c.recipient == "" {
		result.Err = fmt.Errorf("email channel has no recipient configured")
		return result
	}

	text := note.Message + "\n\nSuggested action: " + SuggestedAction(note.DaysUntilStockout, note.Trend)
	payload := emailSendRequest{
		Messages: []emailMessage{{
			From: emailAddress{
				Email: c.opts.SenderEmail,
				Name:  c.opts.SenderName,
			},
			To:       []emailAddress{{Email: c.recipient, Name: note.ShopDomain}},
			Subject:  note.Title,
			TextPart: text,
			HTMLPart: strings.ReplaceAll(text, "\n", "<br>"),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Err = fmt.Errorf("marshal email payload: %w", err)
		return result
	}

	url := strings.TrimRight(c.opts.BaseURL, "/") + "/v3.1/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Err = fmt.Errorf("create email request: %w", err)
		return result
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.opts.APIKey + ":" + c.opts.APISecret))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("send email request: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = fmt.Errorf("email service returned %d", resp.StatusCode)
		return result
	}

	c.logger.Info().Str("recipient", c.recipient).
		Str("type", string(note.AlertType)).Msg("alert email sent")

	result.Success = true
	return result
}

var _ Channel = (*EmailChannel)(nil)
