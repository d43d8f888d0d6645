package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ChatChannel 通过 Telegram Bot API 推送告警消息。
type ChatChannel struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewChatChannel 构造 Telegram 告警通道。
func NewChatChannel(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *ChatChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &ChatChannel{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_chat").Logger(),
	}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Recipient() string { return c.chatID }

// Send 调用 sendMessage API 推送文本。
func (c *ChatChannel) Send(ctx context.Context, note Notification) ChannelResult {
	result := ChannelResult{Channel: c.Name(), Recipient: c.chatID}

	payload := map[string]string{
		"chat_id": c.chatID,
		"text":    renderChatMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Err = fmt.Errorf("marshal chat payload: %w", err)
		return result
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Err = fmt.Errorf("create chat request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("send chat request: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = fmt.Errorf("chat 响应码异常: %d", resp.StatusCode)
		return result
	}

	var apiResult struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err == nil {
		if !apiResult.OK {
			result.Err = fmt.Errorf("chat 返回 ok=false")
			return result
		}
	}

	c.logger.Info().Str("product", note.ProductTitle).
		Str("type", string(note.AlertType)).
		Str("severity", string(note.Severity)).
		Msg("告警已发送 (Telegram)")

	result.Success = true
	return result
}

func renderChatMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s]\n", note.Title))
	builder.WriteString(note.Message + "\n")
	builder.WriteString(fmt.Sprintf("Shop: %s\n", note.ShopDomain))
	builder.WriteString(fmt.Sprintf("Stock on hand: %d units\n", note.Quantity))
	builder.WriteString(fmt.Sprintf("Velocity: %s units/day (%s)\n", note.DailyVelocity.StringFixed(1), note.Trend))
	if note.DaysUntilStockout != nil {
		builder.WriteString(fmt.Sprintf("Days until stockout: %d\n", *note.DaysUntilStockout))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", note.Severity))
	return builder.String()
}

var _ Channel = (*ChatChannel)(nil)
