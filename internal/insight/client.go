package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ClientOptions configure the external text-generation service.
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the hosted insight service over HTTP.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

// NewClient builds a resty-backed client with retries.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(opts.APIKey)

	return &Client{
		http:   httpClient,
		logger: logger.With().Str("component", "insight_client").Logger(),
	}
}

type insightRequest struct {
	Product           string `json:"product"`
	Shop              string `json:"shop"`
	StockOnHand       int64  `json:"stockOnHand"`
	DailyVelocity     string `json:"dailyVelocity"`
	Trend             string `json:"trend"`
	DaysUntilStockout *int   `json:"daysUntilStockout,omitempty"`
}

type insightResponse struct {
	Insight string `json:"insight"`
	Error   string `json:"error"`
}

// GenerateInsight requests a free-text assessment; the returned prose is
// opaque to the caller.
func (c *Client) GenerateInsight(ctx context.Context, req Request) (string, error) {
	body := insightRequest{
		Product:           req.ProductTitle,
		Shop:              req.ShopDomain,
		StockOnHand:       req.StockOnHand,
		DailyVelocity:     req.DailyVelocity.String(),
		Trend:             string(req.Trend),
		DaysUntilStockout: req.DaysUntilStockout,
	}

	var parsed insightResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&parsed).
		Post("/v1/insights")
	if err != nil {
		return "", fmt.Errorf("call insight service: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("insight service returned %d", resp.StatusCode())
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("insight service error: %s", parsed.Error)
	}

	c.logger.Debug().Str("product", req.ProductTitle).Msg("insight generated")
	return parsed.Insight, nil
}

var _ Generator = (*Client)(nil)
