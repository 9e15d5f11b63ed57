package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"
)

// DefaultTimeout bounds a single send. Sends are never retried.
const DefaultTimeout = 10 * time.Second

// Message is one entry of the batch accepted by the gateway
type Message struct {
	Phones  []string `json:"phones"`
	Content string   `json:"content"`
}

// Result describes what the gateway answered
type Result struct {
	StatusCode int
	Body       string
	Delivered  bool
}

// Client posts SMS batches to the configured gateway URL
type Client struct {
	httpClient *resty.Client
	url        string
	logger     *slog.Logger
}

// NewClient creates a gateway client
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Send posts a single message to all phones. The returned error covers
// transport failures only; a reachable gateway that refuses the message yields
// a Result with Delivered false.
func (c *Client) Send(ctx context.Context, phones []string, content string) (*Result, error) {
	batch := []Message{{Phones: phones, Content: content}}

	c.logger.Info("Posting SMS batch",
		slog.String("url", c.url),
		slog.Any("phones", phones),
		slog.String("content", content),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(batch).
		Post(c.url)
	if err != nil {
		c.logger.Error("SMS request failed",
			slog.Any("phones", phones),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to post sms: %w", err)
	}

	result := &Result{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}
	result.Delivered = !resp.IsError() && isSuccessBody(resp.Body())

	if result.Delivered {
		c.logger.Info("SMS delivered",
			slog.Any("phones", phones),
			slog.Int("status", result.StatusCode),
		)
	} else {
		c.logger.Error("SMS gateway did not confirm delivery",
			slog.Any("phones", phones),
			slog.Int("status", result.StatusCode),
			slog.String("body", result.Body),
		)
	}

	return result, nil
}

// isSuccessBody accepts the shapes the gateway is known to answer with: the
// bare word success, or a JSON object carrying success/code/status.
func isSuccessBody(body []byte) bool {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return false
	}
	if strings.EqualFold(strings.Trim(text, `"`), "success") {
		return true
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return false
	}

	if v, ok := obj["success"]; ok {
		return cast.ToBool(v)
	}
	for _, key := range []string{"code", "status"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if s, isString := v.(string); isString && strings.EqualFold(s, "success") {
			return true
		}
		n, err := cast.ToIntE(v)
		if err == nil {
			return n == 0 || n == 200
		}
	}
	return false
}
