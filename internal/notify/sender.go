package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// WebhookSender posts notifications as JSON to a URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhook creates a WebhookSender. A zero timeout means 10s.
func NewWebhook(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook to %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", w.url, resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to a structured logger. It stands in for a
// device notification when no webhook is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. Pass nil logger to use the default logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if !n.Success {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "Health Check Result",
		"message", n.Message,
		"endpoint", n.Endpoint,
		"runner", n.Runner,
	)
	return nil
}
