// Package webhook delivers notifications as JSON documents POSTed to an
// arbitrary HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/mediahook/internal/domain"
	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/goccy/go-json"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 64 << 10
)

// Config holds webhook sender configuration.
type Config struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// Sender implements notifications.Adapter and notifications.Transport.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a webhook sender.
func NewSender(config Config) (*Sender, error) {
	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook sender: invalid url %q", config.URL)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("webhook sender configured", "host", u.Host)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Capability implements notifications.Adapter.
func (s *Sender) Capability() notifications.Capability {
	return notifications.Capability{Platform: "webhook", SupportsMergeForward: false}
}

type payload struct {
	Text     string           `json:"text"`
	ImageURL string           `json:"image_url,omitempty"`
	Source   domain.SourceTag `json:"source,omitempty"`
	ItemType domain.ItemType  `json:"item_type,omitempty"`
	SentAt   time.Time        `json:"sent_at"`
}

// SendIndividual posts msg as one JSON document.
func (s *Sender) SendIndividual(ctx context.Context, msg notifications.Message) error {
	if msg.Text == "" && msg.ImageURL == "" {
		return notifications.NewPermanentError(notifications.ErrEmptyMessage)
	}

	body, err := json.Marshal(payload{
		Text:     msg.Text,
		ImageURL: msg.ImageURL,
		Source:   msg.Source,
		ItemType: msg.ItemType,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return notifications.NewRetryableError(fmt.Errorf("webhook send: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("webhook message sent", "status", resp.StatusCode)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return notifications.NewRetryableError(fmt.Errorf("webhook status %d: %s", resp.StatusCode, respBody))
	default:
		return notifications.NewPermanentError(fmt.Errorf("webhook status %d: %s", resp.StatusCode, respBody))
	}
}

// SendForwardBundle is not supported by plain webhooks.
func (s *Sender) SendForwardBundle(context.Context, []notifications.Message) error {
	return notifications.NewPermanentError(notifications.ErrBundleNotSupported)
}
