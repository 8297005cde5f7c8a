// Package telegram delivers notifications through the Telegram Bot API.
package telegram

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

	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL    = "https://api.telegram.org/bot%s/%s"
	defaultRateLimit = 1.0
	defaultTimeout   = 10 * time.Second

	maxCaptionRunes = 1024
	maxTextRunes    = 4096
)

// Config holds telegram adapter configuration.
type Config struct {
	BotToken  string
	ChatID    string
	APIURL    string  // format with bot token and method, default Bot API
	RateLimit float64 // messages per second
	Timeout   time.Duration
}

// Sender implements notifications.Adapter for Telegram. Telegram has no
// merged forward messages, so every message is sent on its own.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewSender creates a new telegram sender.
func NewSender(config Config) (*Sender, error) {
	if config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required")
	}
	if config.ChatID == "" {
		return nil, errors.New("telegram sender: chat id is required")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	slog.Info("telegram sender configured", "rate_limit", config.RateLimit)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		apiURL:     apiURL,
	}, nil
}

// Capability implements notifications.Adapter.
func (s *Sender) Capability() notifications.Capability {
	return notifications.Capability{Platform: "telegram", SupportsMergeForward: false}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendPhotoRequest struct {
	ChatID  string `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// SendIndividual sends msg as a photo with caption when it has an image,
// otherwise as a text message.
func (s *Sender) SendIndividual(ctx context.Context, msg notifications.Message) error {
	if msg.Text == "" && msg.ImageURL == "" {
		return notifications.NewPermanentError(notifications.ErrEmptyMessage)
	}

	if msg.ImageURL != "" {
		return s.call(ctx, "sendPhoto", sendPhotoRequest{
			ChatID:  s.config.ChatID,
			Photo:   msg.ImageURL,
			Caption: notifications.TruncateRunes(msg.Text, maxCaptionRunes),
		})
	}
	return s.call(ctx, "sendMessage", sendMessageRequest{
		ChatID: s.config.ChatID,
		Text:   notifications.TruncateRunes(msg.Text, maxTextRunes),
	})
}

// SendForwardBundle is not supported by Telegram.
func (s *Sender) SendForwardBundle(context.Context, []notifications.Message) error {
	return notifications.NewPermanentError(notifications.ErrBundleNotSupported)
}

func (s *Sender) call(ctx context.Context, method string, payload any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf(s.apiURL, s.config.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// The error may contain the URL and therefore the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(method, resp)
}

func (s *Sender) handleResponse(method string, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("read response: %v", err)}
	}

	var result telegramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode >= 500 {
			return &RetryableError{Code: resp.StatusCode, Message: "server error"}
		}
		return &PermanentError{Code: resp.StatusCode, Message: "decode response: " + err.Error()}
	}

	if result.OK {
		slog.Debug("telegram message sent", "method", method)
		return nil
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		retryAfter := time.Second
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: result.Description}

	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token"}

	case code >= 500:
		return &RetryableError{Code: code, Message: result.Description}

	default:
		return &PermanentError{Code: code, Message: result.Description}
	}
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
	}
	return "telegram error: " + e.Message
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// RateLimitError is returned when Telegram asks the bot to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true.
func (e *RateLimitError) IsRetryable() bool { return true }
