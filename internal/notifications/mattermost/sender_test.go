package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, handler http.HandlerFunc, config Config) *Sender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config.WebhookURL = server.URL
	sender, err := NewSender(config)
	require.NoError(t, err)
	return sender
}

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{WebhookURL: "http://mm/hooks/x"})
	require.NoError(t, err)

	assert.Equal(t, defaultUsername, sender.config.Username)
	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.NotNil(t, sender.httpClient)
	assert.Equal(t, notifications.Capability{Platform: "mattermost"}, sender.Capability())
}

func TestNewSender_RequiresWebhookURL(t *testing.T) {
	_, err := NewSender(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook url is required")
}

func TestSender_SendIndividual(t *testing.T) {
	tests := []struct {
		name     string
		msg      notifications.Message
		wantText string
	}{
		{"text only", notifications.Message{Text: "新单集上线"}, "新单集上线"},
		{"with image", notifications.Message{Text: "新电影上线", ImageURL: "https://img/p.jpg"}, "![](https://img/p.jpg)\n\n新电影上线"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var payload webhookPayload
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, tt.wantText, payload.Text)
				assert.Equal(t, "MediaBot", payload.Username)
				assert.Equal(t, "https://example.com/icon.png", payload.IconURL)

				w.WriteHeader(http.StatusOK)
			}, Config{Username: "MediaBot", IconURL: "https://example.com/icon.png"})

			assert.NoError(t, sender.SendIndividual(context.Background(), tt.msg))
		})
	}
}

func TestSender_SendIndividual_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRetryable bool
		wantMessage   string
	}{
		{"bad request", http.StatusBadRequest, "invalid payload", false, "invalid payload"},
		{"unauthorized", http.StatusUnauthorized, "", false, "invalid or expired webhook"},
		{"forbidden", http.StatusForbidden, "", false, "invalid or expired webhook"},
		{"not found", http.StatusNotFound, "", false, "webhook not found"},
		{"rate limited", http.StatusTooManyRequests, "", true, "rate limited"},
		{"server error", http.StatusInternalServerError, "internal error", true, "server error"},
		{"unavailable", http.StatusServiceUnavailable, "", true, "server error"},
		{"unexpected status", http.StatusTeapot, "I'm a teapot", false, "I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newTestSender(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, Config{})

			err := sender.SendIndividual(context.Background(), notifications.Message{Text: "Test message"})
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, notifications.IsRetryable(err))
			assert.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestSender_NetworkErrorMasksURL(t *testing.T) {
	sender, err := NewSender(Config{
		WebhookURL: "http://localhost:59999/hooks/secretsecretsecretsecret",
		Timeout:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	err = sender.SendIndividual(context.Background(), notifications.Message{Text: "x"})
	require.Error(t, err)
	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.NotContains(t, err.Error(), "secretsecretsecretsecret")
}

func TestSender_Unsupported(t *testing.T) {
	sender := newTestSender(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}, Config{})

	err := sender.SendForwardBundle(context.Background(), []notifications.Message{{Text: "a"}})
	assert.ErrorIs(t, err, notifications.ErrBundleNotSupported)
	assert.False(t, notifications.IsRetryable(err))

	err = sender.SendIndividual(context.Background(), notifications.Message{})
	assert.ErrorIs(t, err, notifications.ErrEmptyMessage)
}

func TestMaskWebhookURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "short URL under 40 chars",
			url:      "http://example.com/hook",
			expected: "http://example.com/hook",
		},
		{
			name:     "exactly 40 chars - not masked",
			url:      "http://example.com/hooks/abcdefghijklmno",
			expected: "http://example.com/hooks/abcdefghijklmno",
		},
		{
			name:     "41 chars - gets masked",
			url:      "http://example.com/hooks/abcdefghijklmnop",
			expected: "http://example.com/h...ghijklmnop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskWebhookURL(tt.url))
		})
	}
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "mattermost error 400: bad request", (&PermanentError{Code: 400, Message: "bad request"}).Error())
	assert.Equal(t, "mattermost error: connection refused", (&RetryableError{Message: "connection refused"}).Error())
}
