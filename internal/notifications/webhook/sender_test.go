package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/mediahook/internal/domain"
	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty", "", true},
		{"no scheme", "example.com/hook", true},
		{"ftp", "ftp://example.com/hook", true},
		{"https", "https://example.com/hook", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSender(Config{URL: tt.url})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSender_SendIndividual(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "新电影上线", got["text"])
		assert.Equal(t, "https://img/p.jpg", got["image_url"])
		assert.Equal(t, "radarr", got["source"])
		assert.Equal(t, "Movie", got["item_type"])
		assert.NotEmpty(t, got["sent_at"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL, Headers: map[string]string{"Authorization": "Bearer abc"}})
	require.NoError(t, err)
	assert.Equal(t, notifications.Capability{Platform: "webhook"}, sender.Capability())

	err = sender.SendIndividual(context.Background(), notifications.Message{
		Text:     "新电影上线",
		ImageURL: "https://img/p.jpg",
		Source:   domain.SourceRadarr,
		ItemType: domain.ItemTypeMovie,
	})
	assert.NoError(t, err)
}

func TestSender_StatusClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantRetryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sender, err := NewSender(Config{URL: server.URL})
			require.NoError(t, err)

			err = sender.SendIndividual(context.Background(), notifications.Message{Text: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, notifications.IsRetryable(err))
		})
	}
}

func TestSender_AsFallbackTransport(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL})
	require.NoError(t, err)

	reg := notifications.NewRegistry(sender)
	adapter := reg.Resolve("matrix")
	require.NoError(t, adapter.SendIndividual(context.Background(), notifications.Message{Text: "x"}))
	assert.Equal(t, 1, hits)
	assert.ErrorIs(t, adapter.SendForwardBundle(context.Background(), nil), notifications.ErrBundleNotSupported)
}
