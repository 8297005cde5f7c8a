package translate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"golang.org/x/time/rate"
)

const defaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// GoogleConfig configures the keyless Google translate endpoint.
type GoogleConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Google calls the public gtx endpoint. It needs no credentials.
type Google struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogle creates a Google service.
func NewGoogle(config GoogleConfig) *Google {
	if config.BaseURL == "" {
		config.BaseURL = defaultGoogleURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Google{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// ID implements Service.
func (g *Google) ID() string { return "google" }

// Translate implements Service. The response is a nested array whose
// first element lists [translated, source, ...] segments.
func (g *Google) Translate(ctx context.Context, text string) (string, error) {
	params := url.Values{
		"client": {"gtx"},
		"sl":     {"auto"},
		"tl":     {"zh-CN"},
		"dt":     {"t"},
		"q":      {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	var resp []any
	if err := enrich.DoJSON(g.httpClient, g.limiter, g.ID(), req, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", nil
	}

	segments, _ := resp[0].([]any)
	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
