// Package fanart supplies series posters from fanart.tv.
package fanart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"golang.org/x/time/rate"
)

const (
	providerID      = "fanart"
	defaultBaseURL  = "https://webservice.fanart.tv/v3"
	defaultTimeout  = 10 * time.Second
	requestInterval = 250 * time.Millisecond
)

// SeriesResolver maps a series name to the TheTVDB id fanart.tv is keyed by.
type SeriesResolver interface {
	SeriesID(ctx context.Context, name string) (string, error)
}

// Config holds fanart.tv settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements enrich.Provider. It supplies images only.
type Provider struct {
	config     Config
	resolver   SeriesResolver
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a fanart.tv provider.
func New(config Config, resolver SeriesResolver) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("fanart provider: api key is required")
	}
	if resolver == nil {
		return nil, errors.New("fanart provider: series resolver is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Provider{
		config:     config,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}, nil
}

// ID implements enrich.Provider.
func (p *Provider) ID() string { return providerID }

// Capabilities implements enrich.Provider.
func (p *Provider) Capabilities() enrich.Capability { return enrich.CapImage }

type artwork struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type tvImages struct {
	TVPoster []artwork `json:"tvposter"`
	TVThumb  []artwork `json:"tvthumb"`
	TVBanner []artwork `json:"tvbanner"`
}

// Fetch implements enrich.Provider.
func (p *Provider) Fetch(ctx context.Context, q enrich.Query) (enrich.Result, error) {
	id, err := p.resolver.SeriesID(ctx, q.SeriesName)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("resolve series id: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.config.BaseURL+"/tv/"+url.PathEscape(id)+"?"+url.Values{"api_key": {p.config.APIKey}}.Encode(), nil)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("create request: %w", err)
	}

	var images tvImages
	if err := enrich.DoJSON(p.httpClient, p.limiter, providerID, req, &images); err != nil {
		return enrich.Result{}, err
	}

	for _, set := range [][]artwork{images.TVPoster, images.TVThumb, images.TVBanner} {
		if len(set) > 0 && set[0].URL != "" {
			return enrich.Result{ImageURL: set[0].URL}, nil
		}
	}
	return enrich.Result{}, enrich.ErrNotFound
}
