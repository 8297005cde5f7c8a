// Package tvdb looks up series and episode synopsis on TheTVDB v4 API.
package tvdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	providerID      = "tvdb"
	defaultBaseURL  = "https://api4.thetvdb.com/v4"
	defaultLanguage = "zho"
	defaultTimeout  = 10 * time.Second
	requestInterval = 100 * time.Millisecond
	tokenLifetime   = 24*time.Hour - time.Minute
)

// Config holds TheTVDB settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string // three-letter code used to pick translated overviews
	Timeout  time.Duration
}

// Provider implements enrich.Provider for TheTVDB. It supplies metadata only.
type Provider struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New creates a TheTVDB provider. An API key is required.
func New(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("tvdb provider: api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Language == "" {
		config.Language = defaultLanguage
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		now:        time.Now,
	}, nil
}

// ID implements enrich.Provider.
func (p *Provider) ID() string { return providerID }

// Capabilities implements enrich.Provider.
func (p *Provider) Capabilities() enrich.Capability { return enrich.CapMetadata }

type envelope[T any] struct {
	Data T `json:"data"`
}

type searchResult struct {
	TVDBID    string            `json:"tvdb_id"`
	Name      string            `json:"name"`
	Overview  string            `json:"overview"`
	Overviews map[string]string `json:"overviews"`
}

type episodesPage struct {
	Episodes []episode `json:"episodes"`
}

type episode struct {
	Name     string `json:"name"`
	Overview string `json:"overview"`
}

// Fetch implements enrich.Provider.
func (p *Provider) Fetch(ctx context.Context, q enrich.Query) (enrich.Result, error) {
	series, err := p.search(ctx, q.SeriesName)
	if err != nil {
		return enrich.Result{}, err
	}

	res := enrich.Result{Overview: series.Overview}
	if translated := series.Overviews[p.config.Language]; translated != "" {
		res.Overview = translated
	}

	if q.Season > 0 && q.Episode > 0 {
		params := url.Values{
			"season":        {strconv.Itoa(q.Season)},
			"episodeNumber": {strconv.Itoa(q.Episode)},
		}
		var page envelope[episodesPage]
		err := p.get(ctx, "/series/"+url.PathEscape(series.TVDBID)+"/episodes/default", params, &page)
		switch {
		case err == nil && len(page.Data.Episodes) > 0:
			ep := page.Data.Episodes[0]
			res.EpisodeTitle = ep.Name
			if ep.Overview != "" {
				res.Overview = ep.Overview
			}
		case err != nil && !errors.Is(err, enrich.ErrNotFound):
			return enrich.Result{}, err
		}
	}

	if res.Overview == "" {
		return enrich.Result{}, enrich.ErrNotFound
	}
	return res, nil
}

// SeriesID resolves a series name to its TheTVDB id.
func (p *Provider) SeriesID(ctx context.Context, name string) (string, error) {
	s, err := p.search(ctx, name)
	if err != nil {
		return "", err
	}
	return s.TVDBID, nil
}

func (p *Provider) search(ctx context.Context, name string) (searchResult, error) {
	var resp envelope[[]searchResult]
	if err := p.get(ctx, "/search", url.Values{"query": {name}, "type": {"series"}}, &resp); err != nil {
		return searchResult{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].TVDBID == "" {
		return searchResult{}, enrich.ErrNotFound
	}
	return resp.Data[0], nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := p.authToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	err = enrich.DoJSON(p.httpClient, p.limiter, providerID, req, out)
	var statusErr *enrich.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		p.invalidateToken()
	}
	return err
}

// authToken returns a cached bearer token, logging in when it is missing
// or expired. The lock is not held during the login request.
func (p *Provider) authToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Before(p.tokenExp) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	body, err := json.Marshal(map[string]string{"apikey": p.config.APIKey})
	if err != nil {
		return "", fmt.Errorf("marshal login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp envelope[struct {
		Token string `json:"token"`
	}]
	if err := enrich.DoJSON(p.httpClient, p.limiter, providerID, req, &resp); err != nil {
		return "", fmt.Errorf("tvdb login: %w", err)
	}
	if resp.Data.Token == "" {
		return "", errors.New("tvdb login: empty token")
	}

	p.mu.Lock()
	p.token = resp.Data.Token
	p.tokenExp = p.now().Add(tokenLifetime)
	p.mu.Unlock()

	return resp.Data.Token, nil
}

func (p *Provider) invalidateToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}
