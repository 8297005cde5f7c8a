// Package tmdb looks up series synopsis and artwork on The Movie Database.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bissquit/mediahook/internal/domain"
	"github.com/bissquit/mediahook/internal/enrich"
	"golang.org/x/time/rate"
)

const (
	providerID          = "tmdb"
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
	defaultLanguage     = "zh-CN"
	defaultTimeout      = 10 * time.Second
	requestInterval     = 250 * time.Millisecond
)

// Config holds TMDB settings.
type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Timeout      time.Duration
}

// Provider implements enrich.Provider for TMDB.
type Provider struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a TMDB provider. An API key is required.
func New(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("tmdb provider: api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.ImageBaseURL == "" {
		config.ImageBaseURL = defaultImageBaseURL
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
	}, nil
}

// ID implements enrich.Provider.
func (p *Provider) ID() string { return providerID }

// Capabilities implements enrich.Provider.
func (p *Provider) Capabilities() enrich.Capability { return enrich.CapMetadata | enrich.CapImage }

type searchResponse struct {
	Results []show `json:"results"`
}

type show struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Overview   string `json:"overview"`
	PosterPath string `json:"poster_path"`
}

type episode struct {
	Name      string `json:"name"`
	Overview  string `json:"overview"`
	StillPath string `json:"still_path"`
}

type season struct {
	Name       string `json:"name"`
	Overview   string `json:"overview"`
	PosterPath string `json:"poster_path"`
}

// Fetch searches the series and, when season and episode are known,
// prefers episode-level synopsis and still over the show's.
func (p *Provider) Fetch(ctx context.Context, q enrich.Query) (enrich.Result, error) {
	s, err := p.searchTV(ctx, q.SeriesName, premiereYear(q))
	if err != nil {
		return enrich.Result{}, err
	}

	res := enrich.Result{
		Overview: s.Overview,
		ImageURL: p.imageURL(s.PosterPath),
	}

	switch {
	case q.Season > 0 && q.Episode > 0:
		var ep episode
		err := p.get(ctx, fmt.Sprintf("/tv/%d/season/%d/episode/%d", s.ID, q.Season, q.Episode), nil, &ep)
		switch {
		case err == nil:
			res.EpisodeTitle = ep.Name
			if ep.Overview != "" {
				res.Overview = ep.Overview
			}
			if ep.StillPath != "" {
				res.ImageURL = p.imageURL(ep.StillPath)
			}
		case !errors.Is(err, enrich.ErrNotFound):
			return enrich.Result{}, err
		}

	case q.Season > 0:
		var se season
		err := p.get(ctx, fmt.Sprintf("/tv/%d/season/%d", s.ID, q.Season), nil, &se)
		switch {
		case err == nil:
			if se.Overview != "" {
				res.Overview = se.Overview
			}
			if se.PosterPath != "" {
				res.ImageURL = p.imageURL(se.PosterPath)
			}
		case !errors.Is(err, enrich.ErrNotFound):
			return enrich.Result{}, err
		}
	}

	if res.Overview == "" && res.ImageURL == "" {
		return enrich.Result{}, enrich.ErrNotFound
	}
	return res, nil
}

// premiereYear returns the year usable as a first-air-date filter. Only a
// series item reports the premiere year; episodes and seasons carry their
// own air year, which would hide every season after the first.
func premiereYear(q enrich.Query) int {
	if q.ItemType == domain.ItemTypeSeries && q.Season == 0 && q.Episode == 0 {
		return q.Year
	}
	return 0
}

// searchTV returns the best match for name. A year filter that yields
// nothing is retried without it.
func (p *Provider) searchTV(ctx context.Context, name string, year int) (show, error) {
	params := url.Values{"query": {name}}
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var resp searchResponse
	if err := p.get(ctx, "/search/tv", params, &resp); err != nil {
		return show{}, err
	}
	if len(resp.Results) == 0 {
		if year > 0 {
			return p.searchTV(ctx, name, 0)
		}
		return show{}, enrich.ErrNotFound
	}
	return resp.Results[0], nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", p.config.APIKey)
	params.Set("language", p.config.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return enrich.DoJSON(p.httpClient, p.limiter, providerID, req, out)
}

func (p *Provider) imageURL(path string) string {
	if path == "" {
		return ""
	}
	return p.config.ImageBaseURL + "/w500" + path
}
