// Package bangumi looks up anime subjects on bgm.tv.
package bangumi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"golang.org/x/time/rate"
)

const (
	providerID       = "bangumi"
	defaultBaseURL   = "https://api.bgm.tv"
	defaultUserAgent = "mediahook (https://github.com/bissquit/mediahook)"
	defaultTimeout   = 10 * time.Second

	subjectTypeAnime = 2
	episodeTypeMain  = 0
)

// Config holds Bangumi settings. The API rejects requests without a User-Agent.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Provider implements enrich.Provider for Bangumi.
type Provider struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Bangumi provider. No credentials are needed.
func New(config Config) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// ID implements enrich.Provider.
func (p *Provider) ID() string { return providerID }

// Capabilities implements enrich.Provider.
func (p *Provider) Capabilities() enrich.Capability { return enrich.CapMetadata | enrich.CapImage }

type searchResponse struct {
	List []struct {
		ID int `json:"id"`
	} `json:"list"`
}

type subject struct {
	Summary string `json:"summary"`
	Images  struct {
		Large  string `json:"large"`
		Common string `json:"common"`
	} `json:"images"`
}

type episodesResponse struct {
	Data []struct {
		Sort   float64 `json:"sort"`
		Ep     float64 `json:"ep"`
		Name   string  `json:"name"`
		NameCN string  `json:"name_cn"`
		Desc   string  `json:"desc"`
	} `json:"data"`
}

// Fetch implements enrich.Provider.
func (p *Provider) Fetch(ctx context.Context, q enrich.Query) (enrich.Result, error) {
	var found searchResponse
	err := p.get(ctx, "/search/subject/"+url.PathEscape(q.SeriesName),
		url.Values{"type": {strconv.Itoa(subjectTypeAnime)}, "responseGroup": {"small"}}, &found)
	if err != nil {
		return enrich.Result{}, err
	}
	if len(found.List) == 0 {
		return enrich.Result{}, enrich.ErrNotFound
	}
	id := strconv.Itoa(found.List[0].ID)

	var subj subject
	if err := p.get(ctx, "/v0/subjects/"+id, nil, &subj); err != nil {
		return enrich.Result{}, err
	}

	res := enrich.Result{Overview: subj.Summary, ImageURL: subj.Images.Large}
	if res.ImageURL == "" {
		res.ImageURL = subj.Images.Common
	}

	if q.Episode > 0 {
		var eps episodesResponse
		err := p.get(ctx, "/v0/episodes",
			url.Values{"subject_id": {id}, "type": {strconv.Itoa(episodeTypeMain)}}, &eps)
		if err != nil {
			return enrich.Result{}, err
		}
		for _, ep := range eps.Data {
			if int(ep.Ep) != q.Episode && int(ep.Sort) != q.Episode {
				continue
			}
			res.EpisodeTitle = ep.NameCN
			if res.EpisodeTitle == "" {
				res.EpisodeTitle = ep.Name
			}
			if ep.Desc != "" {
				res.Overview = ep.Desc
			}
			break
		}
	}

	if res.Overview == "" && res.ImageURL == "" {
		return enrich.Result{}, enrich.ErrNotFound
	}
	return res, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := p.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	return enrich.DoJSON(p.httpClient, p.limiter, providerID, req, out)
}
