package enrich

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/mediahook/internal/domain"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 10 * time.Second

// Translator rewrites an overview into the display language. It returns
// text unchanged when no translation is needed.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Pipeline queries providers in priority order.
type Pipeline struct {
	providers  []Provider
	timeout    time.Duration
	cache      Cache
	translator Translator
}

// NewPipeline creates a pipeline over providers in the given order.
func NewPipeline(timeout time.Duration, providers ...Provider) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{providers: providers, timeout: timeout}
}

// WithCache makes the pipeline consult c before any provider and store
// merged results in it.
func (p *Pipeline) WithCache(c Cache) *Pipeline {
	p.cache = c
	return p
}

// WithTranslator translates the final overview with t.
func (p *Pipeline) WithTranslator(t Translator) *Pipeline {
	p.translator = t
	return p
}

// Providers returns the provider IDs in priority order.
func (p *Pipeline) Providers() []string {
	ids := make([]string, len(p.providers))
	for i, prov := range p.providers {
		ids[i] = prov.ID()
	}
	return ids
}

// Eligible reports whether ev is worth enriching.
func Eligible(ev domain.CanonicalEvent) bool {
	return !ev.Passthrough && ev.ItemType.IsEpisodic() && strings.TrimSpace(ev.SeriesName) != ""
}

// Enrich returns ev with overview, image and episode title filled from the
// first providers able to supply them. The overview comes from a
// metadata provider and the image from an image provider; they may differ.
// Provider errors are logged and skipped. When nothing is found the event
// is returned unchanged with DataSourceTag "original".
//
// A cache hit skips the providers entirely. Enriched results are
// translated, when a translator is set, before they are cached.
func (p *Pipeline) Enrich(ctx context.Context, ev domain.CanonicalEvent) domain.EnrichedEvent {
	out := domain.EnrichedEvent{CanonicalEvent: ev, DataSourceTag: domain.DataSourceOriginal}
	if p == nil || len(p.providers) == 0 || !Eligible(ev) {
		return out
	}

	q := Query{
		SeriesName: strings.TrimSpace(ev.SeriesName),
		Season:     ev.SeasonNumber,
		Episode:    ev.EpisodeNumber,
		Year:       ev.Year,
		ItemType:   ev.ItemType,
	}
	key := q.Key()

	if entry, ok := p.lookup(ctx, key); ok {
		return applyEntry(out, entry)
	}

	out = p.query(ctx, out, q)
	p.translate(ctx, &out)

	if out.DataSourceTag != domain.DataSourceOriginal {
		p.remember(ctx, key, out)
	}
	return out
}

// query walks the providers and fills out from the first ones able to
// supply an overview and an image.
func (p *Pipeline) query(ctx context.Context, out domain.EnrichedEvent, q Query) domain.EnrichedEvent {
	var (
		overviewFrom string
		imageFrom    string
	)

	for _, prov := range p.providers {
		if overviewFrom != "" && imageFrom != "" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		caps := prov.Capabilities()
		wantMeta := overviewFrom == "" && caps.Has(CapMetadata)
		wantImage := imageFrom == "" && caps.Has(CapImage)
		if !wantMeta && !wantImage {
			continue
		}

		res, err := p.fetch(ctx, prov, q)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				slog.Debug("enrichment provider has no match", "provider", prov.ID(), "series", q.SeriesName)
			} else {
				slog.Warn("enrichment provider failed", "provider", prov.ID(), "series", q.SeriesName, "error", err)
			}
			continue
		}

		if wantMeta {
			if res.EpisodeTitle != "" && out.EpisodeTitle == "" {
				out.EpisodeTitle = res.EpisodeTitle
			}
			if res.Overview != "" {
				out.Overview = res.Overview
				overviewFrom = prov.ID()
			}
		}
		if wantImage && res.ImageURL != "" {
			out.ImageURL = res.ImageURL
			imageFrom = prov.ID()
		}
	}

	out.DataSourceTag = sourceTag(overviewFrom, imageFrom)
	return out
}

func (p *Pipeline) translate(ctx context.Context, out *domain.EnrichedEvent) {
	if p.translator == nil || strings.TrimSpace(out.Overview) == "" {
		return
	}
	text, err := p.translator.Translate(ctx, out.Overview)
	if err != nil {
		slog.Warn("overview translation failed", "series", out.SeriesName, "error", err)
		return
	}
	out.Overview = text
}

func (p *Pipeline) lookup(ctx context.Context, key string) (CacheEntry, bool) {
	if p.cache == nil {
		return CacheEntry{}, false
	}
	entry, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("metadata cache read failed", "error", err)
		recordCacheLookup("error")
		return CacheEntry{}, false
	case !ok:
		recordCacheLookup("miss")
		return CacheEntry{}, false
	}
	recordCacheLookup("hit")
	return entry, true
}

func (p *Pipeline) remember(ctx context.Context, key string, out domain.EnrichedEvent) {
	if p.cache == nil {
		return
	}
	err := p.cache.Set(ctx, key, CacheEntry{
		Overview:     out.Overview,
		ImageURL:     out.ImageURL,
		EpisodeTitle: out.EpisodeTitle,
		Source:       out.DataSourceTag,
	})
	if err != nil {
		slog.Warn("metadata cache write failed", "error", err)
	}
}

// applyEntry overlays the non-empty cached fields onto out.
func applyEntry(out domain.EnrichedEvent, e CacheEntry) domain.EnrichedEvent {
	if e.Overview != "" {
		out.Overview = e.Overview
	}
	if e.ImageURL != "" {
		out.ImageURL = e.ImageURL
	}
	if e.EpisodeTitle != "" && out.EpisodeTitle == "" {
		out.EpisodeTitle = e.EpisodeTitle
	}
	if e.Source != "" {
		out.DataSourceTag = e.Source
	}
	return out
}

func (p *Pipeline) fetch(ctx context.Context, prov Provider, q Query) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return prov.Fetch(ctx, q)
}

// sourceTag names the providers that supplied the final overview and image.
func sourceTag(overviewFrom, imageFrom string) string {
	switch {
	case overviewFrom == "" && imageFrom == "":
		return domain.DataSourceOriginal
	case overviewFrom == "" || overviewFrom == imageFrom:
		return imageFrom
	case imageFrom == "":
		return overviewFrom
	default:
		return overviewFrom + "+" + imageFrom
	}
}
