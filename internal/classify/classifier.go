// Package classify identifies the system a webhook came from and converts
// its payload into a domain.CanonicalEvent.
package classify

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bissquit/mediahook/internal/domain"
	"golang.org/x/text/cases"
)

// DefaultMarkerThreshold is how many source-distinctive keys must be present
// before a payload is attributed to that source without header hints.
const DefaultMarkerThreshold = 3

// Recognizer detects and normalizes one source.
type Recognizer interface {
	Source() domain.SourceTag
	CanHandle(p Payload) bool
	Normalize(p Payload) (domain.CanonicalEvent, error)
}

// Options tunes classification.
type Options struct {
	MarkerThreshold int
}

// Classifier evaluates recognizers in priority order. The generic
// recognizer is always last and always matches.
type Classifier struct {
	recognizers []Recognizer
	generic     Recognizer
}

// New builds the default recognizer table:
// anirss, emby, jellyfin, plex, sonarr, radarr, overseerr, generic.
func New(opts Options) *Classifier {
	if opts.MarkerThreshold < 1 {
		opts.MarkerThreshold = DefaultMarkerThreshold
	}
	t := opts.MarkerThreshold

	return NewWithRecognizers(
		&aniRSSRecognizer{threshold: t},
		&embyRecognizer{threshold: t},
		&jellyfinRecognizer{threshold: t},
		&plexRecognizer{threshold: t},
		&sonarrRecognizer{threshold: t},
		&radarrRecognizer{threshold: t},
		&overseerrRecognizer{threshold: t},
	)
}

// NewWithRecognizers builds a classifier from an explicit priority list.
// The generic recognizer is appended automatically.
func NewWithRecognizers(recognizers ...Recognizer) *Classifier {
	return &Classifier{
		recognizers: recognizers,
		generic:     genericRecognizer{},
	}
}

// Classify returns the canonical event for p. A recognizer that fails or
// panics is replaced by the generic recognizer.
func (c *Classifier) Classify(p Payload) domain.CanonicalEvent {
	for _, r := range c.recognizers {
		if !safeCanHandle(r, p) {
			continue
		}

		ev, err := safeNormalize(r, p)
		if err == nil {
			return finalize(ev, r.Source(), p)
		}
		slog.Warn("recognizer failed, falling back to generic",
			"source", r.Source(),
			"error", err,
		)
		break
	}

	ev, err := safeNormalize(c.generic, p)
	if err != nil {
		slog.Error("generic recognizer failed", "error", err)
		ev = domain.CanonicalEvent{}
	}
	return finalize(ev, ev.Source, p)
}

func finalize(ev domain.CanonicalEvent, source domain.SourceTag, p Payload) domain.CanonicalEvent {
	if ev.ItemType == "" {
		ev.ItemType = domain.ItemTypeUnknown
	}
	if ev.Source == "" {
		ev.Source = source
	}
	if ev.Source == "" {
		ev.Source = domain.SourceGeneric
	}
	ev.SeriesName = strings.TrimSpace(ev.SeriesName)
	ev.ItemName = strings.TrimSpace(ev.ItemName)
	if ev.RawPayload == nil {
		ev.RawPayload = p.Data
	}
	return ev
}

func safeCanHandle(r Recognizer, p Payload) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("recognizer panicked in CanHandle", "source", r.Source(), "panic", rec)
			ok = false
		}
	}()
	return r.CanHandle(p)
}

func safeNormalize(r Recognizer, p Payload) (ev domain.CanonicalEvent, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("recognizer %s panicked: %v", r.Source(), rec)
		}
	}()
	return r.Normalize(p)
}

// headerHint reports whether any identifying header contains token,
// compared case-insensitively.
func headerHint(h http.Header, token string) bool {
	if h == nil {
		return false
	}
	// Casers keep state and are not shared between goroutines.
	folder := cases.Fold()
	token = folder.String(token)
	for _, name := range []string{"User-Agent", "Authorization", "X-Emby-Authorization", "Referer", "X-Application"} {
		if strings.Contains(folder.String(h.Get(name)), token) {
			return true
		}
	}
	return false
}
