// Package enrich fills in missing synopsis and artwork for episodic events
// from an ordered chain of external metadata providers.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/mediahook/internal/domain"
)

// ErrNotFound is returned by a provider that has no match for a query.
// It does not count as a provider failure.
var ErrNotFound = errors.New("no match found")

// Capability describes what a provider can supply.
type Capability uint8

// Capabilities.
const (
	CapMetadata Capability = 1 << iota
	CapImage
)

// Has reports whether c includes all of other.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var parts []string
	if c.Has(CapMetadata) {
		parts = append(parts, "metadata")
	}
	if c.Has(CapImage) {
		parts = append(parts, "image")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Query identifies the episode or series to look up. Year is the year
// the source reported for the item, which for an episode is its own air
// year rather than the series premiere.
type Query struct {
	SeriesName string
	Season     int
	Episode    int
	Year       int
	ItemType   domain.ItemType
}

// Key identifies q in caches.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", strings.ToLower(strings.TrimSpace(q.SeriesName)), q.ItemType, q.Season, q.Episode, q.Year)
}

// Result holds the fields a provider found. Empty fields mean "not found".
type Result struct {
	Overview     string
	ImageURL     string
	EpisodeTitle string
}

// Provider is an external metadata or artwork source.
type Provider interface {
	ID() string
	Capabilities() Capability
	Fetch(ctx context.Context, q Query) (Result, error)
}
