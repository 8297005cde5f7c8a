// Package domain contains the canonical media event model shared by the pipeline.
package domain

import "strings"

// ItemType is the kind of media item a notification is about.
type ItemType string

// Item types.
const (
	ItemTypeMovie   ItemType = "Movie"
	ItemTypeSeries  ItemType = "Series"
	ItemTypeSeason  ItemType = "Season"
	ItemTypeEpisode ItemType = "Episode"
	ItemTypeAlbum   ItemType = "Album"
	ItemTypeSong    ItemType = "Song"
	ItemTypeVideo   ItemType = "Video"
	ItemTypeUnknown ItemType = "Unknown"
)

var itemTypeAliases = map[string]ItemType{
	"movie":   ItemTypeMovie,
	"film":    ItemTypeMovie,
	"series":  ItemTypeSeries,
	"show":    ItemTypeSeries,
	"tv":      ItemTypeSeries,
	"season":  ItemTypeSeason,
	"episode": ItemTypeEpisode,
	"album":   ItemTypeAlbum,
	"song":    ItemTypeSong,
	"track":   ItemTypeSong,
	"audio":   ItemTypeSong,
	"video":   ItemTypeVideo,
}

// ParseItemType maps a source-specific type string to an ItemType.
// Unrecognized values map to ItemTypeUnknown.
func ParseItemType(s string) ItemType {
	if t, ok := itemTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return ItemTypeUnknown
}

// IsEpisodic reports whether the item belongs to a series.
func (t ItemType) IsEpisodic() bool {
	return t == ItemTypeEpisode || t == ItemTypeSeason || t == ItemTypeSeries
}

// SourceTag names the system a notification originated from.
type SourceTag string

// Source tags.
const (
	SourceJellyfin  SourceTag = "jellyfin"
	SourceEmby      SourceTag = "emby"
	SourcePlex      SourceTag = "plex"
	SourceSonarr    SourceTag = "sonarr"
	SourceRadarr    SourceTag = "radarr"
	SourceOverseerr SourceTag = "overseerr"
	SourceTautulli  SourceTag = "tautulli"
	SourceAniRSS    SourceTag = "anirss"
	SourceGeneric   SourceTag = "generic"
)

// CanonicalEvent is the normalized, source-agnostic form of a notification.
// Empty strings and zero numbers mean "absent", except that SeasonKnown
// marks a reported season so that season 0 (specials) survives.
type CanonicalEvent struct {
	ItemType       ItemType
	SeriesName     string
	ItemName       string
	SeasonNumber   int
	SeasonKnown    bool
	EpisodeNumber  int
	Year           int
	Overview       string
	RuntimeMinutes int
	RuntimeText    string // used when RuntimeMinutes is zero
	ImageURL       string
	Source         SourceTag

	// Passthrough is set for sources that are delivered close to their
	// original text instead of being rendered from fields.
	Passthrough     bool
	PassthroughText string

	// RawPayload references the decoded payload the event was built from.
	RawPayload map[string]any
}

// DataSourceOriginal marks an event whose overview and image were not
// supplied by any enrichment provider.
const DataSourceOriginal = "original"

// EnrichedEvent is a CanonicalEvent after the enrichment pipeline ran.
type EnrichedEvent struct {
	CanonicalEvent

	EpisodeTitle  string
	DataSourceTag string
}

// Enriched reports whether any provider contributed data.
func (e EnrichedEvent) Enriched() bool {
	return e.DataSourceTag != "" && e.DataSourceTag != DataSourceOriginal
}
