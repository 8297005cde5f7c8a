package classify

import (
	"strings"

	"github.com/bissquit/mediahook/internal/domain"
)

// sourceKeywords tag generic payloads by product names found in the body
// or headers. Order matters: the first hit wins.
var sourceKeywords = []struct {
	keyword string
	source  domain.SourceTag
}{
	{"tautulli", domain.SourceTautulli},
	{"overseerr", domain.SourceOverseerr},
	{"jellyseerr", domain.SourceOverseerr},
	{"sonarr", domain.SourceSonarr},
	{"radarr", domain.SourceRadarr},
	{"jellyfin", domain.SourceJellyfin},
	{"emby", domain.SourceEmby},
	{"plex", domain.SourcePlex},
	{"ani-rss", domain.SourceAniRSS},
}

// genericRecognizer accepts anything and maps common field aliases.
type genericRecognizer struct{}

func (genericRecognizer) Source() domain.SourceTag { return domain.SourceGeneric }

func (genericRecognizer) CanHandle(Payload) bool { return true }

func (genericRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	d := p.Data
	if d == nil {
		d = map[string]any{}
	}

	ev := domain.CanonicalEvent{
		Source:         keywordSource(p),
		ItemType:       domain.ParseItemType(str(d, "ItemType", "Type", "item_type", "type", "media_type")),
		ItemName:       str(d, "Name", "name", "title", "Title"),
		SeriesName:     str(d, "SeriesName", "series_name", "show_name", "ShowName", "grandparent_title"),
		EpisodeNumber:  num(d, "EpisodeNumber", "episode_number", "IndexNumber", "episode", "media_index"),
		Year:           num(d, "Year", "year", "ProductionYear"),
		Overview:       str(d, "Overview", "overview", "Description", "description", "summary"),
		RuntimeMinutes: ticksToMinutes(num64(d, "RunTimeTicks")),
		RuntimeText:    str(d, "runtime", "Runtime", "duration"),
		ImageURL:       absoluteURL(str(d, "ImageUrl", "image_url", "poster_url", "thumb", "image")),
	}

	ev.SeasonNumber, ev.SeasonKnown = season(d, "SeasonNumber", "season_number", "ParentIndexNumber", "season", "parent_media_index")

	if ev.ItemType == domain.ItemTypeUnknown && ev.SeriesName != "" && ev.EpisodeNumber > 0 {
		ev.ItemType = domain.ItemTypeEpisode
	}
	if ev.ItemType == domain.ItemTypeSeries && ev.SeriesName == "" {
		ev.SeriesName = ev.ItemName
	}
	return ev, nil
}

func keywordSource(p Payload) domain.SourceTag {
	haystack := strings.ToLower(string(p.Raw))
	if p.Headers != nil {
		haystack += " " + strings.ToLower(p.Headers.Get("User-Agent"))
	}
	for _, k := range sourceKeywords {
		if strings.Contains(haystack, k.keyword) {
			return k.source
		}
	}
	return domain.SourceGeneric
}
