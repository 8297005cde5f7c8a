package classify

import (
	"strings"

	"github.com/bissquit/mediahook/internal/domain"
)

var sonarrMarkers = []string{
	"series",
	"episodes",
	"episodeFile",
	"series.tvdbId",
	"series.titleSlug",
	"series.tvMazeId",
}

type sonarrRecognizer struct {
	threshold int
}

func (r *sonarrRecognizer) Source() domain.SourceTag { return domain.SourceSonarr }

func (r *sonarrRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "sonarr") {
		return true
	}
	return countMarkers(p.Data, sonarrMarkers) >= r.threshold
}

func (r *sonarrRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	series := obj(p.Data, "series")
	if series == nil {
		return domain.CanonicalEvent{}, errNoMetadata
	}

	ev := domain.CanonicalEvent{
		ItemType:   domain.ItemTypeSeries,
		SeriesName: str(series, "title"),
		ItemName:   str(series, "title"),
		Year:       num(series, "year"),
		Overview:   str(series, "overview"),
		ImageURL:   arrImage(series, "poster"),
	}

	episodes := list(p.Data, "episodes")
	if len(episodes) > 0 {
		if first, ok := episodes[0].(map[string]any); ok {
			ev.ItemType = domain.ItemTypeEpisode
			ev.ItemName = str(first, "title")
			ev.SeasonNumber, ev.SeasonKnown = season(first, "seasonNumber")
			ev.EpisodeNumber = num(first, "episodeNumber")
			if o := str(first, "overview"); o != "" {
				ev.Overview = o
			}
		}
	}
	return ev, nil
}

var radarrMarkers = []string{
	"movie",
	"remoteMovie",
	"movieFile",
	"movie.tmdbId",
	"movie.imdbId",
	"movie.folderPath",
}

type radarrRecognizer struct {
	threshold int
}

func (r *radarrRecognizer) Source() domain.SourceTag { return domain.SourceRadarr }

func (r *radarrRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "radarr") {
		return true
	}
	return countMarkers(p.Data, radarrMarkers) >= r.threshold
}

func (r *radarrRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	movie := obj(p.Data, "movie")
	if movie == nil {
		movie = obj(p.Data, "remoteMovie")
	}
	if movie == nil {
		return domain.CanonicalEvent{}, errNoMetadata
	}

	return domain.CanonicalEvent{
		ItemType: domain.ItemTypeMovie,
		ItemName: str(movie, "title"),
		Year:     num(movie, "year"),
		Overview: str(movie, "overview"),
		ImageURL: arrImage(movie, "poster"),
	}, nil
}

// arrImage picks the remote URL of the first image with the given cover type.
func arrImage(m map[string]any, coverType string) string {
	for _, raw := range list(m, "images") {
		img, ok := raw.(map[string]any)
		if !ok || !strings.EqualFold(str(img, "coverType"), coverType) {
			continue
		}
		if u := absoluteURL(str(img, "remoteUrl", "url")); u != "" {
			return u
		}
	}
	return ""
}

var overseerrMarkers = []string{
	"notification_type",
	"subject",
	"media",
	"request",
	"media.media_type",
	"media.tmdbId",
}

type overseerrRecognizer struct {
	threshold int
}

func (r *overseerrRecognizer) Source() domain.SourceTag { return domain.SourceOverseerr }

func (r *overseerrRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "overseerr") || headerHint(p.Headers, "jellyseerr") {
		return true
	}
	return countMarkers(p.Data, overseerrMarkers) >= r.threshold
}

func (r *overseerrRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	itemType := domain.ItemTypeUnknown
	switch strings.ToLower(str(p.Data, "media.media_type")) {
	case "movie":
		itemType = domain.ItemTypeMovie
	case "tv":
		itemType = domain.ItemTypeSeries
	}

	ev := domain.CanonicalEvent{
		ItemType: itemType,
		ItemName: str(p.Data, "subject"),
		Overview: str(p.Data, "message"),
		ImageURL: absoluteURL(str(p.Data, "image")),
	}
	if itemType == domain.ItemTypeSeries {
		ev.SeriesName = ev.ItemName
	}
	return ev, nil
}
