package classify

import (
	"github.com/bissquit/mediahook/internal/domain"
)

var embyMarkers = []string{
	"Item",
	"Server",
	"Event",
	"Item.Type",
	"Item.Id",
	"Item.ServerId",
	"Server.Name",
	"Server.Version",
}

type embyRecognizer struct {
	threshold int
}

func (r *embyRecognizer) Source() domain.SourceTag { return domain.SourceEmby }

func (r *embyRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "emby") || p.Headers.Get("X-Emby-Token") != "" {
		return true
	}
	return countMarkers(p.Data, embyMarkers) >= r.threshold
}

func (r *embyRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	item := obj(p.Data, "Item")
	if item == nil {
		return domain.CanonicalEvent{}, errNoMetadata
	}

	ev := domain.CanonicalEvent{
		ItemType:       domain.ParseItemType(str(item, "Type")),
		ItemName:       str(item, "Name"),
		Year:           num(item, "ProductionYear"),
		Overview:       str(item, "Overview"),
		RuntimeMinutes: ticksToMinutes(num64(item, "RunTimeTicks")),
	}

	switch ev.ItemType {
	case domain.ItemTypeEpisode:
		ev.SeriesName = str(item, "SeriesName")
		ev.SeasonNumber, ev.SeasonKnown = season(item, "ParentIndexNumber")
		ev.EpisodeNumber = num(item, "IndexNumber")
	case domain.ItemTypeSeason:
		ev.SeriesName = str(item, "SeriesName")
		ev.SeasonNumber, ev.SeasonKnown = season(item, "IndexNumber")
		if !ev.SeasonKnown {
			ev.SeasonNumber, ev.SeasonKnown = seasonFromName(ev.ItemName)
		}
	case domain.ItemTypeSeries:
		ev.SeriesName = ev.ItemName
	case domain.ItemTypeAlbum, domain.ItemTypeSong:
		ev.SeriesName = str(item, "AlbumArtist", "Album")
	}

	if id := str(item, "Id"); id != "" {
		ev.ImageURL = joinURL(str(p.Data, "Server.Url"), itemImagePath(id))
	}
	return ev, nil
}

var jellyfinMarkers = []string{
	"ItemType",
	"ItemId",
	"ServerId",
	"ServerName",
	"ServerVersion",
	"ServerUrl",
	"NotificationType",
	"NotificationUsername",
	"SeriesName",
	"SeasonNumber00",
	"EpisodeNumber00",
	"Provider_tmdb",
	"Provider_tvdb",
}

type jellyfinRecognizer struct {
	threshold int
}

func (r *jellyfinRecognizer) Source() domain.SourceTag { return domain.SourceJellyfin }

func (r *jellyfinRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "jellyfin") {
		return true
	}
	return countMarkers(p.Data, jellyfinMarkers) >= r.threshold
}

func (r *jellyfinRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	d := p.Data

	ev := domain.CanonicalEvent{
		ItemType:       domain.ParseItemType(str(d, "ItemType", "Type")),
		ItemName:       str(d, "Name"),
		SeriesName:     str(d, "SeriesName"),
		EpisodeNumber:  num(d, "EpisodeNumber", "IndexNumber"),
		Year:           num(d, "Year", "ProductionYear"),
		Overview:       str(d, "Overview"),
		RuntimeMinutes: ticksToMinutes(num64(d, "RunTimeTicks")),
		RuntimeText:    str(d, "RunTime"),
	}

	ev.SeasonNumber, ev.SeasonKnown = season(d, "SeasonNumber", "ParentIndexNumber")

	if (ev.ItemType == domain.ItemTypeSeries || ev.ItemType == domain.ItemTypeSeason) && ev.SeriesName == "" {
		ev.SeriesName = ev.ItemName
	}
	if ev.ItemType == domain.ItemTypeSeason && !ev.SeasonKnown {
		ev.SeasonNumber, ev.SeasonKnown = seasonFromName(ev.ItemName)
	}
	if ev.ItemType == domain.ItemTypeEpisode && (!ev.SeasonKnown || ev.EpisodeNumber == 0) {
		if s, e, ok := episodeFromPath(str(d, "Path", "FilePath")); ok {
			if !ev.SeasonKnown {
				ev.SeasonNumber, ev.SeasonKnown = s, true
			}
			if ev.EpisodeNumber == 0 {
				ev.EpisodeNumber = e
			}
		}
	}

	ev.ImageURL = absoluteURL(str(d, "ImageUrl", "PrimaryImageUrl"))
	if ev.ImageURL == "" {
		if id := str(d, "ItemId"); id != "" {
			ev.ImageURL = joinURL(str(d, "ServerUrl"), itemImagePath(id))
		}
	}
	return ev, nil
}

var plexMarkers = []string{
	"Metadata",
	"Player",
	"Account",
	"Metadata.ratingKey",
	"Metadata.librarySectionType",
	"Metadata.guid",
	"Server.uuid",
}

var plexTypes = map[string]domain.ItemType{
	"movie":   domain.ItemTypeMovie,
	"episode": domain.ItemTypeEpisode,
	"season":  domain.ItemTypeSeason,
	"show":    domain.ItemTypeSeries,
	"track":   domain.ItemTypeSong,
	"album":   domain.ItemTypeAlbum,
	"clip":    domain.ItemTypeVideo,
}

type plexRecognizer struct {
	threshold int
}

func (r *plexRecognizer) Source() domain.SourceTag { return domain.SourcePlex }

func (r *plexRecognizer) CanHandle(p Payload) bool {
	if headerHint(p.Headers, "plex") || p.Headers.Get("X-Plex-Token") != "" {
		return true
	}
	return countMarkers(p.Data, plexMarkers) >= r.threshold
}

func (r *plexRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	md := obj(p.Data, "Metadata")
	if md == nil {
		return domain.CanonicalEvent{}, errNoMetadata
	}

	itemType, ok := plexTypes[str(md, "type")]
	if !ok {
		itemType = domain.ItemTypeUnknown
	}

	ev := domain.CanonicalEvent{
		ItemType:       itemType,
		ItemName:       str(md, "title"),
		Year:           num(md, "year"),
		Overview:       str(md, "summary"),
		RuntimeMinutes: num(md, "duration") / 60000,
		ImageURL:       absoluteURL(str(md, "thumb")),
	}

	switch itemType {
	case domain.ItemTypeEpisode:
		ev.SeriesName = str(md, "grandparentTitle")
		ev.SeasonNumber, ev.SeasonKnown = season(md, "parentIndex")
		ev.EpisodeNumber = num(md, "index")
	case domain.ItemTypeSeason:
		ev.SeriesName = str(md, "parentTitle")
		ev.SeasonNumber, ev.SeasonKnown = season(md, "index")
	case domain.ItemTypeSeries:
		ev.SeriesName = ev.ItemName
	case domain.ItemTypeSong, domain.ItemTypeAlbum:
		ev.SeriesName = str(md, "grandparentTitle", "parentTitle")
	}
	return ev, nil
}
