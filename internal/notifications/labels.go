package notifications

import (
	"github.com/bissquit/mediahook/internal/domain"
	"golang.org/x/text/language"
)

// labels holds the user-visible strings of one display language.
type labels struct {
	typeNames map[domain.ItemType]string
	headline  string // format verb receives the type name

	seriesName    string
	movieName     string
	seasonNumber  string
	seasonName    string
	episodeNumber string
	episodeName   string
	albumName     string
	songName      string
	artist        string
	year          string
	name          string

	synopsis     string
	runtime      string
	movieRuntime string
	minutes      string // format verb receives the minute count
	dataSource   string
}

var chineseLabels = labels{
	typeNames: map[domain.ItemType]string{
		domain.ItemTypeMovie:   "电影",
		domain.ItemTypeSeries:  "剧集",
		domain.ItemTypeSeason:  "剧季",
		domain.ItemTypeEpisode: "单集",
		domain.ItemTypeAlbum:   "专辑",
		domain.ItemTypeSong:    "歌曲",
		domain.ItemTypeVideo:   "视频",
		domain.ItemTypeUnknown: "媒体",
	},
	headline: "新%s上线",

	seriesName:    "剧集名称",
	movieName:     "电影名称",
	seasonNumber:  "季号",
	seasonName:    "季名称",
	episodeNumber: "集号",
	episodeName:   "集名称",
	albumName:     "专辑名称",
	songName:      "歌曲名称",
	artist:        "艺术家",
	year:          "年份",
	name:          "名称",

	synopsis:     "剧情简介",
	runtime:      "时长",
	movieRuntime: "片长",
	minutes:      "%d分钟",
	dataSource:   "数据来源",
}

var englishLabels = labels{
	typeNames: map[domain.ItemType]string{
		domain.ItemTypeMovie:   "movie",
		domain.ItemTypeSeries:  "series",
		domain.ItemTypeSeason:  "season",
		domain.ItemTypeEpisode: "episode",
		domain.ItemTypeAlbum:   "album",
		domain.ItemTypeSong:    "song",
		domain.ItemTypeVideo:   "video",
		domain.ItemTypeUnknown: "media",
	},
	headline: "New %s available",

	seriesName:    "Series",
	movieName:     "Movie",
	seasonNumber:  "Season",
	seasonName:    "Season title",
	episodeNumber: "Episode",
	episodeName:   "Episode title",
	albumName:     "Album",
	songName:      "Song",
	artist:        "Artist",
	year:          "Year",
	name:          "Title",

	synopsis:     "Synopsis",
	runtime:      "Runtime",
	movieRuntime: "Runtime",
	minutes:      "%d min",
	dataSource:   "Data source",
}

// supportedLanguages is ordered like labelSets; the first entry is the
// fallback for unmatched tags.
var (
	supportedLanguages = []language.Tag{language.Chinese, language.English}
	labelSets          = []*labels{&chineseLabels, &englishLabels}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

// labelsFor picks the label set closest to the BCP 47 tag lang.
func labelsFor(lang string) *labels {
	tag, err := language.Parse(lang)
	if err != nil {
		return labelSets[0]
	}
	_, idx, _ := languageMatcher.Match(tag)
	return labelSets[idx]
}

var typeEmoji = map[domain.ItemType]string{
	domain.ItemTypeMovie:   "🎬",
	domain.ItemTypeSeries:  "📺",
	domain.ItemTypeSeason:  "📺",
	domain.ItemTypeEpisode: "📺",
	domain.ItemTypeAlbum:   "🎵",
	domain.ItemTypeSong:    "🎶",
	domain.ItemTypeVideo:   "📹",
}

const defaultTypeEmoji = "🌟"

var platformPrefix = map[string]string{
	"aiocqhttp":  "🤖",
	"napcat":     "🤖",
	"llonebot":   "🤖",
	"onebot":     "🤖",
	"qqofficial": "🤖",
	"telegram":   "✈️",
	"gewechat":   "💬",
	"lark":       "🚀",
	"dingtalk":   "📱",
	"discord":    "🎮",
	"wecom":      "💼",
}

const defaultPlatformPrefix = "📢"

var sourceLabels = map[domain.SourceTag]string{
	domain.SourceJellyfin:  "Jellyfin",
	domain.SourceEmby:      "Emby",
	domain.SourcePlex:      "Plex",
	domain.SourceSonarr:    "Sonarr",
	domain.SourceRadarr:    "Radarr",
	domain.SourceOverseerr: "Overseerr",
	domain.SourceTautulli:  "Tautulli",
	domain.SourceAniRSS:    "Ani-RSS",
}

var providerLabels = map[string]string{
	"tmdb":    "TMDB",
	"tvdb":    "TheTVDB",
	"fanart":  "Fanart.tv",
	"bangumi": "BGM.TV",
}
