package notifications

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bissquit/mediahook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, config RendererConfig) *Renderer {
	t.Helper()
	r, err := NewRenderer(config)
	require.NoError(t, err)
	return r
}

func episodeEvent() domain.EnrichedEvent {
	return domain.EnrichedEvent{
		CanonicalEvent: domain.CanonicalEvent{
			ItemType:       domain.ItemTypeEpisode,
			SeriesName:     "进击的巨人",
			ItemName:       "第28话",
			SeasonNumber:   4,
			EpisodeNumber:  8,
			Year:           2013,
			Overview:       "墙外的世界&amp;自由",
			RuntimeMinutes: 24,
			ImageURL:       "https://img/still.jpg",
			Source:         domain.SourceJellyfin,
		},
		EpisodeTitle:  "人类的黎明",
		DataSourceTag: "tmdb",
	}
}

func TestRenderer_SectionedEpisode(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{
		Platform:           "aiocqhttp",
		ShowPlatformPrefix: true,
		ShowSourceLabel:    true,
		Language:           "zh",
	})

	msg, err := r.Render(episodeEvent(), false)
	require.NoError(t, err)

	want := strings.Join([]string{
		"🤖 📺 新单集上线 [Jellyfin]",
		"",
		"剧集名称: 进击的巨人 (2013)",
		"集号: S04E08",
		"集名称: 人类的黎明",
		"",
		"剧情简介:",
		"墙外的世界&自由",
		"",
		"时长: 24分钟",
		"",
		"✨ 数据来源: TMDB",
	}, "\n")
	assert.Equal(t, want, msg.Text)
	assert.Equal(t, "https://img/still.jpg", msg.ImageURL)
	assert.Equal(t, domain.SourceJellyfin, msg.Source)
}

func TestRenderer_CompactEpisode(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Platform: "telegram", ShowPlatformPrefix: true, Language: "zh-CN"})

	msg, err := r.Render(episodeEvent(), true)
	require.NoError(t, err)

	want := strings.Join([]string{
		"✈️ 📺 新单集上线",
		"剧集名称: 进击的巨人 (2013)",
		"集号: S04E08",
		"集名称: 人类的黎明",
		"剧情简介: 墙外的世界&自由",
		"时长: 24分钟",
		"✨ 数据来源: TMDB",
	}, "\n")
	assert.Equal(t, want, msg.Text)
	assert.NotContains(t, msg.Text, "\n\n")
}

func TestRenderer_Header(t *testing.T) {
	ev := domain.EnrichedEvent{CanonicalEvent: domain.CanonicalEvent{
		ItemType: domain.ItemTypeMovie,
		ItemName: "Dune",
		Source:   domain.SourceGeneric,
	}}

	tests := []struct {
		name   string
		config RendererConfig
		want   string
	}{
		{"no prefix", RendererConfig{Platform: "aiocqhttp"}, "🎬 新电影上线"},
		{"unknown platform prefix", RendererConfig{Platform: "matrix", ShowPlatformPrefix: true}, "📢 🎬 新电影上线"},
		{"generic source has no label", RendererConfig{ShowSourceLabel: true}, "🎬 新电影上线"},
		{"english", RendererConfig{Language: "en-US"}, "🎬 New movie available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := newTestRenderer(t, tt.config).Render(ev, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.SplitN(msg.Text, "\n", 2)[0])
		})
	}
}

func TestRenderer_IdentityByType(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.CanonicalEvent
		want []string
	}{
		{
			name: "season",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeSeason, SeriesName: "Frieren", ItemName: "Season 2", SeasonNumber: 2},
			want: []string{"剧集名称: Frieren", "季号: S02", "季名称: Season 2"},
		},
		{
			name: "movie",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeMovie, ItemName: "Dune", Year: 2021, RuntimeMinutes: 155},
			want: []string{"电影名称: Dune (2021)", "片长: 155分钟"},
		},
		{
			name: "album",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeAlbum, ItemName: "Random Access Memories", SeriesName: "Daft Punk", Year: 2013},
			want: []string{"专辑名称: Random Access Memories (2013)", "艺术家: Daft Punk"},
		},
		{
			name: "song",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeSong, ItemName: "Get Lucky", SeriesName: "Daft Punk", Year: 2013},
			want: []string{"歌曲名称: Get Lucky", "艺术家: Daft Punk", "年份: 2013"},
		},
		{
			name: "unknown",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeUnknown, SeriesName: "Something", RuntimeText: "1h 2m"},
			want: []string{"名称: Something", "时长: 1h 2m"},
		},
		{
			name: "special episode",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeEpisode, SeriesName: "Show", ItemName: "OVA", SeasonNumber: 0, SeasonKnown: true, EpisodeNumber: 5},
			want: []string{"剧集名称: Show", "集号: S00E05", "集名称: OVA"},
		},
		{
			name: "episode with unknown season",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeEpisode, SeriesName: "Show", ItemName: "OVA", EpisodeNumber: 5},
			want: []string{"剧集名称: Show", "集号: E05", "集名称: OVA"},
		},
		{
			name: "specials season",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeSeason, SeriesName: "Frieren", ItemName: "Specials", SeasonKnown: true},
			want: []string{"剧集名称: Frieren", "季号: S00", "季名称: Specials"},
		},
		{
			name: "episode without numbers",
			ev:   domain.CanonicalEvent{ItemType: domain.ItemTypeEpisode, SeriesName: "Show", ItemName: "Show"},
			want: []string{"剧集名称: Show"},
		},
	}

	r := newTestRenderer(t, RendererConfig{Language: "zh"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := r.Render(domain.EnrichedEvent{CanonicalEvent: tt.ev, DataSourceTag: domain.DataSourceOriginal}, true)
			require.NoError(t, err)

			lines := strings.Split(msg.Text, "\n")
			assert.Equal(t, tt.want, lines[1:])
		})
	}
}

func TestRenderer_Passthrough(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{Platform: "aiocqhttp", ShowPlatformPrefix: true, ShowSourceLabel: true})
	text := "🎉 ${title} 更新了\n  第 ${episode} 集  "

	msg, err := r.Render(domain.EnrichedEvent{CanonicalEvent: domain.CanonicalEvent{
		ItemType:        domain.ItemTypeUnknown,
		Source:          domain.SourceAniRSS,
		Passthrough:     true,
		PassthroughText: text,
		ImageURL:        "https://img/a.png",
	}}, false)
	require.NoError(t, err)
	assert.Equal(t, text, msg.Text)
	assert.Equal(t, "https://img/a.png", msg.ImageURL)

	_, err = r.Render(domain.EnrichedEvent{CanonicalEvent: domain.CanonicalEvent{Passthrough: true}}, false)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRenderer_Footer(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{})

	tests := []struct {
		tag  string
		want string
	}{
		{domain.DataSourceOriginal, ""},
		{"", ""},
		{"bangumi", "✨ 数据来源: BGM.TV"},
		{"tvdb+fanart", "✨ 数据来源: TheTVDB + Fanart.tv"},
		{"omdb", "✨ 数据来源: OMDB"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, r.footer(tt.tag))
		})
	}
}

func TestRenderer_SynopsisTruncation(t *testing.T) {
	r := newTestRenderer(t, RendererConfig{SynopsisMaxRunes: 10})

	got := r.synopsis("这是一个非常非常长的剧情简介，需要被截断")
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "a b c", r.synopsis("  a\n\n b\tc "))
	assert.Equal(t, "<b>", r.synopsis("&lt;b&gt;"))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 4, "abc…"},
		{"multibyte", "日本語テキスト", 4, "日本語…"},
		{"trailing space trimmed", "ab   cdef", 5, "ab…"},
		{"no limit", "abc", 0, "abc"},
		{"limit one", "abc", 1, "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.limit))
		})
	}
}

func TestLabelsFor(t *testing.T) {
	assert.Same(t, &chineseLabels, labelsFor("zh"))
	assert.Same(t, &chineseLabels, labelsFor("zh-Hans-CN"))
	assert.Same(t, &englishLabels, labelsFor("en"))
	assert.Same(t, &chineseLabels, labelsFor("not a tag!"))
}
