package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/bissquit/mediahook/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// DefaultSynopsisMaxRunes bounds the synopsis section.
const DefaultSynopsisMaxRunes = 200

// Layouts.
const (
	layoutSectioned = "sectioned"
	layoutCompact   = "compact"
)

// RendererConfig controls message appearance.
type RendererConfig struct {
	Platform           string
	ShowPlatformPrefix bool
	ShowSourceLabel    bool
	Language           string
	SynopsisMaxRunes   int
}

// Renderer turns enriched events into chat messages.
type Renderer struct {
	config    RendererConfig
	labels    *labels
	templates map[string]*template.Template
}

// NewRenderer creates a renderer and loads the layout templates.
func NewRenderer(config RendererConfig) (*Renderer, error) {
	if config.SynopsisMaxRunes <= 0 {
		config.SynopsisMaxRunes = DefaultSynopsisMaxRunes
	}

	funcMap := template.FuncMap{
		"join": strings.Join,
	}

	r := &Renderer{
		config:    config,
		labels:    labelsFor(config.Language),
		templates: make(map[string]*template.Template),
	}

	for _, name := range []string{layoutSectioned, layoutCompact} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// messageView is the data passed to layout templates.
type messageView struct {
	Header        string
	Identity      []string
	SynopsisLabel string
	Synopsis      string
	RuntimeLabel  string
	Runtime       string
	Footer        string
}

// Render formats ev. Compact output uses single line breaks only and suits
// platforms that show every message on its own.
// Passthrough events keep their original text.
func (r *Renderer) Render(ev domain.EnrichedEvent, compact bool) (Message, error) {
	msg := Message{
		ImageURL: ev.ImageURL,
		Source:   ev.Source,
		ItemType: ev.ItemType,
	}

	if ev.Passthrough {
		msg.Text = ev.PassthroughText
		if msg.Text == "" && msg.ImageURL == "" {
			return Message{}, ErrEmptyMessage
		}
		return msg, nil
	}

	view := messageView{
		Header:        r.header(ev),
		Identity:      r.identity(ev),
		SynopsisLabel: r.labels.synopsis,
		Synopsis:      r.synopsis(ev.Overview),
		RuntimeLabel:  r.labels.runtime,
		Runtime:       r.runtime(ev.CanonicalEvent),
		Footer:        r.footer(ev.DataSourceTag),
	}
	if ev.ItemType == domain.ItemTypeMovie {
		view.RuntimeLabel = r.labels.movieRuntime
	}

	name := layoutSectioned
	if compact {
		name = layoutCompact
	}

	var buf bytes.Buffer
	if err := r.templates[name].Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("execute template %s: %w", name, err)
	}

	msg.Text = strings.TrimSpace(buf.String())
	return msg, nil
}

func (r *Renderer) header(ev domain.EnrichedEvent) string {
	var parts []string

	if r.config.ShowPlatformPrefix {
		prefix, ok := platformPrefix[normalizePlatform(r.config.Platform)]
		if !ok {
			prefix = defaultPlatformPrefix
		}
		parts = append(parts, prefix)
	}

	emoji, ok := typeEmoji[ev.ItemType]
	if !ok {
		emoji = defaultTypeEmoji
	}
	typeName, ok := r.labels.typeNames[ev.ItemType]
	if !ok {
		typeName = r.labels.typeNames[domain.ItemTypeUnknown]
	}
	parts = append(parts, emoji, fmt.Sprintf(r.labels.headline, typeName))

	if r.config.ShowSourceLabel {
		if label, ok := sourceLabels[ev.Source]; ok {
			parts = append(parts, "["+label+"]")
		}
	}

	return strings.Join(parts, " ")
}

// hasSeason reports whether the season number should be shown. Season 0
// holds specials and is shown when the source reported it.
func hasSeason(ev domain.CanonicalEvent) bool {
	return ev.SeasonNumber > 0 || ev.SeasonKnown
}

func (r *Renderer) identity(ev domain.EnrichedEvent) []string {
	l := r.labels
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	switch ev.ItemType {
	case domain.ItemTypeEpisode:
		add(l.seriesName, withYear(ev.SeriesName, ev.Year))
		if hasSeason(ev.CanonicalEvent) && ev.EpisodeNumber > 0 {
			add(l.episodeNumber, fmt.Sprintf("S%02dE%02d", ev.SeasonNumber, ev.EpisodeNumber))
		} else if ev.EpisodeNumber > 0 {
			add(l.episodeNumber, fmt.Sprintf("E%02d", ev.EpisodeNumber))
		}
		title := ev.EpisodeTitle
		if title == "" && ev.ItemName != ev.SeriesName {
			title = ev.ItemName
		}
		add(l.episodeName, title)

	case domain.ItemTypeSeason:
		add(l.seriesName, withYear(ev.SeriesName, ev.Year))
		if hasSeason(ev.CanonicalEvent) {
			add(l.seasonNumber, fmt.Sprintf("S%02d", ev.SeasonNumber))
		}
		if ev.ItemName != ev.SeriesName {
			add(l.seasonName, ev.ItemName)
		}

	case domain.ItemTypeSeries:
		add(l.seriesName, withYear(firstNonEmpty(ev.SeriesName, ev.ItemName), ev.Year))

	case domain.ItemTypeMovie:
		add(l.movieName, withYear(firstNonEmpty(ev.ItemName, ev.SeriesName), ev.Year))

	case domain.ItemTypeAlbum:
		add(l.albumName, withYear(ev.ItemName, ev.Year))
		if ev.SeriesName != ev.ItemName {
			add(l.artist, ev.SeriesName)
		}

	case domain.ItemTypeSong:
		add(l.songName, ev.ItemName)
		if ev.SeriesName != ev.ItemName {
			add(l.artist, ev.SeriesName)
		}
		if ev.Year > 0 {
			add(l.year, strconv.Itoa(ev.Year))
		}

	default:
		add(l.name, withYear(firstNonEmpty(ev.ItemName, ev.SeriesName), ev.Year))
	}

	return lines
}

// synopsis decodes HTML entities, collapses whitespace and bounds the length.
func (r *Renderer) synopsis(overview string) string {
	text := strings.Join(strings.Fields(html.UnescapeString(overview)), " ")
	return TruncateRunes(text, r.config.SynopsisMaxRunes)
}

func (r *Renderer) runtime(ev domain.CanonicalEvent) string {
	if ev.RuntimeMinutes > 0 {
		return fmt.Sprintf(r.labels.minutes, ev.RuntimeMinutes)
	}
	return strings.TrimSpace(ev.RuntimeText)
}

// footer names the enrichment providers behind tag, e.g. "tvdb+fanart".
func (r *Renderer) footer(tag string) string {
	if tag == "" || tag == domain.DataSourceOriginal {
		return ""
	}

	ids := strings.Split(tag, "+")
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := providerLabels[id]
		if !ok {
			name = cases.Upper(language.Und).String(id)
		}
		names = append(names, name)
	}
	return "✨ " + r.labels.dataSource + ": " + strings.Join(names, " + ")
}

func withYear(name string, year int) string {
	if name == "" {
		return ""
	}
	if year > 0 {
		return fmt.Sprintf("%s (%d)", name, year)
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

const ellipsis = "…"

// TruncateRunes shortens s to at most limit runes, the last being an
// ellipsis when anything was cut. It never splits a multi-byte character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit == 1 {
		return ellipsis
	}

	n := 0
	for i := range s {
		if n == limit-1 {
			return strings.TrimRight(s[:i], " \t\r\n") + ellipsis
		}
		n++
	}
	return s
}
