package classify

import (
	"strings"

	"github.com/bissquit/mediahook/internal/domain"
)

const aniRSSFallbackText = "来自 Ani-RSS 的通知"

// Keys Ani-RSS uses for its segment array. The misspelling is what it sends.
var aniRSSMessageKeys = []string{"meassage", "message"}

// Keys present when Ani-RSS posts its notification settings as the body.
var aniRSSConfigMarkers = []string{
	"notificationTemplate",
	"notificationType",
	"webHookMethod",
	"webHookUrl",
	"webHookBody",
	"statusList",
}

// aniRSSRecognizer handles Ani-RSS. Its notifications are passed through
// as text rather than mapped field by field.
type aniRSSRecognizer struct {
	threshold int
}

func (r *aniRSSRecognizer) Source() domain.SourceTag { return domain.SourceAniRSS }

func (r *aniRSSRecognizer) CanHandle(p Payload) bool {
	if p.Template {
		return true
	}
	if _, ok := segments(p.Data); ok {
		return true
	}
	return countMarkers(p.Data, aniRSSConfigMarkers) >= r.threshold
}

func (r *aniRSSRecognizer) Normalize(p Payload) (domain.CanonicalEvent, error) {
	ev := domain.CanonicalEvent{
		ItemType:    domain.ItemTypeEpisode,
		Source:      domain.SourceAniRSS,
		Passthrough: true,
		RawPayload:  p.Data,
	}

	switch {
	case p.Template:
		ev.PassthroughText = p.Text()
		ev.ImageURL = extractImageURL(ev.PassthroughText)

	default:
		if segs, ok := segments(p.Data); ok {
			ev.PassthroughText, ev.ImageURL = fromSegments(segs)
		} else {
			ev.PassthroughText, _ = p.Data["notificationTemplate"].(string)
		}
		if ev.ImageURL == "" {
			ev.ImageURL = extractImageURL(ev.PassthroughText)
		}
	}

	if strings.TrimSpace(ev.PassthroughText) == "" {
		ev.PassthroughText = aniRSSFallbackText
	}
	return ev, nil
}

// segments returns the OneBot-style message segment list, if any.
func segments(data map[string]any) ([]any, bool) {
	for _, key := range aniRSSMessageKeys {
		segs := list(data, key)
		if len(segs) == 0 {
			continue
		}
		first, ok := segs[0].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := first["type"].(string); ok {
			return segs, true
		}
	}
	return nil, false
}

// fromSegments concatenates text segments in order and picks the first image.
func fromSegments(segs []any) (text, image string) {
	var b strings.Builder
	for _, s := range segs {
		seg, ok := s.(map[string]any)
		if !ok {
			continue
		}
		data := obj(seg, "data")
		switch str(seg, "type") {
		case "text":
			if t, ok := data["text"].(string); ok {
				b.WriteString(t)
			}
		case "image":
			if image == "" {
				image = str(data, "url", "file", "path", "src")
			}
		}
	}
	return b.String(), image
}
