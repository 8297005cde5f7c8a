package classify

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// TemplateTokens are the placeholder tokens emitted by Ani-RSS when its
// notification template is sent without substitution.
var TemplateTokens = []string{
	"${emoji}",
	"${action}",
	"${title}",
	"${score}",
	"${tmdburl}",
	"${themoviedbName}",
	"${bgmUrl}",
	"${season}",
	"${episode}",
	"${subgroup}",
	"${currentEpisodeNumber}",
	"${totalEpisodeNumber}",
	"${year}",
	"${month}",
	"${date}",
	"${text}",
	"${downloadPath}",
	"${episodeTitle}",
}

// templateTextKey holds the raw text of a templated payload inside Data so
// that fingerprinting works the same way for every payload kind.
const templateTextKey = "text_template"

// wrappedValueKey holds a valid JSON body that is not an object, such as an
// array or a bare string, so the generic recognizer can still see it.
const wrappedValueKey = "value"

// Payload is a decoded inbound notification.
type Payload struct {
	Data     map[string]any
	Raw      []byte
	Headers  http.Header
	Template bool // Raw is templated plain text, not JSON
	Repaired bool // Data was parsed from a repaired body
}

// Text returns the templated text of a template payload.
func (p Payload) Text() string {
	if !p.Template {
		return ""
	}
	s, _ := p.Data[templateTextKey].(string)
	return s
}

// Decoder turns raw request bodies into payloads.
type Decoder struct {
	templateThreshold int
}

// NewDecoder creates a decoder. templateThreshold is the number of distinct
// placeholder tokens required to accept non-JSON text as a template.
func NewDecoder(templateThreshold int) *Decoder {
	if templateThreshold < 1 {
		templateThreshold = 1
	}
	return &Decoder{templateThreshold: templateThreshold}
}

// Decode parses body as JSON, then as repaired JSON, then as templated
// text. It returns ErrMalformedPayload when all three fail. JSON values
// other than objects are wrapped under wrappedValueKey.
func (d *Decoder) Decode(body []byte, headers http.Header) (Payload, error) {
	p := Payload{Raw: body, Headers: headers}

	body = unwrapMultipart(body, headers)
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return p, ErrMalformedPayload
	}

	if data, ok := decodeValue(trimmed); ok {
		p.Data = data
		return p, nil
	}

	if fixed, ok := repairJSON(string(trimmed)); ok {
		if data, ok := decodeValue([]byte(fixed)); ok {
			p.Data = data
			p.Repaired = true
			return p, nil
		}
	}

	text := string(body)
	if CountTemplateTokens(text) >= d.templateThreshold {
		p.Template = true
		p.Data = map[string]any{templateTextKey: text}
		return p, nil
	}

	return p, ErrMalformedPayload
}

func decodeValue(b []byte) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	if data, ok := v.(map[string]any); ok {
		return data, true
	}
	return map[string]any{wrappedValueKey: v}, true
}

// CountTemplateTokens returns how many distinct TemplateTokens occur in s.
func CountTemplateTokens(s string) int {
	n := 0
	for _, tok := range TemplateTokens {
		if strings.Contains(s, tok) {
			n++
		}
	}
	return n
}

// repairJSON strips trailing commas and closes unbalanced strings, objects
// and arrays. Brackets inside string literals are ignored. It reports false
// when the input has stray closers or does not look like JSON at all.
func repairJSON(s string) (string, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}

	var (
		out      strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	out.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			trimTrailingComma(&out)
		}
		out.WriteByte(c)
	}

	if inString {
		if escaped {
			// drop a dangling backslash so the closing quote is not escaped
			str := out.String()
			out.Reset()
			out.WriteString(str[:len(str)-1])
		}
		out.WriteByte('"')
	}

	if strings.HasSuffix(strings.TrimRight(out.String(), " \t\r\n"), ":") {
		out.WriteString("null")
	}

	trimTrailingComma(&out)
	for i := len(stack) - 1; i >= 0; i-- {
		trimTrailingComma(&out)
		out.WriteByte(stack[i])
	}

	return out.String(), true
}

// trimTrailingComma removes a comma (and whitespace after it) at the end of b.
func trimTrailingComma(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(trimmed, ",") {
		b.Reset()
		b.WriteString(trimmed[:len(trimmed)-1])
	}
}

// unwrapMultipart returns the "payload" form field of a multipart body,
// which is how Plex posts its webhooks. Other bodies are returned unchanged.
func unwrapMultipart(body []byte, headers http.Header) []byte {
	if headers == nil {
		return body
	}
	mediaType, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return body
	}

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err != nil {
			return body
		}
		if part.FormName() != "payload" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return body
		}
		return data
	}
}

var (
	cqImagePattern  = regexp.MustCompile(`\[CQ:image,[^\]]*?(?:url|file)=([^,\]]+)`)
	imageURLPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>\]\)]+?\.(?:jpg|jpeg|png|gif|webp|bmp)(?:\?[^\s"'<>\]\)]*)?`)
)

// extractImageURL finds an image reference embedded in free text.
func extractImageURL(text string) string {
	if m := cqImagePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return imageURLPattern.FindString(text)
}
