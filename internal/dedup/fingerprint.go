// Package dedup suppresses repeated deliveries of the same logical notification.
package dedup

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

// DefaultVolatileKeys are stripped at every nesting level before hashing.
// Keys are compared after normalizeKey.
var DefaultVolatileKeys = []string{
	"image_url",
	"imageurl",
	"primary_image_url",
	"image",
	"thumb",
	"poster",
	"timestamp",
	"utc_timestamp",
	"date",
	"generated_at",
	"notification_id",
	"event_id",
	"sent_at",
}

// Fingerprinter computes stable digests of decoded payloads.
type Fingerprinter struct {
	volatile map[string]struct{}
}

// NewFingerprinter returns a Fingerprinter that ignores DefaultVolatileKeys
// plus any extra keys.
func NewFingerprinter(extra ...string) *Fingerprinter {
	volatile := make(map[string]struct{}, len(DefaultVolatileKeys)+len(extra))
	for _, k := range DefaultVolatileKeys {
		volatile[normalizeKey(k)] = struct{}{}
	}
	for _, k := range extra {
		if k = strings.TrimSpace(k); k != "" {
			volatile[normalizeKey(k)] = struct{}{}
		}
	}
	return &Fingerprinter{volatile: volatile}
}

// Fingerprint returns the hex BLAKE2b-256 digest of the payload with
// volatile keys removed and object keys serialized in sorted order.
// It returns ErrUnhashable when the payload cannot be serialized.
func (f *Fingerprinter) Fingerprint(payload map[string]any) (string, error) {
	cleaned := f.strip(payload)

	// Map keys are emitted in sorted order at every level.
	canonical, err := json.Marshal(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnhashable, err)
	}

	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint is a convenience wrapper using only DefaultVolatileKeys.
func Fingerprint(payload map[string]any) (string, error) {
	return defaultFingerprinter.Fingerprint(payload)
}

var defaultFingerprinter = NewFingerprinter()

// imageLocationKeys hold the picture location inside the data object of a
// message segment typed "image", as sent by Ani-RSS and OneBot-style
// senders.
var imageLocationKeys = map[string]struct{}{
	"file": {},
	"url":  {},
	"path": {},
	"src":  {},
}

func (f *Fingerprinter) strip(v any) any {
	switch val := v.(type) {
	case map[string]any:
		image := isImageSegment(val)
		out := make(map[string]any, len(val))
		for k, child := range val {
			if _, skip := f.volatile[normalizeKey(k)]; skip {
				continue
			}
			if image && normalizeKey(k) == "data" {
				child = stripImageLocation(child)
			}
			out[k] = f.strip(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = f.strip(child)
		}
		return out
	default:
		return v
	}
}

func isImageSegment(m map[string]any) bool {
	t, _ := m["type"].(string)
	return strings.EqualFold(strings.TrimSpace(t), "image")
}

func stripImageLocation(v any) any {
	data, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(data))
	for k, child := range data {
		if _, skip := imageLocationKeys[normalizeKey(k)]; skip {
			continue
		}
		out[k] = child
	}
	return out
}

var keySeparators = strings.NewReplacer("_", "", "-", "")

func normalizeKey(k string) string {
	return keySeparators.Replace(strings.ToLower(k))
}
