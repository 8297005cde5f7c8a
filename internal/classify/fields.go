package classify

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// lookup resolves a dotted path ("Item.Type") inside a decoded object.
func lookup(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func has(m map[string]any, path string) bool {
	v, ok := lookup(m, path)
	return ok && v != nil
}

// str returns the first non-empty string found at any of the paths.
// Numbers are formatted without a fractional part when integral.
func str(m map[string]any, paths ...string) string {
	for _, p := range paths {
		v, ok := lookup(m, p)
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			if val == math.Trunc(val) {
				s = strconv.FormatInt(int64(val), 10)
			} else {
				s = strconv.FormatFloat(val, 'f', -1, 64)
			}
		case bool:
			s = strconv.FormatBool(val)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first positive integer found at any of the paths.
// Numeric strings are accepted.
func num(m map[string]any, paths ...string) int {
	for _, p := range paths {
		v, ok := lookup(m, p)
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			if val > 0 {
				return int(val)
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// season returns the first non-negative integer found at any of the paths
// and whether one was found. Unlike num it keeps zero, which sources use
// for specials.
func season(m map[string]any, paths ...string) (int, bool) {
	for _, p := range paths {
		v, ok := lookup(m, p)
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			if val >= 0 && val == math.Trunc(val) {
				return int(val), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// num64 is num for large values such as run time ticks.
func num64(m map[string]any, paths ...string) int64 {
	for _, p := range paths {
		v, ok := lookup(m, p)
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			if val > 0 {
				return int64(val)
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func obj(m map[string]any, path string) map[string]any {
	v, _ := lookup(m, path)
	o, _ := v.(map[string]any)
	return o
}

func list(m map[string]any, path string) []any {
	v, _ := lookup(m, path)
	l, _ := v.([]any)
	return l
}

// countMarkers returns how many of the paths are present and non-null.
func countMarkers(m map[string]any, paths []string) int {
	n := 0
	for _, p := range paths {
		if has(m, p) {
			n++
		}
	}
	return n
}

const ticksPerMinute = 600_000_000

func ticksToMinutes(ticks int64) int {
	return int(ticks / ticksPerMinute)
}

var (
	seasonNamePattern = regexp.MustCompile(`(?i)season\s*(\d+)|第\s*(\d+)\s*季`)
	episodeTagPattern = regexp.MustCompile(`(?i)S(\d{1,3})E(\d{1,4})`)
)

// seasonFromName extracts N from "Season N" or "第N季".
func seasonFromName(name string) (int, bool) {
	match := seasonNamePattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	for _, g := range match[1:] {
		if n, err := strconv.Atoi(g); err == nil {
			return n, true
		}
	}
	return 0, false
}

// episodeFromPath extracts season and episode from an SxxEyy tag.
func episodeFromPath(path string) (season, episode int, ok bool) {
	match := episodeTagPattern.FindStringSubmatch(path)
	if match == nil {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(match[1])
	episode, _ = strconv.Atoi(match[2])
	return season, episode, true
}

func joinURL(base, path string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + path
}

func absoluteURL(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return ""
}

func itemImagePath(itemID string) string {
	return fmt.Sprintf("/Items/%s/Images/Primary", itemID)
}
