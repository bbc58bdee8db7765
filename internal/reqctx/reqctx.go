// Package reqctx normalizes raw request metadata (locale and timezone
// headers, the depth query parameter) into the render context. Every
// resolver degrades to a safe default; none of them can fail a request.
package reqctx

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"nodetree/api/internal/render"
)

var supportedLocales = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true,
	"it": true, "pt": true, "ru": true, "ar": true,
}

// Timezone headers in priority order; the first one present wins.
var timezoneHeaders = []string{"Time-Zone", "X-Timezone", "Timezone", "X-Time-Zone"}

var timezoneAbbreviations = map[string]string{
	"EST": "America/New_York",
	"CST": "America/Chicago",
	"MST": "America/Denver",
	"PST": "America/Los_Angeles",
	"CET": "Europe/Paris",
	"EET": "Europe/Bucharest",
	"GMT": "UTC",
	"UTC": "UTC",
}

// Resolve builds the render context for a request: locale from
// Accept-Language, timezone from the prioritized header list, depth from
// the query string, current depth zero.
func Resolve(r *http.Request) render.Context {
	rc := render.Context{
		Locale:       ResolveLocale(r.Header.Get("Accept-Language")),
		Depth:        ResolveDepth(r.URL.Query().Get("depth")),
		CurrentDepth: 0,
	}
	rc.TimezoneName, rc.Location, rc.UTCFallback = resolveTimezoneHeaders(r)
	return rc
}

// ResolveLocale picks the best-weighted primary tag from an
// Accept-Language header and reduces it to a supported 2-letter base
// subtag, defaulting to "en".
func ResolveLocale(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return "en"
	}

	type candidate struct {
		tag    string
		weight float64
		order  int
	}
	var candidates []candidate

	for order, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		tag := strings.TrimSpace(fields[0])
		if tag == "" {
			continue
		}
		weight := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if value, ok := strings.CutPrefix(param, "q="); ok {
				if parsed, err := strconv.ParseFloat(value, 64); err == nil {
					weight = parsed
				}
			}
		}
		candidates = append(candidates, candidate{tag: tag, weight: weight, order: order})
	}
	if len(candidates) == 0 {
		return "en"
	}

	// Highest weight wins; listed order breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight > candidates[j].weight
		}
		return candidates[i].order < candidates[j].order
	})

	base := strings.ToLower(candidates[0].tag)
	if idx := strings.IndexAny(base, "-_"); idx >= 0 {
		base = base[:idx]
	}
	if len(base) > 2 {
		base = base[:2]
	}
	if !supportedLocales[base] {
		return "en"
	}
	return base
}

// ResolveTimezone normalizes a timezone header value and validates it
// against the zone database. The second return value reports whether the
// value had to fall back to UTC because it was unrecognized.
func ResolveTimezone(value string) (string, *time.Location, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "UTC", time.UTC, false
	}

	name := normalizeTimezone(value)
	location, err := time.LoadLocation(name)
	if err != nil {
		return "UTC", time.UTC, true
	}
	return name, location, false
}

func resolveTimezoneHeaders(r *http.Request) (string, *time.Location, bool) {
	for _, header := range timezoneHeaders {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return ResolveTimezone(value)
		}
	}
	return "UTC", time.UTC, false
}

// normalizeTimezone maps common abbreviations to canonical zone names
// and fixes the capitalization of Region/City forms.
func normalizeTimezone(value string) string {
	if canonical, ok := timezoneAbbreviations[strings.ToUpper(value)]; ok {
		return canonical
	}
	if !strings.Contains(value, "/") {
		return value
	}

	segments := strings.Split(value, "/")
	for i, segment := range segments {
		words := strings.Split(segment, "_")
		for j, word := range words {
			if word == "" {
				continue
			}
			words[j] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
		segments[i] = strings.Join(words, "_")
	}
	return strings.Join(segments, "/")
}

// ResolveDepth parses the depth query parameter. Unparseable input means
// unset, which selects the serializer's default one-level policy.
func ResolveDepth(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	clamped := render.ClampDepth(parsed)
	return &clamped
}
