package textutil

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TruncationMarker is appended to text cut short by Truncate.
const TruncationMarker = "…"

var titleCaser = cases.Title(language.English)

// Truncate limits text to at most budget runes, cutting at a rune boundary
// and appending TruncationMarker when anything was removed. A non-positive
// budget returns the empty string.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return strings.TrimSpace(string(runes[:budget])) + TruncationMarker
}

// CollapseWhitespace folds runs of whitespace (including newlines and tabs)
// into single spaces and trims the result.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HostLabel derives a human-readable label from a URL: the hostname with any
// leading "www." stripped and the first segment title-cased, e.g.
// "https://www.example.com/docs" -> "Example.com". Unparseable input is
// returned trimmed.
func HostLabel(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Hostname() == "" {
		return trimmed
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host == "" {
		return trimmed
	}
	segments := strings.SplitN(host, ".", 2)
	segments[0] = titleCaser.String(segments[0])
	return strings.Join(segments, ".")
}

// JoinLabels joins labels with commas and a final "and", skipping blanks.
func JoinLabels(labels []string) string {
	cleaned := make([]string, 0, len(labels))
	for _, label := range labels {
		if label = strings.TrimSpace(label); label != "" {
			cleaned = append(cleaned, label)
		}
	}
	switch len(cleaned) {
	case 0:
		return ""
	case 1:
		return cleaned[0]
	case 2:
		return cleaned[0] + " and " + cleaned[1]
	default:
		return strings.Join(cleaned[:len(cleaned)-1], ", ") + ", and " + cleaned[len(cleaned)-1]
	}
}
