package common

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxNameLength bounds the query-derived part of a file name
const maxNameLength = 80

// invalidFileRunes matches characters that are unsafe in file names
var invalidFileRunes = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

var multiSpace = regexp.MustCompile(`\s+`)

// SanitizeQuery turns a search query into a file-name-safe token.
// Distinct queries may map to the same token.
func SanitizeQuery(query string) string {
	clean := invalidFileRunes.ReplaceAllString(query, " ")
	clean = strings.TrimSpace(clean)
	clean = multiSpace.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, ".")

	if clean == "" {
		return "untitled"
	}
	return truncateUTF8(clean, maxNameLength)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i, r := range s {
		if i+utf8.RuneLen(r) > n {
			break
		}
		cut = i + utf8.RuneLen(r)
	}
	return s[:cut]
}

// ClipFileName is the deterministic download name for a query.
func ClipFileName(query string) string {
	return "temp_" + SanitizeQuery(query) + ".mp4"
}

// PartialName returns the in-progress name used while rendering name,
// keeping the container extension so encoders can infer the format.
func PartialName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i] + ".partial" + name[i:]
	}
	return name + ".partial"
}
