package common

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ocean", "ocean"},
		{"deep  space nebula", "deep_space_nebula"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  ", "untitled"},
		{"...", "untitled"},
		{"what?*", "what"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeQuery(tt.in), tt.in)
	}

	long := SanitizeQuery(strings.Repeat("x", 300))
	assert.Len(t, long, maxNameLength)
}

func TestSanitizeQuery_TruncatesOnRuneBoundary(t *testing.T) {
	// 2-byte runes: 80 bytes would land mid-rune after a 1-byte prefix
	got := SanitizeQuery("x" + strings.Repeat("é", 60))
	assert.True(t, utf8.ValidString(got), "%q", got)
	assert.LessOrEqual(t, len(got), maxNameLength)
	assert.Equal(t, "x"+strings.Repeat("é", 39), got)

	cjk := SanitizeQuery(strings.Repeat("海", 40))
	assert.True(t, utf8.ValidString(cjk))
	assert.Equal(t, strings.Repeat("海", 26), cjk)
}

func TestClipFileName_Deterministic(t *testing.T) {
	assert.Equal(t, "temp_night_sky.mp4", ClipFileName("night sky"))
	assert.Equal(t, ClipFileName("night sky"), ClipFileName("night  sky"))
}

func TestPartialName(t *testing.T) {
	assert.Equal(t, "final_output.partial.mp4", PartialName("final_output.mp4"))
	assert.Equal(t, "out.partial", PartialName("out"))
}
