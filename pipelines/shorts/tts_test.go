package shorts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTextForTTS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**Octopuses** have *three* hearts.", "Octopuses have three hearts."},
		{"## Fact one\nThey taste   with their arms!", "Fact one They taste with their arms!"},
		{"Blue blood 🩸 & copper", "Blue blood copper"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTextForTTS(tt.in))
	}
}

func TestEdgeTTS_EmptyText(t *testing.T) {
	e := NewEdgeTTS(testConfig(t))
	_, err := e.Synthesize(context.Background(), "** **", filepath.Join(t.TempDir(), "voice.mp3"))
	assert.Error(t, err)
}

func TestEdgeTTS_CommandFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTSBinary = "false"
	e := NewEdgeTTS(cfg)

	_, err := e.Synthesize(context.Background(), "Hello there", filepath.Join(t.TempDir(), "voice.mp3"))
	assert.Error(t, err)
}

func TestEdgeTTS_MeasuresDuration(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTSBinary = "true"
	e := NewEdgeTTS(cfg)
	e.duration = func(string) (float64, error) { return 31.25, nil }

	out := filepath.Join(t.TempDir(), "voice.mp3")
	asset, err := e.Synthesize(context.Background(), "Hello there", out)
	require.NoError(t, err)
	assert.Equal(t, out, asset.Path)
	assert.Equal(t, 31.25, asset.DurationSeconds)

	e.duration = func(string) (float64, error) { return 0, nil }
	_, err = e.Synthesize(context.Background(), "Hello there", out)
	assert.Error(t, err)
}
