package shorts

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"shortsmith/common"
)

var (
	boldMarkup   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicMarkup = regexp.MustCompile(`\*([^*]+)\*`)
	headingMark  = regexp.MustCompile(`#+\s*`)
	unspeakable  = regexp.MustCompile(`[^\w\s.,!?;:\-()"']`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// EdgeTTS synthesizes narration by shelling out to the edge-tts CLI.
type EdgeTTS struct {
	binary string
	voice  string
	// duration measures the written audio; swapped in tests
	duration func(path string) (float64, error)
}

func NewEdgeTTS(cfg common.PipelineConfig) *EdgeTTS {
	return &EdgeTTS{
		binary:   cfg.TTSBinary,
		voice:    cfg.Voice,
		duration: ProbeMediaDuration,
	}
}

// Synthesize writes text as speech to outputPath and returns the asset with
// its measured duration.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, outputPath string) (*common.NarrationAsset, error) {
	text = cleanTextForTTS(text)
	if text == "" {
		return nil, fmt.Errorf("empty text after cleaning")
	}

	cmd := exec.CommandContext(ctx, e.binary,
		"--voice", e.voice,
		"--text", text,
		"--write-media", outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Error().Str("output", string(output)).Msg("edge-tts failed")
		return nil, fmt.Errorf("%s: %w", e.binary, err)
	}

	dur, err := e.duration(outputPath)
	if err != nil {
		return nil, err
	}
	if !(dur > 0) {
		return nil, fmt.Errorf("narration has non-positive duration %v", dur)
	}
	return &common.NarrationAsset{Path: outputPath, DurationSeconds: dur}, nil
}

// cleanTextForTTS strips markdown emphasis and symbols the voice would
// otherwise read aloud.
func cleanTextForTTS(text string) string {
	text = boldMarkup.ReplaceAllString(text, "$1")
	text = italicMarkup.ReplaceAllString(text, "$1")
	text = headingMark.ReplaceAllString(text, "")
	text = unspeakable.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
