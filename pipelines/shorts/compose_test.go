package shorts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortsmith/common"
)

type fakeRenderer struct {
	err  error
	text string
}

func (f *fakeRenderer) Render(text, outputPath string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return os.WriteFile(outputPath, []byte("png"), 0644)
}

// argAfter returns the argument following flag, or "" if flag is absent
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func countArg(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func TestBuildRenderArgs(t *testing.T) {
	cfg := common.DefaultConfig()
	args := BuildRenderArgs(cfg, "list.txt", "voice.mp3", "caption.png", "out.partial.mp4", 42.3)

	assert.Equal(t, 3, countArg(args, "-i"))
	assert.Equal(t, "concat", argAfter(args, "-f"))
	assert.Equal(t, "1", argAfter(args, "-loop"))
	assert.Equal(t, "libx264", argAfter(args, "-c:v"))
	assert.Equal(t, "aac", argAfter(args, "-c:a"))
	assert.Equal(t, "24", argAfter(args, "-r"))
	assert.Equal(t, "42.3", argAfter(args, "-t"))
	assert.Contains(t, args, "out.partial.mp4")
	assert.Contains(t, args, "-y")

	graph := argAfter(args, "-filter_complex")
	assert.Contains(t, graph, "overlay")
	assert.Contains(t, graph, "shortest=1")
}

func TestNormalizeArgs(t *testing.T) {
	cfg := common.DefaultConfig()

	t.Run("landscape is scaled and cropped", func(t *testing.T) {
		clip := common.VisualClip{Path: "temp_wide.mp4", SourceWidth: 1920, SourceHeight: 1080}
		args, err := NormalizeArgs(cfg, clip, "temp_wide.norm.mp4")
		require.NoError(t, err)

		graph := argAfter(args, "-filter_complex")
		assert.Contains(t, graph, "scale=3413:1920")
		assert.Contains(t, graph, "crop=1080:1920:1166:0")
		assert.NotContains(t, graph, "pad")
		assert.Contains(t, graph, "fps=24")
		assert.Equal(t, "temp_wide.mp4", argAfter(args, "-i"))
		assert.Contains(t, args, "temp_wide.norm.mp4")
	})

	t.Run("narrow clip is padded", func(t *testing.T) {
		clip := common.VisualClip{Path: "temp_tall.mp4", SourceWidth: 720, SourceHeight: 1920}
		args, err := NormalizeArgs(cfg, clip, "temp_tall.norm.mp4")
		require.NoError(t, err)

		graph := argAfter(args, "-filter_complex")
		assert.NotContains(t, graph, "scale")
		assert.NotContains(t, graph, "crop")
		assert.Contains(t, graph, "pad=1080:1920")
	})

	t.Run("bad geometry", func(t *testing.T) {
		_, err := NormalizeArgs(cfg, common.VisualClip{Path: "x.mp4"}, "x.norm.mp4")
		assert.Error(t, err)
	})
}

func TestConcatList(t *testing.T) {
	tl, err := Assemble(clipsOf(5, 5, 5), 12.5)
	require.NoError(t, err)

	list, err := ConcatList(tl)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(list), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "ffconcat version 1.0", lines[0])
	assert.Contains(t, lines[1], "temp_kw0.norm.mp4'")
	assert.Contains(t, lines[2], "temp_kw1.norm.mp4'")
	assert.Contains(t, lines[3], "temp_kw2.norm.mp4'")
	assert.Equal(t, "outpoint 2.5", lines[4])
}

func TestCompositor_Compose(t *testing.T) {
	cfg := testConfig(t)
	clips := clipsOf(4, 4)
	for i := range clips {
		clips[i].Path = filepath.Join(cfg.WorkDir, clips[i].Path)
	}
	tl, err := Assemble(clips, 10)
	require.NoError(t, err)

	renderer := &fakeRenderer{}
	c := NewCompositor(cfg, renderer)
	c.measure = nil

	var calls [][]string
	c.runFFmpeg = func(_ context.Context, args []string) error {
		calls = append(calls, args)
		// the output file is the last non-flag argument
		out := args[len(args)-1]
		if out == "-y" {
			out = args[len(args)-2]
		}
		return os.WriteFile(out, []byte("mp4"), 0644)
	}

	art, err := c.Compose(context.Background(), tl, common.NarrationAsset{Path: "voice.mp3", DurationSeconds: 10}, "Ocean Secrets")
	require.NoError(t, err)

	assert.Equal(t, cfg.OutputPath(), art.Path)
	assert.FileExists(t, art.Path)
	assert.NoFileExists(t, filepath.Join(cfg.WorkDir, "final_output.partial.mp4"))
	assert.Equal(t, "Ocean Secrets", renderer.text)

	// two distinct clips normalized once each, then one final render
	require.Len(t, calls, 3)
	assert.Equal(t, "10", argAfter(calls[2], "-t"))

	for _, p := range c.TransientPaths(tl) {
		assert.NotEqual(t, art.Path, p)
	}
	assert.Len(t, c.TransientPaths(tl), 5)
}

func TestCompositor_ComposeFailures(t *testing.T) {
	cfg := testConfig(t)
	tl, err := Assemble(clipsOf(4), 3)
	require.NoError(t, err)
	audio := common.NarrationAsset{Path: "voice.mp3", DurationSeconds: 3}

	t.Run("caption", func(t *testing.T) {
		c := NewCompositor(cfg, &fakeRenderer{err: errors.New("no font")})
		_, err := c.Compose(context.Background(), tl, audio, "topic")
		assert.ErrorIs(t, err, common.ErrRender)
		assert.Equal(t, common.StageCaption, common.FailedStage(err))
	})

	t.Run("encoder", func(t *testing.T) {
		c := NewCompositor(cfg, &fakeRenderer{})
		c.runFFmpeg = func(context.Context, []string) error { return errors.New("exit status 1") }
		art, err := c.Compose(context.Background(), tl, audio, "topic")
		assert.Nil(t, art)
		assert.ErrorIs(t, err, common.ErrRender)
		assert.Equal(t, common.StageRender, common.FailedStage(err))
		assert.NoFileExists(t, cfg.OutputPath())
	})
}

// writeOutputs stands in for ffmpeg by creating each invocation's output file
func writeOutputs(_ context.Context, args []string) error {
	out := args[len(args)-1]
	if out == "-y" {
		out = args[len(args)-2]
	}
	return os.WriteFile(out, []byte("mp4"), 0644)
}

func TestCompositor_ComposeUsesMeasuredClipLengths(t *testing.T) {
	cfg := testConfig(t)
	clips := clipsOf(5, 5, 5)
	for i := range clips {
		clips[i].Path = filepath.Join(cfg.WorkDir, clips[i].Path)
	}
	tl, err := Assemble(clips, 14.5)
	require.NoError(t, err)
	require.Len(t, tl.Segments, 3)

	c := NewCompositor(cfg, &fakeRenderer{})
	c.runFFmpeg = writeOutputs
	c.measure = func(path string) (float64, error) {
		// normalized copies come out shorter than the decoder estimated
		if strings.HasSuffix(path, ".norm.mp4") {
			return 4.6, nil
		}
		return 14.5, nil
	}

	_, err = c.Compose(context.Background(), tl, common.NarrationAsset{Path: "voice.mp3", DurationSeconds: 14.5}, "topic")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.WorkDir, concatListName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")

	var files []string
	var outpoint string
	for _, l := range lines[1:] {
		switch {
		case strings.HasPrefix(l, "file "):
			files = append(files, l)
		case strings.HasPrefix(l, "outpoint "):
			outpoint = strings.TrimPrefix(l, "outpoint ")
		}
	}
	require.Len(t, files, 4, "the measured lengths need a fourth segment to reach the narration")
	assert.Contains(t, files[3], "temp_kw0.norm.mp4'")

	got, err := strconv.ParseFloat(outpoint, 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got, 1e-9)
}

func TestCompositor_ComposeNormalizesUnusedClips(t *testing.T) {
	cfg := testConfig(t)
	clips := clipsOf(5, 5, 5)
	for i := range clips {
		clips[i].Path = filepath.Join(cfg.WorkDir, clips[i].Path)
	}
	tl, err := Assemble(clips, 6)
	require.NoError(t, err)
	require.Len(t, tl.Segments, 2)

	c := NewCompositor(cfg, &fakeRenderer{})
	var calls int
	c.runFFmpeg = func(ctx context.Context, args []string) error {
		calls++
		return writeOutputs(ctx, args)
	}
	c.measure = func(path string) (float64, error) {
		if strings.HasSuffix(path, ".norm.mp4") {
			return 2, nil
		}
		return 6, nil
	}

	_, err = c.Compose(context.Background(), tl, common.NarrationAsset{Path: "voice.mp3", DurationSeconds: 6}, "topic")
	require.NoError(t, err)
	assert.Equal(t, 4, calls, "three normalizations and one render")

	raw, err := os.ReadFile(filepath.Join(cfg.WorkDir, concatListName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "temp_kw2.norm.mp4'")
	assert.Len(t, c.TransientPaths(tl), 6)
}

func TestCompositor_ComposeMeasureFailure(t *testing.T) {
	cfg := testConfig(t)
	tl, err := Assemble(clipsOf(4), 3)
	require.NoError(t, err)

	c := NewCompositor(cfg, &fakeRenderer{})
	c.runFFmpeg = writeOutputs
	c.measure = func(string) (float64, error) { return 0, errors.New("ffprobe output has no duration") }

	art, err := c.Compose(context.Background(), tl, common.NarrationAsset{Path: "voice.mp3", DurationSeconds: 3}, "topic")
	assert.Nil(t, art)
	assert.ErrorIs(t, err, common.ErrRender)
	assert.Equal(t, common.StageRender, common.FailedStage(err))
	assert.NoFileExists(t, cfg.OutputPath())
}
