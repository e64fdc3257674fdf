package shorts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"shortsmith/common"
)

const (
	captionLayerName = "caption_layer.png"
	concatListName   = "timeline_concat.txt"
)

// CaptionRenderer draws caption text into an image file
type CaptionRenderer interface {
	Render(text, outputPath string) error
}

// Compositor overlays the caption on the assembled timeline, binds the
// narration and encodes the final artifact.
//
// Rendering is two passes: every distinct clip is normalized once to the
// output frame, then the timeline is played back through the concat demuxer
// with the caption overlaid and the narration mapped. Between the passes the
// normalized copies are measured and the timeline is rebuilt on their real
// lengths, since the decoder's frame count is only an estimate.
type Compositor struct {
	cfg     common.PipelineConfig
	caption CaptionRenderer
	// runFFmpeg executes one ffmpeg invocation; swapped in tests
	runFFmpeg func(ctx context.Context, args []string) error
	// measure reads a media file's length; nil skips remeasuring and the final check
	measure func(path string) (float64, error)
}

func NewCompositor(cfg common.PipelineConfig, caption CaptionRenderer) *Compositor {
	return &Compositor{
		cfg:       cfg,
		caption:   caption,
		runFFmpeg: runFFmpeg,
		measure:   ProbeMediaDuration,
	}
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Error().Str("output", tail(string(output), 2000)).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// TransientPaths lists every file Compose may create for tl besides the
// final artifact.
func (c *Compositor) TransientPaths(tl *AssembledTimeline) []string {
	paths := []string{c.captionPath(), c.listPath(), c.partialPath()}
	if tl != nil {
		for _, clip := range distinctClips(tl) {
			paths = append(paths, normalizedPath(clip.Path))
		}
	}
	return paths
}

func (c *Compositor) captionPath() string {
	return c.cfg.WorkPath(captionLayerName)
}

func (c *Compositor) listPath() string {
	return c.cfg.WorkPath(concatListName)
}

func (c *Compositor) partialPath() string {
	return c.cfg.WorkPath(common.PartialName(c.cfg.OutputName))
}

// Compose renders the caption layer, normalizes the clips, encodes to a
// partial file and renames it into place only once the encode succeeded.
func (c *Compositor) Compose(ctx context.Context, tl *AssembledTimeline, audio common.NarrationAsset, caption string) (*common.FinalArtifact, error) {
	if tl == nil || len(tl.Segments) == 0 {
		return nil, renderError(common.StageRender, fmt.Errorf("empty timeline"))
	}

	layer := c.captionPath()
	if err := c.caption.Render(caption, layer); err != nil {
		return nil, renderError(common.StageCaption, err)
	}

	for _, clip := range distinctClips(tl) {
		args, err := NormalizeArgs(c.cfg, clip, normalizedPath(clip.Path))
		if err != nil {
			return nil, renderError(common.StageRender, err)
		}
		log.Debug().Str("clip", clip.Path).Msg("Normalizing clip")
		if err := c.runFFmpeg(ctx, args); err != nil {
			return nil, renderError(common.StageRender, fmt.Errorf("normalize %s: %w", clip.Path, err))
		}
	}

	if c.measure != nil {
		measured, err := c.remeasure(tl)
		if err != nil {
			return nil, renderError(common.StageRender, err)
		}
		tl = measured
	}

	list, err := ConcatList(tl)
	if err != nil {
		return nil, renderError(common.StageRender, err)
	}
	if err := os.WriteFile(c.listPath(), []byte(list), 0644); err != nil {
		return nil, renderError(common.StageRender, fmt.Errorf("write concat list: %w", err))
	}

	partial := c.partialPath()
	args := BuildRenderArgs(c.cfg, c.listPath(), audio.Path, layer, partial, tl.Target)

	log.Info().Int("segments", len(tl.Segments)).Float64("duration", tl.Target).Msg("Rendering final video")
	if err := c.runFFmpeg(ctx, args); err != nil {
		return nil, renderError(common.StageRender, err)
	}

	final := c.cfg.OutputPath()
	if err := os.Rename(partial, final); err != nil {
		return nil, renderError(common.StageRender, err)
	}

	if c.measure != nil {
		c.checkDuration(final, audio.DurationSeconds)
	}
	return &common.FinalArtifact{Path: final}, nil
}

// remeasure replaces each clip length with that of its normalized copy and
// reassembles tl when any length changed.
func (c *Compositor) remeasure(tl *AssembledTimeline) (*AssembledTimeline, error) {
	clips := append([]common.VisualClip(nil), tl.Clips...)
	if len(clips) == 0 {
		return tl, nil
	}

	lengths := make(map[string]float64)
	for _, clip := range distinctClips(tl) {
		d, err := c.measure(normalizedPath(clip.Path))
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", clip.Path, err)
		}
		lengths[clip.Path] = d
	}

	changed := false
	for i := range clips {
		d := lengths[clips[i].Path]
		if d != clips[i].DurationSeconds {
			log.Debug().Str("clip", clips[i].Path).
				Float64("estimated", clips[i].DurationSeconds).
				Float64("measured", d).
				Msg("Clip length corrected")
			clips[i].DurationSeconds = d
			changed = true
		}
	}
	if !changed {
		return tl, nil
	}
	return Assemble(clips, tl.Target)
}

func renderError(stage string, err error) error {
	return &common.StageError{Stage: stage, Err: fmt.Errorf("%w: %v", common.ErrRender, err)}
}

// checkDuration logs when the encoded length drifts more than one frame from
// the narration.
func (c *Compositor) checkDuration(path string, want float64) {
	got, err := c.measure(path)
	if err != nil {
		log.Warn().Err(err).Msg("could not probe rendered duration")
		return
	}
	if math.Abs(got-want) > 1/float64(c.cfg.FPS) {
		log.Warn().Float64("rendered", got).Float64("narration", want).Msg("rendered duration differs from narration")
	}
}

// distinctClips returns each clip file tl was built from once, in input
// order. Clips the first assembly left unused are included because a
// remeasured timeline may need them.
func distinctClips(tl *AssembledTimeline) []common.VisualClip {
	clips := tl.Clips
	if len(clips) == 0 {
		for _, seg := range tl.Segments {
			clips = append(clips, seg.Clip)
		}
	}

	seen := make(map[string]struct{})
	var out []common.VisualClip
	for _, clip := range clips {
		if _, ok := seen[clip.Path]; ok {
			continue
		}
		seen[clip.Path] = struct{}{}
		out = append(out, clip)
	}
	return out
}

// normalizedPath is where the frame-fitted copy of a clip is written
func normalizedPath(clipPath string) string {
	return strings.TrimSuffix(clipPath, filepath.Ext(clipPath)) + ".norm.mp4"
}

// NormalizeArgs returns the ffmpeg arguments that fit clip to the output
// frame: scale to frame height, center-crop wider clips, pad narrower ones,
// and fix pixel format and frame rate so the results concatenate cleanly.
// Audio is dropped; the narration is the only soundtrack.
func NormalizeArgs(cfg common.PipelineConfig, clip common.VisualClip, dest string) ([]string, error) {
	plan, err := PlanNormalize(clip.SourceWidth, clip.SourceHeight, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", clip.Path, err)
	}

	v := ffmpeg.Input(clip.Path).Video()
	if plan.NeedsResize() {
		v = v.Filter("scale", ffmpeg.Args{strconv.Itoa(plan.ScaledWidth), strconv.Itoa(plan.ScaledHeight)})
	}
	if plan.NeedsCrop() {
		v = v.Filter("crop", ffmpeg.Args{
			strconv.Itoa(plan.Width), strconv.Itoa(plan.Height), strconv.Itoa(plan.CropX), "0",
		})
	}
	if plan.Width < cfg.FrameWidth {
		v = v.Filter("pad", ffmpeg.Args{
			strconv.Itoa(cfg.FrameWidth), strconv.Itoa(cfg.FrameHeight), "(ow-iw)/2", "0",
		})
	}
	v = v.Filter("setsar", ffmpeg.Args{"1"}).
		Filter("fps", ffmpeg.Args{strconv.Itoa(cfg.FPS)}).
		Filter("format", ffmpeg.Args{"yuv420p"})

	return v.Output(dest, ffmpeg.KwArgs{"c:v": cfg.VideoCodec}).OverWriteOutput().GetArgs(), nil
}

// ConcatList writes tl as a concat demuxer script over the normalized clips.
// Only the last entry carries an outpoint, so earlier segments play whole.
func ConcatList(tl *AssembledTimeline) (string, error) {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for i, seg := range tl.Segments {
		abs, err := filepath.Abs(normalizedPath(seg.Clip.Path))
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", seg.Clip.Path, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
		if i == len(tl.Segments)-1 && seg.Trimmed() {
			fmt.Fprintf(&b, "outpoint %s\n", formatSeconds(seg.Length))
		}
	}
	return b.String(), nil
}

// BuildRenderArgs returns the final ffmpeg arguments: play the concat list,
// overlay the caption layer centered for the whole duration, map the
// narration and cap the output at target seconds.
func BuildRenderArgs(cfg common.PipelineConfig, listPath, audioPath, captionPath, outputPath string, target float64) []string {
	video := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).Video()
	layer := ffmpeg.Input(captionPath, ffmpeg.KwArgs{"loop": 1})
	video = video.Overlay(layer, "", ffmpeg.KwArgs{"x": "(W-w)/2", "y": "(H-h)/2", "shortest": 1})
	audio := ffmpeg.Input(audioPath).Audio()

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outputPath, ffmpeg.KwArgs{
		"c:v":     cfg.VideoCodec,
		"c:a":     cfg.AudioCodec,
		"r":       strconv.Itoa(cfg.FPS),
		"pix_fmt": "yuv420p",
		"t":       formatSeconds(target),
	}).OverWriteOutput().GetArgs()
}

// formatSeconds prints the shortest decimal that round-trips, so the encoder
// sees the exact double rather than a rounded value.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
