package shorts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shortsmith/common"
)

// FootageCatalog is the stock footage search and download service
type FootageCatalog interface {
	Search(ctx context.Context, query string) ([]Video, error)
	Download(ctx context.Context, link, dest string) error
}

// ClipProber decodes a local clip and reports its geometry and duration
type ClipProber interface {
	ProbeClip(path string) (ClipInfo, error)
}

// FetchOutcome is the per-keyword result of a fetch. Clip is nil when the
// keyword was skipped, in which case Reason says why. Staging is where the
// download landed first; Path is set once it was moved into place.
type FetchOutcome struct {
	Keyword string
	Clip    *common.VisualClip
	Staging string
	Path    string
	Reason  string
}

// Skipped reports whether the keyword produced no usable clip
func (o FetchOutcome) Skipped() bool {
	return o.Clip == nil
}

// FetchResult carries the accepted clips in keyword order and every local
// file the fetch created, whether or not it ended up usable.
type FetchResult struct {
	Clips    []common.VisualClip
	Created  []string
	Outcomes []FetchOutcome
}

// AssetFetcher turns search keywords into normalized local clips.
type AssetFetcher struct {
	catalog     FootageCatalog
	prober      ClipProber
	workDir     string
	maxClips    int
	concurrency int
	frameW      int
	frameH      int
}

func NewAssetFetcher(cfg common.PipelineConfig, catalog FootageCatalog, prober ClipProber) *AssetFetcher {
	concurrency := cfg.FetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &AssetFetcher{
		catalog:     catalog,
		prober:      prober,
		workDir:     cfg.WorkDir,
		maxClips:    cfg.MaxClips,
		concurrency: concurrency,
		frameW:      cfg.FrameWidth,
		frameH:      cfg.FrameHeight,
	}
}

// Fetch processes keywords in order until maxClips clips are accepted or the
// keywords run out. Per-keyword failures are skips. The returned result is
// never nil so callers can always track Created; the error is
// ErrNoUsableAssets when no keyword produced a clip.
//
// With concurrency above one, keywords are fetched in windows no larger than
// the number of clips still needed, so the cap is never overshot and the
// clip order still follows the keyword order. Keywords sharing a file name
// never run in the same window.
//
// A later keyword whose file name matches an earlier clip replaces that
// file; the earlier clips then take on the new geometry and duration.
func (f *AssetFetcher) Fetch(ctx context.Context, keywords []string) (*FetchResult, error) {
	result := &FetchResult{}
	seen := make(map[string]struct{})

	next := 0
	for next < len(keywords) && len(result.Clips) < f.maxClips {
		if err := ctx.Err(); err != nil {
			break
		}

		limit := min(f.concurrency, f.maxClips-len(result.Clips))
		batch := nextWindow(keywords[next:], limit)
		next += len(batch)

		outcomes := f.fetchWindow(ctx, batch)
		for _, o := range outcomes {
			result.Outcomes = append(result.Outcomes, o)
			for _, p := range []string{o.Staging, o.Path} {
				if p == "" {
					continue
				}
				if _, ok := seen[p]; !ok {
					seen[p] = struct{}{}
					result.Created = append(result.Created, p)
				}
			}
			if o.Skipped() {
				log.Warn().Str("keyword", o.Keyword).Str("reason", o.Reason).Msg("Skipping keyword")
				continue
			}
			log.Info().Str("keyword", o.Keyword).
				Int("width", o.Clip.Width).
				Int("height", o.Clip.Height).
				Float64("duration", o.Clip.DurationSeconds).
				Msg("Clip accepted")
			refreshShared(result.Clips, *o.Clip)
			result.Clips = append(result.Clips, *o.Clip)
		}
	}

	if len(result.Clips) == 0 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %v", common.ErrNoUsableAssets, err)
		}
		return result, fmt.Errorf("%w: none of %d keywords produced a clip", common.ErrNoUsableAssets, len(keywords))
	}
	return result, nil
}

// nextWindow takes up to limit leading keywords, stopping before one whose
// file name is already in the window. It always takes at least one.
func nextWindow(keywords []string, limit int) []string {
	names := make(map[string]struct{})
	n := 0
	for n < len(keywords) && n < limit {
		name := common.ClipFileName(keywords[n])
		if _, clash := names[name]; clash {
			break
		}
		names[name] = struct{}{}
		n++
	}
	return keywords[:max(n, 1)]
}

// refreshShared copies the geometry and duration of clip onto earlier clips
// that point at the same file, which clip's download has just replaced.
func refreshShared(clips []common.VisualClip, clip common.VisualClip) {
	for i := range clips {
		if clips[i].Path != clip.Path {
			continue
		}
		clips[i].SourceWidth = clip.SourceWidth
		clips[i].SourceHeight = clip.SourceHeight
		clips[i].Width = clip.Width
		clips[i].Height = clip.Height
		clips[i].DurationSeconds = clip.DurationSeconds
	}
}

func (f *AssetFetcher) fetchWindow(ctx context.Context, batch []string) []FetchOutcome {
	outcomes := make([]FetchOutcome, len(batch))
	if len(batch) == 1 {
		outcomes[0] = f.fetchOne(ctx, batch[0])
		return outcomes
	}

	// fetchOne never fails the group; a slot per keyword keeps the order
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, kw := range batch {
		g.Go(func() error {
			outcomes[i] = f.fetchOne(ctx, kw)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (f *AssetFetcher) fetchOne(ctx context.Context, keyword string) FetchOutcome {
	out := FetchOutcome{Keyword: keyword}

	videos, err := f.catalog.Search(ctx, keyword)
	if err != nil {
		out.Reason = err.Error()
		return out
	}
	if len(videos) == 0 {
		out.Reason = "no candidates"
		return out
	}

	variant, ok := SelectVariant(videos)
	if !ok {
		out.Reason = "no downloadable variant"
		return out
	}

	dest := filepath.Join(f.workDir, common.ClipFileName(keyword))
	staging := stagingPath(dest)
	// recorded before the download so a partial file is still cleaned up
	out.Staging = staging
	if err := f.catalog.Download(ctx, variant.Link, staging); err != nil {
		out.Reason = err.Error()
		return out
	}

	info, err := f.prober.ProbeClip(staging)
	if err != nil {
		out.Reason = err.Error()
		return out
	}
	if !(info.DurationSeconds >= MinClipSeconds) {
		out.Reason = fmt.Sprintf("clip too short (%vs)", info.DurationSeconds)
		return out
	}

	plan, err := PlanNormalize(info.Width, info.Height, f.frameW, f.frameH)
	if err != nil {
		out.Reason = err.Error()
		return out
	}

	if err := os.Rename(staging, dest); err != nil {
		out.Reason = err.Error()
		return out
	}
	out.Path = dest

	out.Clip = &common.VisualClip{
		SourceQuery:     keyword,
		Path:            dest,
		SourceWidth:     info.Width,
		SourceHeight:    info.Height,
		Width:           plan.Width,
		Height:          plan.Height,
		DurationSeconds: info.DurationSeconds,
	}
	return out
}

// stagingPath is where a download lands before it has been validated
func stagingPath(dest string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ".download" + filepath.Ext(dest)
}

// SelectVariant picks the first candidate in catalog order that has a
// downloadable variant, and returns its widest variant. Equal widths keep
// the catalog order.
func SelectVariant(videos []Video) (VideoFile, bool) {
	for _, v := range videos {
		var files []VideoFile
		for _, vf := range v.VideoFiles {
			if vf.Link != "" {
				files = append(files, vf)
			}
		}
		if len(files) == 0 {
			continue
		}
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Width > files[j].Width
		})
		return files[0], true
	}
	return VideoFile{}, false
}
