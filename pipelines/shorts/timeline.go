package shorts

import (
	"fmt"
	"math"

	"shortsmith/common"
)

// MinClipSeconds is the shortest clip the timeline accepts, a little over
// one frame at 24fps.
const MinClipSeconds = 0.05

// maxTimelineSegments bounds how many segments one timeline may hold
const maxTimelineSegments = 100_000

// TimelineSegment is one placement of a clip in the final sequence.
// Length equals the clip duration for every segment but the last, which
// may be cut short so the timeline ends exactly on the target.
type TimelineSegment struct {
	Clip   common.VisualClip
	Index  int
	Start  float64
	Length float64
}

// Trimmed reports whether the segment plays less than the whole clip
func (s TimelineSegment) Trimmed() bool {
	return s.Length < s.Clip.DurationSeconds
}

// AssembledTimeline is the ordered, duration-matched clip sequence. Clips
// keeps the input set it was built from, in order.
type AssembledTimeline struct {
	Segments []TimelineSegment
	Clips    []common.VisualClip
	Target   float64
}

// Duration is the sum of the effective segment lengths
func (t *AssembledTimeline) Duration() float64 {
	var total float64
	for _, s := range t.Segments {
		total += s.Length
	}
	return total
}

// Assemble cycles through clips in order, reusing them from the start as
// often as needed, until the accumulated duration reaches target. The tail
// of the final segment is then cut so the timeline ends exactly at target.
func Assemble(clips []common.VisualClip, target float64) (*AssembledTimeline, error) {
	if len(clips) == 0 {
		return nil, common.ErrNoUsableAssets
	}
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, fmt.Errorf("%w: invalid target duration %v", common.ErrTimeline, target)
	}
	shortest := math.Inf(1)
	for _, c := range clips {
		if !(c.DurationSeconds >= MinClipSeconds) || math.IsInf(c.DurationSeconds, 0) {
			return nil, fmt.Errorf("%w: clip %q has invalid duration %v", common.ErrTimeline, c.SourceQuery, c.DurationSeconds)
		}
		shortest = math.Min(shortest, c.DurationSeconds)
	}
	if target/shortest > maxTimelineSegments {
		return nil, fmt.Errorf("%w: target %v needs more than %d segments", common.ErrTimeline, target, maxTimelineSegments)
	}
	maxSegments := int(math.Ceil(target/shortest)) + len(clips)

	var (
		segments []TimelineSegment
		acc      float64
	)
	for acc < target {
		for _, c := range clips {
			if acc >= target {
				break
			}
			if len(segments) >= maxSegments {
				return nil, fmt.Errorf("%w: target %v needs more than %d segments", common.ErrTimeline, target, maxSegments)
			}
			segments = append(segments, TimelineSegment{
				Clip:   c,
				Index:  len(segments),
				Start:  acc,
				Length: c.DurationSeconds,
			})
			next := acc + c.DurationSeconds
			if next <= acc {
				return nil, fmt.Errorf("%w: clip %q too short to advance past %v", common.ErrTimeline, c.SourceQuery, acc)
			}
			acc = next
		}
	}

	last := &segments[len(segments)-1]
	if end := last.Start + last.Length; end > target {
		last.Length = target - last.Start
		// the subtraction can round up by an ulp
		for last.Start+last.Length > target {
			last.Length = math.Nextafter(last.Length, 0)
		}
	}

	return &AssembledTimeline{
		Segments: segments,
		Clips:    append([]common.VisualClip(nil), clips...),
		Target:   target,
	}, nil
}
