package shorts

import (
	"fmt"
	"math"
)

// NormalizePlan describes how a source clip is fitted to the portrait frame:
// scale to the frame height keeping aspect ratio, then center-crop
// horizontally if the result is wider than the frame.
type NormalizePlan struct {
	SourceWidth  int
	SourceHeight int
	ScaledWidth  int
	ScaledHeight int
	CropX        int
	Width        int
	Height       int
}

// NeedsResize reports whether the source differs from the scaled size
func (p NormalizePlan) NeedsResize() bool {
	return p.ScaledWidth != p.SourceWidth || p.ScaledHeight != p.SourceHeight
}

// NeedsCrop reports whether the scaled clip is wider than the output
func (p NormalizePlan) NeedsCrop() bool {
	return p.Width < p.ScaledWidth
}

// PlanNormalize computes the normalization of a w×h clip for a frameW×frameH
// frame. The output always has height frameH and width at most frameW.
// A clip already at the output geometry yields a plan with no resize and
// no crop.
func PlanNormalize(w, h, frameW, frameH int) (NormalizePlan, error) {
	if w <= 0 || h <= 0 {
		return NormalizePlan{}, fmt.Errorf("invalid clip geometry %dx%d", w, h)
	}
	if frameW <= 0 || frameH <= 0 {
		return NormalizePlan{}, fmt.Errorf("invalid frame geometry %dx%d", frameW, frameH)
	}

	scaledW := int(math.Round(float64(w) * float64(frameH) / float64(h)))
	if scaledW < 1 {
		scaledW = 1
	}

	plan := NormalizePlan{
		SourceWidth:  w,
		SourceHeight: h,
		ScaledWidth:  scaledW,
		ScaledHeight: frameH,
		Width:        scaledW,
		Height:       frameH,
	}
	if scaledW > frameW {
		plan.CropX = (scaledW - frameW) / 2
		plan.Width = frameW
	}
	return plan, nil
}
