package common

// ScriptPackage is the structured script returned by the script generator.
// It is produced once per run and never mutated afterwards.
type ScriptPackage struct {
	Topic       string
	Narration   string
	Keywords    []string
	Title       string
	Description string
}

// NarrationAsset is the synthesized voice track. Its duration is the
// target length of the whole video.
type NarrationAsset struct {
	Path            string
	DurationSeconds float64
}

// VisualClip is one downloaded and probed stock clip. Width and Height are
// the geometry after normalization.
type VisualClip struct {
	SourceQuery     string
	Path            string
	SourceWidth     int
	SourceHeight    int
	Width           int
	Height          int
	DurationSeconds float64
}

// FinalArtifact is the rendered output file.
type FinalArtifact struct {
	Path string
}

// Pipeline stage names, in execution order
const (
	StageScript    = "script"
	StageNarration = "narration"
	StageAssets    = "assets"
	StageTimeline  = "timeline"
	StageCaption   = "caption"
	StageRender    = "render"
)

// StageOrder returns the order in which the pipeline stages run
func StageOrder() []string {
	return []string{StageScript, StageNarration, StageAssets, StageTimeline, StageCaption, StageRender}
}
