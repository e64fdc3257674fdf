package shorts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shortsmith/common"
)

// ScriptSource produces the structured script for a run
type ScriptSource interface {
	GenerateScriptPackage(ctx context.Context) (*common.ScriptPackage, error)
}

// Synthesizer turns narration text into an audio file at outputPath
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPath string) (*common.NarrationAsset, error)
}

// AssetSource resolves keywords into local clips
type AssetSource interface {
	Fetch(ctx context.Context, keywords []string) (*FetchResult, error)
}

// VideoCompositor renders the final artifact
type VideoCompositor interface {
	TransientPaths(tl *AssembledTimeline) []string
	Compose(ctx context.Context, tl *AssembledTimeline, audio common.NarrationAsset, caption string) (*common.FinalArtifact, error)
}

// RunRecorder stores the outcome of each run
type RunRecorder interface {
	Record(ctx context.Context, rec common.RunRecord) error
}

// Pipeline runs script, narration, assets, timeline, caption and render in
// order. Every transient file is removed before Run returns.
type Pipeline struct {
	cfg        common.PipelineConfig
	script     ScriptSource
	voice      Synthesizer
	assets     AssetSource
	compositor VideoCompositor
	recorder   RunRecorder
}

// NewPipeline wires the stages together. recorder may be nil.
func NewPipeline(cfg common.PipelineConfig, script ScriptSource, voice Synthesizer, assets AssetSource, compositor VideoCompositor, recorder RunRecorder) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		script:     script,
		voice:      voice,
		assets:     assets,
		compositor: compositor,
		recorder:   recorder,
	}
}

// Run executes one pipeline run. On failure the error is a *common.StageError
// naming the stage, wrapping one of the common sentinel errors, and no
// artifact is returned.
func (p *Pipeline) Run(ctx context.Context) (*common.FinalArtifact, error) {
	rec := common.RunRecord{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := log.With().Str("run_id", rec.ID).Logger()
	logger.Info().Msg("Starting shorts pipeline")

	var artifact *common.FinalArtifact
	err := WithTracker(func(tracker *Tracker) error {
		var runErr error
		artifact, runErr = p.run(ctx, logger, tracker, &rec)
		return runErr
	})
	if err != nil {
		artifact = nil
	}

	p.finish(ctx, logger, &rec, artifact, err)
	return artifact, err
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, tracker *Tracker, rec *common.RunRecord) (*common.FinalArtifact, error) {
	logger.Info().Str("stage", common.StageScript).Msg("Generating script")
	pkg, err := p.script.GenerateScriptPackage(ctx)
	if err != nil {
		return nil, stageError(common.StageScript, common.ErrScriptGeneration, err)
	}
	rec.Topic, rec.Title, rec.Description = pkg.Topic, pkg.Title, pkg.Description
	logger.Info().Str("topic", pkg.Topic).Strs("keywords", pkg.Keywords).Msg("Script ready")

	logger.Info().Str("stage", common.StageNarration).Msg("Synthesizing narration")
	narrationPath := p.cfg.NarrationPath()
	tracker.Track(narrationPath)
	audio, err := p.voice.Synthesize(ctx, pkg.Narration, narrationPath)
	if err != nil {
		return nil, stageError(common.StageNarration, common.ErrNarration, err)
	}
	if audio == nil || !(audio.DurationSeconds > 0) {
		return nil, stageError(common.StageNarration, common.ErrNarration, errors.New("narration has no duration"))
	}
	tracker.Track(audio.Path)
	rec.NarrationSeconds = audio.DurationSeconds
	logger.Info().Float64("duration", audio.DurationSeconds).Msg("Narration ready")

	logger.Info().Str("stage", common.StageAssets).Msg("Fetching footage")
	fetched, err := p.assets.Fetch(ctx, pkg.Keywords)
	if fetched != nil {
		tracker.Track(fetched.Created...)
		rec.Clips = len(fetched.Clips)
	}
	if err != nil {
		return nil, stageError(common.StageAssets, common.ErrNoUsableAssets, err)
	}

	logger.Info().Str("stage", common.StageTimeline).Msg("Assembling timeline")
	tl, err := Assemble(fetched.Clips, audio.DurationSeconds)
	if err != nil {
		return nil, stageError(common.StageTimeline, common.ErrTimeline, err)
	}
	rec.Segments = len(tl.Segments)
	logger.Info().Int("segments", len(tl.Segments)).Float64("target", tl.Target).Msg("Timeline ready")

	logger.Info().Str("stage", common.StageCaption).Msg("Compositing caption and rendering")
	tracker.Track(p.compositor.TransientPaths(tl)...)
	artifact, err := p.compositor.Compose(ctx, tl, *audio, pkg.Topic)
	if err != nil {
		return nil, stageError(common.StageRender, common.ErrRender, err)
	}
	return artifact, nil
}

func (p *Pipeline) finish(ctx context.Context, logger zerolog.Logger, rec *common.RunRecord, artifact *common.FinalArtifact, err error) {
	rec.FinishedAt = time.Now()
	if err != nil {
		rec.Status = common.RunFailed
		rec.FailedStage = common.FailedStage(err)
		rec.Error = err.Error()
		logger.Error().Err(err).Str("stage", rec.FailedStage).Msg("Pipeline failed")
	} else {
		rec.Status = common.RunSucceeded
		rec.ArtifactPath = artifact.Path
		logger.Info().Str("output", artifact.Path).
			Str("title", rec.Title).
			Float64("narration_seconds", rec.NarrationSeconds).
			Dur("elapsed", rec.FinishedAt.Sub(rec.StartedAt)).
			Msg("Pipeline completed")
	}

	if p.recorder == nil {
		return
	}
	// the run outcome stands even if the ledger write fails
	if rerr := p.recorder.Record(context.WithoutCancel(ctx), *rec); rerr != nil {
		logger.Warn().Err(rerr).Msg("failed to record run")
	}
}

// stageError tags err with stage and makes sure it matches sentinel. Errors
// already tagged by a deeper component keep their stage.
func stageError(stage string, sentinel, err error) error {
	var se *common.StageError
	if errors.As(err, &se) {
		return err
	}
	if !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return &common.StageError{Stage: stage, Err: err}
}
