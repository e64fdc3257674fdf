package common

import (
	"errors"
	"fmt"
)

var (
	ErrConfig           = errors.New("configuration error")
	ErrScriptGeneration = errors.New("script generation failed")
	ErrNarration        = errors.New("narration synthesis failed")
	ErrNoUsableAssets   = errors.New("no usable assets")
	ErrTimeline         = errors.New("timeline assembly failed")
	ErrRender           = errors.New("render failed")
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage named by the first StageError in err's chain,
// or "" if there is none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
