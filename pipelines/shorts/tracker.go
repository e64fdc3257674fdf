package shorts

import (
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker records every transient file a run creates and removes them all
// on Release. Deletion failures are logged and never returned.
type Tracker struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Track registers paths for removal. Paths may not exist yet; tracking
// before a file is created guarantees partial writes are cleaned up too.
func (t *Tracker) Track(paths ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := t.seen[p]; ok {
			continue
		}
		t.seen[p] = struct{}{}
		t.paths = append(t.paths, p)
	}
}

// Paths returns the tracked paths in registration order
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// Release removes every tracked file, newest first, and returns how many
// were actually deleted. Calling it again is a no-op.
func (t *Tracker) Release() int {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.seen = make(map[string]struct{})
	t.mu.Unlock()

	removed := 0
	for i := len(paths) - 1; i >= 0; i-- {
		err := os.Remove(paths[i])
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("path", paths[i]).Msg("transient file already gone")
		default:
			log.Warn().Err(err).Str("path", paths[i]).Msg("failed to remove transient file")
		}
	}
	return removed
}

// WithTracker runs fn with a fresh tracker and releases it on every exit
// path, including panics. fn's error is returned unchanged.
func WithTracker(fn func(t *Tracker) error) error {
	t := NewTracker()
	defer t.Release()
	return fn(t)
}
