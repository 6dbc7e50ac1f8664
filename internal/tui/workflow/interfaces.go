// Package workflow holds one bubbletea screen per wizard step. Screens drive
// their step controller directly; navigation between steps belongs to the
// parent app model.
package workflow

import (
	"context"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/recording"
	"github.com/alkime/voicebank/internal/region"
	"github.com/alkime/voicebank/internal/step"
	"github.com/alkime/voicebank/internal/validate"
)

// MicChecker runs the microphone check.
type MicChecker interface {
	Run(ctx context.Context, onAmplitude func(int)) (bool, error)
	Passed() bool
	LastLevel() int
}

// KeywordRecorder records keyword repeats.
type KeywordRecorder interface {
	Record(ctx context.Context, slot int, onAmplitude func(int)) (recording.Status, error)
	RetryUpload(ctx context.Context, slot int) (recording.Status, error)
	Retry(slot int) error
	Next() error
	Snapshot() step.KeywordSnapshot
}

// SentenceRecorder records sentences and uploads them with a keyword span.
type SentenceRecorder interface {
	Select(i int) error
	Record(ctx context.Context, onAmplitude func(int)) (validate.Outcome, error)
	AdjustRegion(fn func(sel *region.Selector)) error
	Upload(ctx context.Context) error
	Snapshot() step.SentenceSnapshot
}

// Reviewer walks the cross-check assignment.
type Reviewer interface {
	Current() (item api.CrossCheckItem, start, end float64, ok bool)
	AdjustRegion(fn func(sel *region.Selector)) error
	Submit(ctx context.Context) error
	Skip(ctx context.Context) error
	Progress() (reviewed, total int)
	Exhausted() bool
}
