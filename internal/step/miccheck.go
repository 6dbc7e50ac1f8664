package step

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/voicebank/internal/audio"
)

// MicCheck confirms the microphone picks up the donor before any recording
// is kept.
type MicCheck struct {
	rec       Recorder
	duration  time.Duration
	threshold int
	deps      Deps

	mu         sync.Mutex
	passed     bool
	peak       int
	onComplete func()
}

// NewMicCheck creates the microphone check. A capture passes when its volume
// exceeds threshold (0..100).
func NewMicCheck(deps Deps, duration time.Duration, threshold int) *MicCheck {
	return &MicCheck{
		rec:       deps.Recorder,
		duration:  duration,
		threshold: threshold,
		deps:      deps,
	}
}

// OnComplete registers fn to run the first time the check passes.
func (m *MicCheck) OnComplete(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onComplete = fn
}

// Mount is a no-op; the check needs no remote data.
func (m *MicCheck) Mount(context.Context, string) error {
	return nil
}

// Unmount tears down any running capture.
func (m *MicCheck) Unmount() {
	m.rec.Close()
}

// Run captures once and reports whether the microphone passed. Once passed,
// the check stays passed.
func (m *MicCheck) Run(ctx context.Context, onAmplitude func(int)) (bool, error) {
	var peak atomic.Int32
	meter := func(v int) {
		if int32(v) > peak.Load() {
			peak.Store(int32(v))
		}
		if onAmplitude != nil {
			onAmplitude(v)
		}
	}

	rec, err := m.rec.Start(ctx, meter, m.duration)
	if err != nil {
		return m.Passed(), err
	}

	samples, _ := rec.Clip.Samples()
	level := max(int(peak.Load()), audio.Volume(samples))

	m.mu.Lock()
	m.peak = level
	first := !m.passed && level > m.threshold
	if first {
		m.passed = true
	}
	passed := m.passed
	cb := m.onComplete
	m.mu.Unlock()

	m.deps.logger().Info("mic check finished", "level", level, "threshold", m.threshold, "passed", passed)
	if first {
		notify(cb)
	}

	return passed, nil
}

// Passed reports whether any run has passed.
func (m *MicCheck) Passed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.passed
}

// Completed is Passed.
func (m *MicCheck) Completed() bool {
	return m.Passed()
}

// LastLevel returns the peak volume of the latest run.
func (m *MicCheck) LastLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.peak
}
