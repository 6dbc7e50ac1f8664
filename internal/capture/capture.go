// Package capture runs fixed-length microphone captures with live amplitude
// metering and an optional background transcript.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/voicebank/internal/audio"
)

var (
	// ErrMicUnavailable wraps any failure to open or read the microphone.
	ErrMicUnavailable = errors.New("microphone unavailable")
	// ErrCancelled is returned by a capture that was torn down by a newer
	// Start or by Close before it finished.
	ErrCancelled = errors.New("capture cancelled")
	// ErrUnsupported is returned when waiting on a transcript that was never
	// requested.
	ErrUnsupported = errors.New("transcription unsupported")
)

const (
	defaultMeterInterval     = 16 * time.Millisecond
	defaultMeterWindow       = 50 * time.Millisecond
	defaultTranscribeTimeout = 30 * time.Second
)

// CaptureDevice is the microphone capability a session drives.
type CaptureDevice interface {
	Open(ctx context.Context) error
	// ReadSamples blocks for the next batch of samples. It must return
	// promptly once ctx is done.
	ReadSamples(ctx context.Context) ([]int16, error)
	Close() error
	SampleRate() int
}

// Transcriber turns a finished clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

// Config tunes metering and transcription.
type Config struct {
	MeterInterval     time.Duration
	MeterWindow       time.Duration
	TranscribeTimeout time.Duration
}

// WithDefaults returns a config with default values applied to zero fields.
func (c Config) WithDefaults() Config {
	if c.MeterInterval <= 0 {
		c.MeterInterval = defaultMeterInterval
	}
	if c.MeterWindow <= 0 {
		c.MeterWindow = defaultMeterWindow
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = defaultTranscribeTimeout
	}
	return c
}

// Recording is the result of one capture.
type Recording struct {
	Clip audio.Clip
	// Transcript is nil when no transcriber is configured. Callers then skip
	// script checks and rely on the local validator alone.
	Transcript *Transcript
}

// Transcript resolves to the text spoken in a clip.
type Transcript struct {
	done chan struct{}
	text string
	err  error
}

// Wait blocks until the transcript is ready or ctx is done.
func (t *Transcript) Wait(ctx context.Context) (string, error) {
	if t == nil {
		return "", ErrUnsupported
	}

	select {
	case <-t.done:
		return t.text, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolved returns a transcript that is already available. Useful for
// callers that obtain text some other way.
func Resolved(text string, err error) *Transcript {
	t := &Transcript{done: make(chan struct{}), text: text, err: err}
	close(t.done)
	return t
}

// Session owns a device and runs at most one capture on it at a time.
type Session struct {
	dev         CaptureDevice
	transcriber Transcriber
	cfg         Config
	logger      *slog.Logger

	mu     sync.Mutex
	active *activeCapture
}

type activeCapture struct {
	cancel    context.CancelFunc
	timer     *time.Timer
	done      chan struct{}
	cancelled atomic.Bool
}

// stop ends the capture early. When abort is set the capture reports
// ErrCancelled instead of its clip.
func (ac *activeCapture) stop(abort bool) {
	if abort {
		ac.cancelled.Store(true)
	}
	if ac.timer != nil {
		ac.timer.Stop()
	}
	ac.cancel()
}

// NewSession creates a session. transcriber may be nil.
func NewSession(dev CaptureDevice, transcriber Transcriber, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		dev:         dev,
		transcriber: transcriber,
		cfg:         cfg.WithDefaults(),
		logger:      logger,
	}
}

// Start captures for duration, calling onAmplitude with a 0..100 volume every
// meter interval. Any capture still running is torn down first and returns
// ErrCancelled. Start blocks until the capture ends.
func (s *Session) Start(ctx context.Context, onAmplitude func(int), duration time.Duration) (*Recording, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("capture duration must be positive, got %s", duration)
	}

	s.mu.Lock()
	s.teardownLocked()

	capCtx, cancel := context.WithCancel(ctx)
	ac := &activeCapture{cancel: cancel, done: make(chan struct{})}

	if err := s.dev.Open(capCtx); err != nil {
		cancel()
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrMicUnavailable, err)
	}

	ac.timer = time.AfterFunc(duration, cancel)
	s.active = ac
	s.mu.Unlock()

	pcm, readErr := s.capture(capCtx, onAmplitude)

	ac.stop(false)
	if err := s.dev.Close(); err != nil {
		s.logger.Warn("failed to close capture device", "error", err)
	}
	close(ac.done)

	s.mu.Lock()
	if s.active == ac {
		s.active = nil
	}
	s.mu.Unlock()

	switch {
	case ac.cancelled.Load():
		return nil, ErrCancelled
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case readErr != nil:
		return nil, fmt.Errorf("%w: %w", ErrMicUnavailable, readErr)
	}

	rec := &Recording{Clip: audio.NewClip(pcm, s.dev.SampleRate())}
	if s.transcriber != nil {
		rec.Transcript = s.transcribe(ctx, rec.Clip)
	}

	s.logger.Debug("capture finished", "seconds", rec.Clip.Seconds(), "transcript", rec.Transcript != nil)

	return rec, nil
}

// Stop ends the running capture early; its Start call returns the audio
// captured so far.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.stop(false)
	}
}

// Close tears down any running capture. The session stays usable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
}

// Active reports whether a capture is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active != nil
}

// teardownLocked cancels the running capture and waits until its device is
// closed and its meter has exited.
func (s *Session) teardownLocked() {
	prev := s.active
	if prev == nil {
		return
	}

	prev.stop(true)
	<-prev.done
	s.active = nil
}

func (s *Session) capture(ctx context.Context, onAmplitude func(int)) ([]int16, error) {
	window := max(int(s.cfg.MeterWindow.Seconds()*float64(s.dev.SampleRate())), 1)
	ring := audio.NewSampleRingBuffer(window)

	var wg sync.WaitGroup
	if onAmplitude != nil {
		wg.Go(func() {
			s.meter(ctx, ring, onAmplitude)
		})
	}
	defer wg.Wait()

	var pcm []int16
	for {
		samples, err := s.dev.ReadSamples(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return pcm, nil
			}
			return pcm, err
		}

		pcm = append(pcm, samples...)
		ring.Write(samples...)
	}
}

func (s *Session) meter(ctx context.Context, ring *audio.SampleRingBuffer, onAmplitude func(int)) {
	ticker := time.NewTicker(s.cfg.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onAmplitude(audio.Volume(ring.ReadSamples(ring.Count())))
		}
	}
}

func (s *Session) transcribe(ctx context.Context, clip audio.Clip) *Transcript {
	t := &Transcript{done: make(chan struct{})}

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TranscribeTimeout)

	go func() {
		defer cancel()
		defer close(t.done)

		t.text, t.err = s.transcriber.Transcribe(tctx, clip)
		if t.err != nil {
			s.logger.Warn("transcription failed", "error", t.err)
		}
	}()

	return t
}
