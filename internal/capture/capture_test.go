package capture_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice emits a constant-amplitude packet every millisecond while open.
type fakeDevice struct {
	openErr   error
	amplitude int16

	mu      sync.Mutex
	open    bool
	opens   int
	closes  int
	overlap bool
}

func (d *fakeDevice) Open(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return d.openErr
	}
	if d.open {
		d.overlap = true
	}
	d.open = true
	d.opens++
	return nil
}

func (d *fakeDevice) ReadSamples(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
	}

	packet := make([]int16, 16)
	for i := range packet {
		packet[i] = d.amplitude
	}
	return packet, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.open = false
	d.closes++
	return nil
}

func (d *fakeDevice) SampleRate() int { return 16000 }

func (d *fakeDevice) stats() (opens, closes int, open, overlap bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.closes, d.open, d.overlap
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, audio.Clip) (string, error) {
	return f.text, f.err
}

func testConfig() capture.Config {
	return capture.Config{MeterInterval: 2 * time.Millisecond}
}

func TestStart_CapturesClipAndMeters(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{amplitude: 8000}
	session := capture.NewSession(dev, nil, testConfig(), nil)

	var ticks atomic.Int32
	var peak atomic.Int32
	rec, err := session.Start(t.Context(), func(v int) {
		ticks.Add(1)
		if int32(v) > peak.Load() {
			peak.Store(int32(v))
		}
	}, 60*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, rec.Clip.IsEmpty())
	assert.Equal(t, 16000, rec.Clip.SampleRate)
	assert.Nil(t, rec.Transcript)
	assert.Positive(t, ticks.Load())
	assert.Positive(t, peak.Load())
	assert.LessOrEqual(t, peak.Load(), int32(100))

	opens, closes, open, _ := dev.stats()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, open)
	assert.False(t, session.Active())
}

func TestStart_OpenFailure(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{openErr: errors.New("permission denied")}
	session := capture.NewSession(dev, nil, testConfig(), nil)

	_, err := session.Start(t.Context(), nil, 10*time.Millisecond)
	require.ErrorIs(t, err, capture.ErrMicUnavailable)
	assert.False(t, session.Active())
}

func TestStart_RejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	session := capture.NewSession(&fakeDevice{}, nil, testConfig(), nil)
	_, err := session.Start(t.Context(), nil, 0)
	require.Error(t, err)
}

func TestStart_SupersedesRunningCapture(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{amplitude: 1000}
	session := capture.NewSession(dev, nil, testConfig(), nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := session.Start(t.Context(), func(int) {}, 10*time.Second)
		firstErr <- err
	}()

	require.Eventually(t, session.Active, time.Second, time.Millisecond)

	rec, err := session.Start(t.Context(), func(int) {}, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, rec.Clip.IsEmpty())

	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, capture.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("superseded capture did not return")
	}

	opens, closes, open, overlap := dev.stats()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes)
	assert.False(t, open)
	assert.False(t, overlap, "device must be released before the next capture opens it")
}

func TestStop_ReturnsPartialClip(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{amplitude: 1000}
	session := capture.NewSession(dev, nil, testConfig(), nil)

	done := make(chan *capture.Recording, 1)
	go func() {
		rec, err := session.Start(t.Context(), nil, 10*time.Second)
		assert.NoError(t, err)
		done <- rec
	}()

	require.Eventually(t, session.Active, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	session.Stop()

	select {
	case rec := <-done:
		require.NotNil(t, rec)
		assert.False(t, rec.Clip.IsEmpty())
	case <-time.After(time.Second):
		t.Fatal("stopped capture did not return")
	}
}

func TestClose_CancelsRunningCapture(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	session := capture.NewSession(dev, nil, testConfig(), nil)

	errC := make(chan error, 1)
	go func() {
		_, err := session.Start(t.Context(), nil, 10*time.Second)
		errC <- err
	}()

	require.Eventually(t, session.Active, time.Second, time.Millisecond)
	session.Close()

	require.ErrorIs(t, <-errC, capture.ErrCancelled)
	_, _, open, _ := dev.stats()
	assert.False(t, open)
}

func TestStart_Transcript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transcriber capture.Transcriber
		wantText    string
		wantErr     bool
	}{
		{name: "text", transcriber: fakeTranscriber{text: "hello"}, wantText: "hello"},
		{name: "failure", transcriber: fakeTranscriber{err: errors.New("boom")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := capture.NewSession(&fakeDevice{}, tt.transcriber, testConfig(), nil)
			rec, err := session.Start(t.Context(), nil, 10*time.Millisecond)
			require.NoError(t, err)
			require.NotNil(t, rec.Transcript)

			text, err := rec.Transcript.Wait(t.Context())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestTranscript_NilIsUnsupported(t *testing.T) {
	t.Parallel()

	var tr *capture.Transcript
	_, err := tr.Wait(t.Context())
	require.ErrorIs(t, err, capture.ErrUnsupported)

	text, err := capture.Resolved("ok", nil).Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}
