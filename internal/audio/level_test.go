package audio_test

import (
	"testing"
	"time"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestRMSAndDBFS(t *testing.T) {
	t.Parallel()

	assert.Zero(t, audio.RMS(nil))
	assert.Equal(t, audio.MinDB, audio.DBFS(0))

	half := audio.RMS(constant(100, 16384))
	assert.InDelta(t, 0.5, half, 1e-9)
	assert.InDelta(t, -6.02, audio.DBFS(half), 0.01)
}

func TestVolume(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, audio.Volume(constant(10, 0)))
	assert.Equal(t, 100, audio.Volume(constant(10, -32768)))
	// RMS 0.01 (-40 dBFS) -> sqrt(0.01)*100 = 10
	assert.Equal(t, 10, audio.Volume(constant(10, 328)))
}

func TestClip(t *testing.T) {
	t.Parallel()

	clip := audio.NewClip(constant(8000, 100), 16000)
	assert.InDelta(t, 0.5, clip.Seconds(), 1e-9)
	assert.Equal(t, 500*time.Millisecond, clip.Duration())

	samples, err := clip.Samples()
	require.NoError(t, err)
	assert.Len(t, samples, 8000)

	_, err = audio.Clip{PCM: []byte{1, 2, 3}, SampleRate: 16000}.Samples()
	require.ErrorIs(t, err, audio.ErrUndecodable)

	_, err = audio.Clip{SampleRate: 16000}.Samples()
	require.ErrorIs(t, err, audio.ErrUndecodable)
}
