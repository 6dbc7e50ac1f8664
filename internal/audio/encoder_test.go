package audio_test

import (
	"math"
	"testing"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(seconds float64, sampleRate int, freq float64) []int16 {
	n := int(seconds * float64(sampleRate))
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return s
}

func TestMP3Encoder_EncodesClip(t *testing.T) {
	t.Parallel()

	enc := audio.MP3Encoder{}
	data, err := enc.Encode(audio.NewClip(sine(1, 16000, 440), 16000))

	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "audio/mpeg", enc.ContentType())
	assert.Equal(t, ".mp3", enc.Extension())
}

func TestMP3Encoder_RejectsUndecodableClip(t *testing.T) {
	t.Parallel()

	_, err := audio.MP3Encoder{}.Encode(audio.Clip{SampleRate: 16000})

	require.ErrorIs(t, err, audio.ErrUndecodable)
}
