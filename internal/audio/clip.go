package audio

import (
	"errors"
	"time"
)

// ErrUndecodable is returned when a clip's bytes cannot be read as S16LE PCM.
var ErrUndecodable = errors.New("clip is not decodable S16LE PCM")

// Clip is a captured mono recording: raw S16LE PCM plus its sample rate.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// NewClip builds a clip from int16 samples.
func NewClip(samples []int16, sampleRate int) Clip {
	return Clip{
		PCM:        Int16ToBytes(samples),
		SampleRate: sampleRate,
	}
}

// Samples decodes the clip. Empty, odd-length or rate-less clips are
// rejected with ErrUndecodable.
func (c Clip) Samples() ([]int16, error) {
	if c.SampleRate <= 0 || len(c.PCM) == 0 || len(c.PCM)%2 != 0 {
		return nil, ErrUndecodable
	}

	return BytesToInt16(c.PCM), nil
}

// Seconds returns the clip length in seconds.
func (c Clip) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}

	return float64(len(c.PCM)/2) / float64(c.SampleRate)
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	return time.Duration(c.Seconds() * float64(time.Second))
}

// IsEmpty reports whether the clip holds no audio.
func (c Clip) IsEmpty() bool {
	return len(c.PCM) == 0
}
