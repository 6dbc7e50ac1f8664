package audio

import (
	"bytes"
	"fmt"
	"log/slog"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// MP3Encoder encodes clips to MP3 before they are uploaded.
type MP3Encoder struct{}

// ContentType is the MIME type of encoded clips.
func (MP3Encoder) ContentType() string {
	return "audio/mpeg"
}

// Extension is the file extension of encoded clips.
func (MP3Encoder) Extension() string {
	return ".mp3"
}

// Encode converts the clip's PCM into an MP3 byte stream.
func (MP3Encoder) Encode(clip Clip) ([]byte, error) {
	monoSamples, err := clip.Samples()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM samples: %w", err)
	}

	// Create shine-mp3 encoder as STEREO (workaround for mono bug)
	encoder := mp3encoder.NewEncoder(clip.SampleRate, 2)

	// WORKAROUND: shine-mp3 Write() has a bug for mono (always increments by samples_per_pass * 2)
	// Convert mono to stereo by duplicating samples (L=R)
	stereoSamples := make([]int16, len(monoSamples)*2)
	for i, sample := range monoSamples {
		stereoSamples[i*2] = sample   // Left channel
		stereoSamples[i*2+1] = sample // Right channel (duplicate)
	}

	slog.Debug("encoding MP3 clip",
		"monoSamples", len(monoSamples),
		"seconds", clip.Seconds())

	var out bytes.Buffer
	if err := encoder.Write(&out, stereoSamples); err != nil {
		return nil, fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	return out.Bytes(), nil
}
