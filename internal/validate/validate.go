// Package validate gates captured clips on duration, loudness and voice
// activity before anything is sent over the network.
package validate

import (
	"time"

	"github.com/alkime/voicebank/internal/audio"
)

// Rejection reasons reported to the donor.
const (
	ReasonUndecodable = "could not decode audio, please record again"
	ReasonTooShort    = "recording is too short"
	ReasonSilence     = "no speech detected (silence)"
	ReasonTooQuiet    = "recording is too quiet, speak louder or move closer"
)

// Outcome is the verdict for one clip.
type Outcome struct {
	Accepted bool
	Reason   string
}

// Accept is the accepting outcome.
func Accept() Outcome {
	return Outcome{Accepted: true}
}

// Reject returns a rejecting outcome with reason.
func Reject(reason string) Outcome {
	return Outcome{Accepted: false, Reason: reason}
}

// Thresholds are empirically chosen. Zero fields fall back to defaults.
type Thresholds struct {
	MinDuration          time.Duration
	SilenceDB            float64
	MinLoudnessDB        float64
	MinVoicedRatio       float64
	FrameLength          time.Duration
	FrameEnergyThreshold float64
}

// DefaultThresholds returns the stock gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDuration:          250 * time.Millisecond,
		SilenceDB:            -50,
		MinLoudnessDB:        -40,
		MinVoicedRatio:       0.05,
		FrameLength:          30 * time.Millisecond,
		FrameEnergyThreshold: 0.01,
	}
}

// WithDefaults returns thresholds with default values applied to zero fields.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()

	if t.MinDuration == 0 {
		t.MinDuration = d.MinDuration
	}
	if t.SilenceDB == 0 {
		t.SilenceDB = d.SilenceDB
	}
	if t.MinLoudnessDB == 0 {
		t.MinLoudnessDB = d.MinLoudnessDB
	}
	if t.MinVoicedRatio == 0 {
		t.MinVoicedRatio = d.MinVoicedRatio
	}
	if t.FrameLength == 0 {
		t.FrameLength = d.FrameLength
	}
	if t.FrameEnergyThreshold == 0 {
		t.FrameEnergyThreshold = d.FrameEnergyThreshold
	}

	return t
}

// Analysis holds the measurements a decision was made on.
type Analysis struct {
	Seconds     float64
	RMSDB       float64
	VoicedRatio float64
}

// Validator applies Thresholds to clips. It is safe for concurrent use.
type Validator struct {
	th Thresholds
}

// New creates a validator.
func New(th Thresholds) *Validator {
	return &Validator{th: th.WithDefaults()}
}

// Thresholds returns the effective thresholds.
func (v *Validator) Thresholds() Thresholds {
	return v.th
}

// Validate decides whether clip is usable. Checks run in order: decode,
// duration, silence, loudness.
func (v *Validator) Validate(clip audio.Clip) Outcome {
	out, _ := v.Analyze(clip)
	return out
}

// Analyze is Validate plus the measurements behind the decision.
func (v *Validator) Analyze(clip audio.Clip) (Outcome, Analysis) {
	samples, err := clip.Samples()
	if err != nil {
		return Reject(ReasonUndecodable), Analysis{}
	}

	a := Analysis{Seconds: clip.Seconds()}
	if a.Seconds < v.th.MinDuration.Seconds() {
		return Reject(ReasonTooShort), a
	}

	a.RMSDB = audio.DBFS(audio.RMS(samples))
	a.VoicedRatio = v.voicedRatio(samples, clip.SampleRate)

	if a.RMSDB < v.th.SilenceDB || a.VoicedRatio < v.th.MinVoicedRatio {
		return Reject(ReasonSilence), a
	}

	if a.RMSDB < v.th.MinLoudnessDB {
		return Reject(ReasonTooQuiet), a
	}

	return Accept(), a
}

// voicedRatio is the share of fixed-length frames whose RMS exceeds the
// frame energy threshold. A trailing partial frame is ignored unless it is
// the only frame.
func (v *Validator) voicedRatio(samples []int16, sampleRate int) float64 {
	frameLen := int(v.th.FrameLength.Seconds() * float64(sampleRate))
	frameLen = max(frameLen, 1)

	frames, voiced := 0, 0
	for start := 0; start+frameLen <= len(samples); start += frameLen {
		frames++
		if audio.RMS(samples[start:start+frameLen]) > v.th.FrameEnergyThreshold {
			voiced++
		}
	}

	if frames == 0 {
		frames = 1
		if audio.RMS(samples) > v.th.FrameEnergyThreshold {
			voiced = 1
		}
	}

	return float64(voiced) / float64(frames)
}
