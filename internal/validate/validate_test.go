package validate_test

import (
	"testing"
	"time"

	"github.com/alkime/voicebank/internal/audio"
	"github.com/alkime/voicebank/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rate = 16000

// level returns n samples at a constant amplitude.
func level(n int, amp int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = amp
	}
	return s
}

func TestValidate_TooShortForAllShortDurations(t *testing.T) {
	t.Parallel()

	v := validate.New(validate.DefaultThresholds())

	for _, ms := range []int{1, 10, 100, 200, 249} {
		n := rate * ms / 1000
		out := v.Validate(audio.NewClip(level(n, 10000), rate))

		assert.False(t, out.Accepted, "%dms", ms)
		assert.Equal(t, validate.ReasonTooShort, out.Reason, "%dms", ms)
	}
}

func TestValidate_DecisionOrder(t *testing.T) {
	t.Parallel()

	// 100ms at -34 dBFS then silence: loud enough frames to pass VAD,
	// overall RMS around -44 dBFS.
	quiet := append(level(rate/10, 655), level(rate*9/10, 0)...)

	tests := []struct {
		name     string
		clip     audio.Clip
		accepted bool
		reason   string
	}{
		{
			name:   "empty clip",
			clip:   audio.Clip{SampleRate: rate},
			reason: validate.ReasonUndecodable,
		},
		{
			name:   "odd byte count",
			clip:   audio.Clip{PCM: []byte{1, 2, 3}, SampleRate: rate},
			reason: validate.ReasonUndecodable,
		},
		{
			name:   "digital silence",
			clip:   audio.NewClip(level(rate, 0), rate),
			reason: validate.ReasonSilence,
		},
		{
			name:   "below silence floor",
			clip:   audio.NewClip(level(rate, 50), rate), // about -56 dBFS
			reason: validate.ReasonSilence,
		},
		{
			name:   "quiet speech",
			clip:   audio.NewClip(quiet, rate),
			reason: validate.ReasonTooQuiet,
		},
		{
			name:     "normal speech level",
			clip:     audio.NewClip(level(rate, 3277), rate), // -20 dBFS
			accepted: true,
		},
	}

	v := validate.New(validate.DefaultThresholds())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := v.Validate(tt.clip)
			assert.Equal(t, tt.accepted, out.Accepted)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestValidate_LowVoicedRatioIsSilence(t *testing.T) {
	t.Parallel()

	// One loud frame in two seconds: overall RMS passes the silence floor but
	// fewer than 5% of frames carry voice.
	samples := append(level(480, 30000), level(2*rate-480, 0)...)

	out, analysis := validate.New(validate.DefaultThresholds()).Analyze(audio.NewClip(samples, rate))

	assert.Greater(t, analysis.RMSDB, -50.0)
	assert.Less(t, analysis.VoicedRatio, 0.05)
	assert.Equal(t, validate.Reject(validate.ReasonSilence), out)
}

func TestValidate_ConfigurableThresholds(t *testing.T) {
	t.Parallel()

	strict := validate.New(validate.Thresholds{MinLoudnessDB: -10, SilenceDB: -30})
	out := strict.Validate(audio.NewClip(level(rate, 3277), rate))
	require.False(t, out.Accepted)
	assert.Equal(t, validate.ReasonTooQuiet, out.Reason)

	lenient := validate.New(validate.Thresholds{MinDuration: 50 * time.Millisecond})
	out = lenient.Validate(audio.NewClip(level(rate/10, 3277), rate))
	assert.True(t, out.Accepted)
}
