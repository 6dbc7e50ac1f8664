package audio

import "math"

// MinDB is the floor reported for digital silence.
const MinDB = -100.0

const fullScale = 32768.0

// RMS returns the root-mean-square amplitude of samples, normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a normalized RMS value to decibels relative to full scale.
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return MinDB
	}

	return max(20*math.Log10(rms), MinDB)
}

// Volume maps the loudness of samples onto 0..100 for meters. A square root
// curve keeps quiet speech visible.
func Volume(samples []int16) int {
	v := math.Sqrt(RMS(samples)) * 100

	return min(int(math.Round(v)), 100)
}
