// Package region tracks the sub-span of a clip that contains the keyword.
package region

import "math"

const (
	// MinGap is how far start is pushed away when end is dragged onto it.
	MinGap = 0.5
	// DefaultSpan is the initial selection length in seconds.
	DefaultSpan = 2.0
)

// Edge identifies one end of a selection.
type Edge int

const (
	// Start is the left edge.
	Start Edge = iota
	// End is the right edge.
	End
)

// Selector holds a [start, end] selection in seconds within [0, duration].
// For a positive duration start < end always holds. It is not safe for
// concurrent use; controllers guard it.
type Selector struct {
	duration   float64
	start, end float64
}

// New creates a selector over a clip of duration seconds, initially
// selecting [0, min(duration, DefaultSpan)].
func New(duration float64) *Selector {
	duration = math.Max(duration, 0)

	return &Selector{
		duration: duration,
		start:    0,
		end:      math.Min(duration, DefaultSpan),
	}
}

// Duration returns the clip length the selection is bounded by.
func (s *Selector) Duration() float64 {
	return s.duration
}

// Span returns the current selection.
func (s *Selector) Span() (start, end float64) {
	return s.start, s.end
}

// Length returns end - start.
func (s *Selector) Length() float64 {
	return s.end - s.start
}

// SetEnd moves the right edge. Values past the clip are truncated; moving it
// onto or below start drags start to end - MinGap, floored at 0.
func (s *Selector) SetEnd(end float64) {
	if s.duration <= 0 {
		return
	}

	end = math.Min(end, s.duration)
	if end <= 0 {
		end = math.Min(MinGap, s.duration)
	}

	if end <= s.start {
		s.start = math.Max(0, end-MinGap)
	}

	s.end = end
}

// SetStart moves the left edge. Negative values clamp to 0; moving it onto
// or past end pushes end to start + MinGap, capped at the duration, and if
// that is still not enough start is pulled back.
func (s *Selector) SetStart(start float64) {
	if s.duration <= 0 {
		return
	}

	start = math.Max(start, 0)

	if start >= s.end {
		s.end = math.Min(s.duration, start+MinGap)
		if start >= s.end {
			start = math.Max(0, s.end-MinGap)
		}
	}

	s.start = start
}

// Nudge moves one edge by delta seconds.
func (s *Selector) Nudge(edge Edge, delta float64) {
	switch edge {
	case Start:
		s.SetStart(s.start + delta)
	case End:
		s.SetEnd(s.end + delta)
	}
}

// Set replaces the whole selection, applying the same clamping as the edge
// setters. End is applied first so a valid pair always survives.
func (s *Selector) Set(start, end float64) {
	s.SetEnd(end)
	s.SetStart(start)
}
