package recording

import (
	"errors"
	"fmt"

	"github.com/alkime/voicebank/internal/audio"
)

// ErrInvalidTransition is returned when an attempt is asked to move between
// states that are not connected.
var ErrInvalidTransition = errors.New("invalid attempt transition")

// Attempt is one take for a repeat slot or a sentence. The attempt owns its
// clip until it is retried or replaced.
type Attempt struct {
	Index  int
	Status Status
	Clip   audio.Clip

	// PendingUpload is set when the clip passed local checks but the upload
	// failed in transit. The clip is kept so the upload can be retried.
	PendingUpload bool
	// Uploaded is set once the collaborator has stored the clip.
	Uploaded bool
}

// NewAttempt returns an idle attempt for slot index.
func NewAttempt(index int) *Attempt {
	return &Attempt{Index: index, Status: Idle{}}
}

// Begin moves Idle to Recording.
func (a *Attempt) Begin() error {
	return a.transition(Recording{})
}

// Captured stores the clip and moves Recording to Processing.
func (a *Attempt) Captured(clip audio.Clip) error {
	if err := a.transition(Processing{}); err != nil {
		return err
	}
	a.Clip = clip
	return nil
}

// Accept moves Processing to Accepted.
func (a *Attempt) Accept() error {
	if err := a.transition(Accepted{}); err != nil {
		return err
	}
	a.PendingUpload = false
	return nil
}

// Reject moves Processing to Rejected with a donor-facing reason.
func (a *Attempt) Reject(reason string) error {
	return a.transition(Rejected{Reason: reason})
}

// Abort returns a Recording attempt to Idle, e.g. when the microphone is
// unavailable or the capture was superseded.
func (a *Attempt) Abort() error {
	if _, ok := a.Status.(Recording); !ok {
		return fmt.Errorf("%w: abort from %s", ErrInvalidTransition, a.Status)
	}
	a.reset()
	return nil
}

// Retry discards a rejected clip and moves back to Idle.
func (a *Attempt) Retry() error {
	if err := a.transition(Idle{}); err != nil {
		return err
	}
	a.reset()
	return nil
}

// Replace discards any clip and returns the attempt to Idle regardless of
// its state. Used when a donor re-records a sentence.
func (a *Attempt) Replace() {
	a.Status = Idle{}
	a.reset()
}

func (a *Attempt) reset() {
	a.Status = Idle{}
	a.Clip = audio.Clip{}
	a.PendingUpload = false
	a.Uploaded = false
}

func (a *Attempt) transition(to Status) error {
	if !isValidTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

func isValidTransition(from, to Status) bool {
	switch from.(type) {
	case Idle:
		_, ok := to.(Recording)
		return ok
	case Recording:
		_, ok := to.(Processing)
		return ok
	case Processing:
		switch to.(type) {
		case Accepted, Rejected:
			return true
		}
		return false
	case Rejected:
		_, ok := to.(Idle)
		return ok
	case Accepted:
		return false
	}
	return false
}
