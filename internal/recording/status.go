// Package recording models a single recording attempt and the states it
// moves through between the microphone and the collaborator.
package recording

// Status is the state of an attempt. It is a closed set: Idle, Recording,
// Processing, Accepted and Rejected.
type Status interface {
	String() string
	isStatus()
}

// Idle means nothing has been captured, or a rejected capture was discarded.
type Idle struct{}

// Recording means the microphone is capturing.
type Recording struct{}

// Processing means the clip is being validated or uploaded.
type Processing struct{}

// Accepted means the clip passed every check.
type Accepted struct{}

// Rejected means a check failed. Reason is shown to the donor verbatim.
type Rejected struct {
	Reason string
}

func (Idle) String() string       { return "idle" }
func (Recording) String() string  { return "recording" }
func (Processing) String() string { return "processing" }
func (Accepted) String() string   { return "accepted" }
func (r Rejected) String() string { return "rejected: " + r.Reason }

func (Idle) isStatus()       {}
func (Recording) isStatus()  {}
func (Processing) isStatus() {}
func (Accepted) isStatus()   {}
func (Rejected) isStatus()   {}

// IsIdle reports whether s is Idle.
func IsIdle(s Status) bool {
	_, ok := s.(Idle)
	return ok
}

// IsAccepted reports whether s is Accepted.
func IsAccepted(s Status) bool {
	_, ok := s.(Accepted)
	return ok
}

// IsRejected reports whether s is Rejected.
func IsRejected(s Status) bool {
	_, ok := s.(Rejected)
	return ok
}
