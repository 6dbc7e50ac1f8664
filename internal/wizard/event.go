package wizard

// EventKind classifies wizard events.
type EventKind int

const (
	EventStepEntered EventKind = iota
	EventStepCompleted
	EventFinished
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventStepEntered:
		return "step_entered"
	case EventStepCompleted:
		return "step_completed"
	case EventFinished:
		return "finished"
	case EventCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Event is published on every wizard transition.
type Event struct {
	Kind    EventKind
	Step    Step
	Percent int
	UserID  string
}
