package wizard

import (
	"fmt"

	"github.com/alkime/voicebank/internal/api"
)

// Step is one wizard screen, numbered from 1.
type Step int

const (
	StepProfile Step = iota + 1
	StepMicCheck
	StepKeyword
	StepSentence
	StepCrossCheck
)

// Steps lists every step in order.
var Steps = []Step{StepProfile, StepMicCheck, StepKeyword, StepSentence, StepCrossCheck}

func (s Step) String() string {
	switch s {
	case StepProfile:
		return "Profile"
	case StepMicCheck:
		return "Mic check"
	case StepKeyword:
		return "Keywords"
	case StepSentence:
		return "Sentences"
	case StepCrossCheck:
		return "Cross-check"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// APIName is the step name mirrored to the remote session.
func (s Step) APIName() string {
	switch s {
	case StepProfile:
		return api.StepProfile
	case StepMicCheck:
		return api.StepMicCheck
	case StepKeyword:
		return api.StepKeyword
	case StepSentence:
		return api.StepSentence
	case StepCrossCheck:
		return api.StepCrossCheck
	}
	return ""
}

// StepFromAPIName is the inverse of APIName.
func StepFromAPIName(name string) (Step, error) {
	for _, s := range Steps {
		if s.APIName() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown session step %q", name)
}
