package gan

import "fmt"

// TrainingPhase is the current position of a trainer in its run loop
type TrainingPhase int

const (
	// PhaseIdle - Created, nothing run yet
	PhaseIdle TrainingPhase = iota

	// PhaseEpochLoop - Between epochs
	PhaseEpochLoop

	// PhaseBatchLoop - Between batches of the current epoch
	PhaseBatchLoop

	// PhaseDiscriminatorStep - Updating discriminator parameters
	PhaseDiscriminatorStep

	// PhaseGeneratorStep - Updating generator parameters
	PhaseGeneratorStep

	// PhaseDone - All epochs completed
	PhaseDone

	// PhaseFailed - Run aborted
	PhaseFailed
)

// String returns the string representation of a TrainingPhase
func (p TrainingPhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseEpochLoop:
		return "EpochLoop"
	case PhaseBatchLoop:
		return "BatchLoop"
	case PhaseDiscriminatorStep:
		return "DiscriminatorStep"
	case PhaseGeneratorStep:
		return "GeneratorStep"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsTerminal returns true if no further transitions are allowed
func (p TrainingPhase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// UpdatesParameters returns true while an optimizer step is in progress
func (p TrainingPhase) UpdatesParameters() bool {
	return p == PhaseDiscriminatorStep || p == PhaseGeneratorStep
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p TrainingPhase) AllowedTransitions() []TrainingPhase {
	switch p {
	case PhaseIdle:
		return []TrainingPhase{PhaseEpochLoop, PhaseDone, PhaseFailed}
	case PhaseEpochLoop:
		return []TrainingPhase{PhaseBatchLoop, PhaseDone, PhaseFailed}
	case PhaseBatchLoop:
		return []TrainingPhase{PhaseDiscriminatorStep, PhaseEpochLoop, PhaseFailed}
	case PhaseDiscriminatorStep:
		return []TrainingPhase{PhaseGeneratorStep, PhaseFailed}
	case PhaseGeneratorStep:
		return []TrainingPhase{PhaseBatchLoop, PhaseFailed}
	default:
		return []TrainingPhase{}
	}
}

// CanTransitionTo checks if a transition from this phase to the target phase is allowed
func (p TrainingPhase) CanTransitionTo(target TrainingPhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}
