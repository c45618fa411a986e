package gan

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/PathGAN/internal/events"
)

// Transition represents a phase change in the history
type Transition struct {
	From      TrainingPhase
	To        TrainingPhase
	Timestamp time.Time
	Reason    string
}

// PhaseMachine tracks trainer phases and rejects illegal transitions. The
// trainer is single threaded so the machine does no locking of its own.
type PhaseMachine struct {
	current        TrainingPhase
	history        []Transition
	maxHistorySize int
	runID          string
	publisher      events.Publisher
	logger         zerolog.Logger
}

// NewPhaseMachine creates a machine in PhaseIdle. publisher may be nil.
func NewPhaseMachine(runID string, publisher events.Publisher, logger zerolog.Logger) *PhaseMachine {
	return &PhaseMachine{
		current:        PhaseIdle,
		history:        make([]Transition, 0, 64),
		maxHistorySize: 1000,
		runID:          runID,
		publisher:      publisher,
		logger:         logger,
	}
}

// Current returns the current phase
func (m *PhaseMachine) Current() TrainingPhase {
	return m.current
}

// TransitionTo attempts to move to target
func (m *PhaseMachine) TransitionTo(target TrainingPhase, reason string) error {
	if !m.current.CanTransitionTo(target) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, target)
	}

	previous := m.current
	m.addToHistory(Transition{
		From:      previous,
		To:        target,
		Timestamp: time.Now(),
		Reason:    reason,
	})
	m.current = target

	// Step-level transitions happen every batch; only loop boundaries are
	// published to keep the bus quiet.
	if m.publisher != nil && !previous.UpdatesParameters() && !target.UpdatesParameters() {
		m.publisher.Publish(events.NewPhaseTransitionEvent(m.runID, previous.String(), target.String(), reason))
	}

	m.logger.Trace().
		Str("from_phase", previous.String()).
		Str("to_phase", target.String()).
		Str("reason", reason).
		Msg("Phase transition")

	return nil
}

// addToHistory adds a transition to the history, maintaining max size
func (m *PhaseMachine) addToHistory(t Transition) {
	m.history = append(m.history, t)
	if len(m.history) > m.maxHistorySize {
		m.history = m.history[len(m.history)-m.maxHistorySize:]
	}
}

// History returns a copy of the transition history
func (m *PhaseMachine) History() []Transition {
	history := make([]Transition, len(m.history))
	copy(history, m.history)
	return history
}
