package events

import (
	"time"
)

// Event type constants
const (
	TypeRunStarted      = "run.started"
	TypeRunFinished     = "run.finished"
	TypeRunFailed       = "run.failed"
	TypeEpochCompleted  = "epoch.completed"
	TypePhaseTransition = "phase.transition"
	TypeModelSaved      = "model.saved"
)

// RunStartedEvent is published when a training run begins
type RunStartedEvent struct {
	BaseEvent
	Epochs      int
	BatchSize   int
	DatasetSize int
	PathLength  int
	NoiseDim    int
}

// NewRunStartedEvent creates a new RunStartedEvent
func NewRunStartedEvent(runID string, epochs, batchSize, datasetSize, pathLength, noiseDim int) *RunStartedEvent {
	return &RunStartedEvent{
		BaseEvent:   newBase(TypeRunStarted, runID),
		Epochs:      epochs,
		BatchSize:   batchSize,
		DatasetSize: datasetSize,
		PathLength:  pathLength,
		NoiseDim:    noiseDim,
	}
}

// EpochCompletedEvent carries the losses of the last batch of an epoch
type EpochCompletedEvent struct {
	BaseEvent
	Epoch             int
	TotalEpochs       int
	Batches           int
	DiscriminatorLoss float64
	GeneratorLoss     float64
	Duration          time.Duration
}

// NewEpochCompletedEvent creates a new EpochCompletedEvent
func NewEpochCompletedEvent(runID string, epoch, total, batches int, dLoss, gLoss float64, d time.Duration) *EpochCompletedEvent {
	return &EpochCompletedEvent{
		BaseEvent:         newBase(TypeEpochCompleted, runID),
		Epoch:             epoch,
		TotalEpochs:       total,
		Batches:           batches,
		DiscriminatorLoss: dLoss,
		GeneratorLoss:     gLoss,
		Duration:          d,
	}
}

// RunFinishedEvent is published after the last epoch
type RunFinishedEvent struct {
	BaseEvent
	Epochs   int
	Duration time.Duration
}

// NewRunFinishedEvent creates a new RunFinishedEvent
func NewRunFinishedEvent(runID string, epochs int, d time.Duration) *RunFinishedEvent {
	return &RunFinishedEvent{
		BaseEvent: newBase(TypeRunFinished, runID),
		Epochs:    epochs,
		Duration:  d,
	}
}

// RunFailedEvent is published when a run aborts
type RunFailedEvent struct {
	BaseEvent
	Epoch int
	Batch int
	Err   string
}

// NewRunFailedEvent creates a new RunFailedEvent
func NewRunFailedEvent(runID string, epoch, batch int, err error) *RunFailedEvent {
	return &RunFailedEvent{
		BaseEvent: newBase(TypeRunFailed, runID),
		Epoch:     epoch,
		Batch:     batch,
		Err:       err.Error(),
	}
}

// PhaseTransitionEvent is published when the trainer changes phase
type PhaseTransitionEvent struct {
	BaseEvent
	FromPhase string
	ToPhase   string
	Reason    string
}

// NewPhaseTransitionEvent creates a new PhaseTransitionEvent
func NewPhaseTransitionEvent(runID, from, to, reason string) *PhaseTransitionEvent {
	return &PhaseTransitionEvent{
		BaseEvent: newBase(TypePhaseTransition, runID),
		FromPhase: from,
		ToPhase:   to,
		Reason:    reason,
	}
}

// ModelSavedEvent is published once the generator artifact is written
type ModelSavedEvent struct {
	BaseEvent
	Path       string
	Parameters int
}

// NewModelSavedEvent creates a new ModelSavedEvent
func NewModelSavedEvent(runID, path string, parameters int) *ModelSavedEvent {
	return &ModelSavedEvent{
		BaseEvent:  newBase(TypeModelSaved, runID),
		Path:       path,
		Parameters: parameters,
	}
}
