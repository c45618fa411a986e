package subscribers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/PathGAN/internal/events"
	"github.com/mitchelldurbincs/PathGAN/internal/runstore"
)

// RunRecorder writes run lifecycle events into a run store. Store failures
// are logged and never interrupt training.
type RunRecorder struct {
	id      string
	store   runstore.Store
	logger  zerolog.Logger
	timeout time.Duration
}

// NewRunRecorder creates a recorder backed by store
func NewRunRecorder(id string, store runstore.Store, logger zerolog.Logger) *RunRecorder {
	return &RunRecorder{
		id:      id,
		store:   store,
		logger:  logger.With().Str("subscriber", "run_recorder").Logger(),
		timeout: 5 * time.Second,
	}
}

// ID returns the subscriber's unique identifier
func (r *RunRecorder) ID() string {
	return r.id
}

// InterestedIn selects the run lifecycle events
func (r *RunRecorder) InterestedIn(eventType string) bool {
	switch eventType {
	case events.TypeRunStarted, events.TypeEpochCompleted, events.TypeRunFinished, events.TypeRunFailed:
		return true
	}
	return false
}

// HandleEvent stores the event
func (r *RunRecorder) HandleEvent(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var err error
	switch e := event.(type) {
	case *events.RunStartedEvent:
		err = r.store.CreateRun(ctx, runstore.Run{
			ID:          e.RunID(),
			StartedAt:   e.Timestamp(),
			Status:      runstore.StatusRunning,
			Epochs:      e.Epochs,
			BatchSize:   e.BatchSize,
			DatasetSize: e.DatasetSize,
			PathLength:  e.PathLength,
			NoiseDim:    e.NoiseDim,
		})
	case *events.EpochCompletedEvent:
		err = r.store.RecordEpoch(ctx, runstore.EpochRecord{
			RunID:             e.RunID(),
			Epoch:             e.Epoch,
			Batches:           e.Batches,
			DiscriminatorLoss: e.DiscriminatorLoss,
			GeneratorLoss:     e.GeneratorLoss,
			Duration:          e.Duration,
			RecordedAt:        e.Timestamp(),
		})
	case *events.RunFinishedEvent:
		err = r.store.FinishRun(ctx, e.RunID(), runstore.StatusFinished, e.Timestamp(), "")
	case *events.RunFailedEvent:
		err = r.store.FinishRun(ctx, e.RunID(), runstore.StatusFailed, e.Timestamp(), e.Err)
	default:
		return
	}

	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", event.Type()).
			Str("run_id", event.RunID()).
			Msg("Failed to record run event")
	}
}
