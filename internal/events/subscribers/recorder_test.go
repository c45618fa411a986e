package subscribers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/PathGAN/internal/events"
	"github.com/mitchelldurbincs/PathGAN/internal/events/subscribers"
	"github.com/mitchelldurbincs/PathGAN/internal/runstore"
)

func newRecordingBus(t *testing.T) (*events.EventBus, runstore.Store) {
	t.Helper()
	store := runstore.NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))

	bus := events.NewEventBus(zerolog.Nop())
	bus.Subscribe(subscribers.NewRunRecorder("recorder", store, zerolog.New(zerolog.NewTestWriter(t))))
	return bus, store
}

func TestRunRecorderFinishedRun(t *testing.T) {
	ctx := context.Background()
	bus, store := newRecordingBus(t)

	bus.Publish(events.NewRunStartedEvent("run-1", 2, 32, 70, 42, 16))
	bus.Publish(events.NewPhaseTransitionEvent("run-1", "Idle", "EpochLoop", "start"))
	bus.Publish(events.NewEpochCompletedEvent("run-1", 1, 2, 3, 1.4, 0.6, time.Millisecond))
	bus.Publish(events.NewEpochCompletedEvent("run-1", 2, 2, 3, 1.3, 0.7, time.Millisecond))
	bus.Publish(events.NewRunFinishedEvent("run-1", 2, time.Second))

	run, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, runstore.StatusFinished, run.Status)
	assert.Equal(t, 70, run.DatasetSize)
	assert.False(t, run.FinishedAt.IsZero())

	epochs, ok, err := store.ListEpochs(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, epochs, 2)
	assert.Equal(t, 1.3, epochs[1].DiscriminatorLoss)
}

func TestRunRecorderFailedRun(t *testing.T) {
	bus, store := newRecordingBus(t)

	bus.Publish(events.NewRunStartedEvent("run-2", 5, 32, 70, 42, 16))
	bus.Publish(events.NewRunFailedEvent("run-2", 1, 2, errors.New("numeric divergence")))

	run, ok, err := store.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, runstore.StatusFailed, run.Status)
	assert.Equal(t, "numeric divergence", run.Error)
}

func TestRunRecorderIgnoresUnknownRuns(t *testing.T) {
	bus, store := newRecordingBus(t)

	assert.NotPanics(t, func() {
		bus.Publish(events.NewEpochCompletedEvent("ghost", 1, 1, 1, 0, 0, 0))
	})
	_, ok, err := store.GetRun(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunRecorderInterest(t *testing.T) {
	rec := subscribers.NewRunRecorder("r", runstore.NullStore{}, zerolog.Nop())
	assert.Equal(t, "r", rec.ID())
	assert.True(t, rec.InterestedIn(events.TypeRunStarted))
	assert.True(t, rec.InterestedIn(events.TypeRunFailed))
	assert.False(t, rec.InterestedIn(events.TypePhaseTransition))
	assert.False(t, rec.InterestedIn(events.TypeModelSaved))
}
