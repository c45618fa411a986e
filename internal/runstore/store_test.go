package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db")),
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			run := Run{
				ID:          "run-a",
				StartedAt:   started,
				Epochs:      3,
				BatchSize:   32,
				DatasetSize: 70,
				PathLength:  42,
				NoiseDim:    16,
			}
			require.NoError(t, store.CreateRun(ctx, run))
			assert.Error(t, store.CreateRun(ctx, run), "duplicate run IDs are rejected")

			got, ok, err := store.GetRun(ctx, "run-a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StatusRunning, got.Status)
			assert.True(t, got.StartedAt.Equal(started))
			assert.True(t, got.FinishedAt.IsZero())
			assert.Equal(t, 42, got.PathLength)

			for epoch := 1; epoch <= 3; epoch++ {
				require.NoError(t, store.RecordEpoch(ctx, EpochRecord{
					RunID:             "run-a",
					Epoch:             epoch,
					Batches:           3,
					DiscriminatorLoss: 1.5 / float64(epoch),
					GeneratorLoss:     0.5 * float64(epoch),
					Duration:          time.Duration(epoch) * time.Millisecond,
					RecordedAt:        started.Add(time.Duration(epoch) * time.Second),
				}))
			}

			epochs, ok, err := store.ListEpochs(ctx, "run-a")
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, epochs, 3)
			assert.Equal(t, 2, epochs[1].Epoch)
			assert.InDelta(t, 0.75, epochs[1].DiscriminatorLoss, 1e-12)
			assert.InDelta(t, 1.0, epochs[1].GeneratorLoss, 1e-12)
			assert.Equal(t, 2*time.Millisecond, epochs[1].Duration)

			finished := started.Add(time.Minute)
			require.NoError(t, store.FinishRun(ctx, "run-a", StatusFailed, finished, "numeric divergence"))
			got, _, err = store.GetRun(ctx, "run-a")
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "numeric divergence", got.Error)
			assert.True(t, got.FinishedAt.Equal(finished))
		})
	}
}

func TestStoreUnknownRun(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			_, ok, err := store.GetRun(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = store.ListEpochs(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.Error(t, store.RecordEpoch(ctx, EpochRecord{RunID: "missing", Epoch: 1}))
			assert.Error(t, store.FinishRun(ctx, "missing", StatusFinished, time.Now(), ""))
		})
	}
}

func TestStoreListRunsOrdered(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, store.CreateRun(ctx, Run{ID: "late", StartedAt: base.Add(time.Hour)}))
			require.NoError(t, store.CreateRun(ctx, Run{ID: "early", StartedAt: base}))

			runs, err := store.ListRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "early", runs[0].ID)
			assert.Equal(t, "late", runs[1].ID)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.CreateRun(context.Background(), Run{ID: "x"}))
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.CreateRun(ctx, Run{ID: "kept", StartedAt: time.Now(), Epochs: 1}))
	require.NoError(t, first.RecordEpoch(ctx, EpochRecord{RunID: "kept", Epoch: 1, RecordedAt: time.Now()}))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	t.Cleanup(func() { _ = second.Close() })

	epochs, ok, err := second.ListEpochs(ctx, "kept")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, epochs, 1)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	assert.Error(t, NewSQLiteStore("").Init(context.Background()))
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		path    string
		want    any
		wantErr bool
	}{
		{kind: "", want: NullStore{}},
		{kind: "none", want: NullStore{}},
		{kind: "memory", want: &MemoryStore{}},
		{kind: "sqlite", path: "runs.db", want: &SQLiteStore{}},
		{kind: "sqlite", wantErr: true},
		{kind: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.path, func(t *testing.T) {
			store, err := NewStore(tt.kind, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestNullStoreDiscards(t *testing.T) {
	ctx := context.Background()
	var store Store = NullStore{}
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.CreateRun(ctx, Run{ID: "x"}))
	_, ok, err := store.GetRun(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
