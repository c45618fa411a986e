package runstore

import (
	"context"
	"time"
)

// Run status values
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Run is one trainer invocation
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	Epochs      int
	BatchSize   int
	DatasetSize int
	PathLength  int
	NoiseDim    int
	Error       string
}

// EpochRecord holds the losses reported at the end of one epoch
type EpochRecord struct {
	RunID             string
	Epoch             int
	Batches           int
	DiscriminatorLoss float64
	GeneratorLoss     float64
	Duration          time.Duration
	RecordedAt        time.Time
}

// Store keeps the history of training runs. Getters report false when the
// run is unknown.
type Store interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, run Run) error
	RecordEpoch(ctx context.Context, rec EpochRecord) error
	FinishRun(ctx context.Context, id, status string, finishedAt time.Time, errMsg string) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)
	ListEpochs(ctx context.Context, runID string) ([]EpochRecord, bool, error)
	Close() error
}
