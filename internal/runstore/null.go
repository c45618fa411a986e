package runstore

import (
	"context"
	"time"
)

// NullStore discards everything; used when run history is disabled
type NullStore struct{}

func (NullStore) Init(context.Context) error                     { return nil }
func (NullStore) CreateRun(context.Context, Run) error           { return nil }
func (NullStore) RecordEpoch(context.Context, EpochRecord) error { return nil }
func (NullStore) FinishRun(context.Context, string, string, time.Time, string) error {
	return nil
}
func (NullStore) GetRun(context.Context, string) (Run, bool, error) { return Run{}, false, nil }
func (NullStore) ListRuns(context.Context) ([]Run, error)           { return nil, nil }
func (NullStore) ListEpochs(context.Context, string) ([]EpochRecord, bool, error) {
	return nil, false, nil
}
func (NullStore) Close() error { return nil }
