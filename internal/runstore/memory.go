package runstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps run history for the lifetime of the process
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	epochs      map[string][]EpochRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.epochs = make(map[string][]EpochRecord)
	return nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) RecordEpoch(_ context.Context, rec EpochRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if _, ok := s.runs[rec.RunID]; !ok {
		return fmt.Errorf("unknown run %s", rec.RunID)
	}
	s.epochs[rec.RunID] = append(s.epochs[rec.RunID], rec)
	return nil
}

func (s *MemoryStore) FinishRun(_ context.Context, id, status string, finishedAt time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	run.Status = status
	run.FinishedAt = finishedAt
	run.Error = errMsg
	s.runs[id] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

func (s *MemoryStore) ListEpochs(_ context.Context, runID string) ([]EpochRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, false, nil
	}
	recs := make([]EpochRecord, len(s.epochs[runID]))
	copy(recs, s.epochs[runID])
	return recs, true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
