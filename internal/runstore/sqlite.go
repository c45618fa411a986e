package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run history in a single SQLite file
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, status, epochs, batch_size, dataset_size, path_length, noise_dim, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, toUnix(run.StartedAt), toUnix(run.FinishedAt), run.Status, run.Epochs, run.BatchSize,
		run.DatasetSize, run.PathLength, run.NoiseDim, run.Error)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordEpoch(ctx context.Context, rec EpochRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO epochs (run_id, epoch, batches, d_loss, g_loss, duration_ns, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch) DO UPDATE SET
			batches = excluded.batches,
			d_loss = excluded.d_loss,
			g_loss = excluded.g_loss,
			duration_ns = excluded.duration_ns,
			recorded_at = excluded.recorded_at
	`, rec.RunID, rec.Epoch, rec.Batches, rec.DiscriminatorLoss, rec.GeneratorLoss,
		int64(rec.Duration), toUnix(rec.RecordedAt))
	if err != nil {
		return fmt.Errorf("insert epoch %d of run %s: %w", rec.Epoch, rec.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string, finishedAt time.Time, errMsg string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE id = ?
	`, status, toUnix(finishedAt), errMsg, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown run %s", id)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, epochs, batch_size, dataset_size, path_length, noise_dim, error
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, epochs, batch_size, dataset_size, path_length, noise_dim, error
		FROM runs ORDER BY started_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ListEpochs(ctx context.Context, runID string) ([]EpochRecord, bool, error) {
	if _, ok, err := s.GetRun(ctx, runID); err != nil || !ok {
		return nil, false, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT epoch, batches, d_loss, g_loss, duration_ns, recorded_at
		FROM epochs WHERE run_id = ? ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	recs := []EpochRecord{}
	for rows.Next() {
		rec := EpochRecord{RunID: runID}
		var durationNs, recordedAt int64
		if err := rows.Scan(&rec.Epoch, &rec.Batches, &rec.DiscriminatorLoss, &rec.GeneratorLoss, &durationNs, &recordedAt); err != nil {
			return nil, false, err
		}
		rec.Duration = time.Duration(durationNs)
		rec.RecordedAt = fromUnix(recordedAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return recs, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt, finishedAt int64
	err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.Epochs, &run.BatchSize,
		&run.DatasetSize, &run.PathLength, &run.NoiseDim, &run.Error)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = fromUnix(startedAt)
	run.FinishedAt = fromUnix(finishedAt)
	return run, nil
}

// Times are stored as unix nanoseconds; 0 means unset.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			epochs INTEGER NOT NULL,
			batch_size INTEGER NOT NULL,
			dataset_size INTEGER NOT NULL,
			path_length INTEGER NOT NULL,
			noise_dim INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS epochs (
			run_id TEXT NOT NULL REFERENCES runs(id),
			epoch INTEGER NOT NULL,
			batches INTEGER NOT NULL,
			d_loss REAL NOT NULL,
			g_loss REAL NOT NULL,
			duration_ns INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, epoch)
		);
	`)
	return err
}
