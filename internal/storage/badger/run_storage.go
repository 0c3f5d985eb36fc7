package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.SyncRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.SyncRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) SaveResult(ctx context.Context, result *models.SyncResult) error {
	if result.RunID == "" {
		return fmt.Errorf("result run ID is required")
	}
	if err := s.db.Store().Insert(badgerhold.NextSequence(), result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *RunStorage) ResultsByRun(ctx context.Context, runID string) ([]*models.SyncResult, error) {
	var results []models.SyncResult
	query := badgerhold.Where("RunID").Eq(runID).Index("RunID").SortBy("At")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	out := make([]*models.SyncResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

// PruneBefore deletes runs that started before the cutoff, along with
// their per-screening results
func (s *RunStorage) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var expired []models.SyncRun
	if err := s.db.Store().Find(&expired, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find expired runs: %w", err)
	}

	pruned := 0
	for i := range expired {
		run := &expired[i]
		if err := s.db.Store().DeleteMatching(&models.SyncResult{}, badgerhold.Where("RunID").Eq(run.ID).Index("RunID")); err != nil {
			s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to prune run results")
		}
		if err := s.db.Store().Delete(run.ID, &models.SyncRun{}); err != nil {
			s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to prune run")
			continue
		}
		pruned++
	}
	return pruned, nil
}
