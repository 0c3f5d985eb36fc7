package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/marquee/internal/models"
)

// RunStorage persists pipeline run history and per-screening outcomes
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.SyncRun, error)

	SaveResult(ctx context.Context, result *models.SyncResult) error
	ResultsByRun(ctx context.Context, runID string) ([]*models.SyncResult, error)

	// PruneBefore deletes runs (and their results) that started before the
	// cutoff, returning the number of runs removed
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
