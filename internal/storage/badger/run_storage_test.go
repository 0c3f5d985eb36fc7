package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

func newTestStorage(t *testing.T) interfaces.RunStorage {
	t.Helper()

	dir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewRunStorage(db, arbor.NewLogger())
}

func TestRunRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	run := models.NewSyncRun("almaz")
	run.PagesProcessed = 1
	run.Created = 3
	require.NoError(t, storage.SaveRun(ctx, run))

	// Status changes persist via upsert
	run.Status = models.RunStatusCompleted
	run.EndedAt = time.Now()
	require.NoError(t, storage.SaveRun(ctx, run))

	loaded, err := storage.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "almaz", loaded.Source)
	assert.Equal(t, models.RunStatusCompleted, loaded.Status)
	assert.Equal(t, 3, loaded.Created)
}

func TestGetRunNotFound(t *testing.T) {
	storage := newTestStorage(t)
	_, err := storage.GetRun(context.Background(), "run_missing")
	assert.Error(t, err)
}

func TestSaveRunRequiresID(t *testing.T) {
	storage := newTestStorage(t)
	err := storage.SaveRun(context.Background(), &models.SyncRun{})
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := models.NewSyncRun("almaz")
		run.StartedAt = time.Now().Add(time.Duration(i) * time.Hour)
		require.NoError(t, storage.SaveRun(ctx, run))
	}

	runs, err := storage.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestResultsByRun(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	run := models.NewSyncRun("kinoteatr")
	require.NoError(t, storage.SaveRun(ctx, run))

	other := models.NewSyncRun("kinoteatr")
	require.NoError(t, storage.SaveRun(ctx, other))

	for i, slug := range []string{"a", "b"} {
		require.NoError(t, storage.SaveResult(ctx, &models.SyncResult{
			RunID:   run.ID,
			Slug:    slug,
			Outcome: "created",
			At:      time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, storage.SaveResult(ctx, &models.SyncResult{
		RunID:   other.ID,
		Slug:    "c",
		Outcome: "updated",
		At:      time.Now(),
	}))

	results, err := storage.ResultsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Slug)
	assert.Equal(t, "b", results[1].Slug)
}

func TestPruneBefore(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	old := models.NewSyncRun("almaz")
	old.StartedAt = time.Now().AddDate(0, 0, -60)
	require.NoError(t, storage.SaveRun(ctx, old))
	require.NoError(t, storage.SaveResult(ctx, &models.SyncResult{RunID: old.ID, Slug: "x", At: old.StartedAt}))

	fresh := models.NewSyncRun("almaz")
	require.NoError(t, storage.SaveRun(ctx, fresh))

	pruned, err := storage.PruneBefore(ctx, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = storage.GetRun(ctx, old.ID)
	assert.Error(t, err)

	_, err = storage.GetRun(ctx, fresh.ID)
	assert.NoError(t, err)

	results, err := storage.ResultsByRun(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}
