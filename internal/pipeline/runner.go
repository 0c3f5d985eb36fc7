package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
	"github.com/ternarybob/marquee/internal/sources"
)

// Runner drives the full ingestion cycle for every configured source:
// fetch, extract, group, enrich, reconcile, link covers. Each source is
// processed independently; one failing source never blocks the others.
type Runner struct {
	config     *common.Config
	fetcher    *Fetcher
	covers     *CoverStore
	store      interfaces.ContentStore
	reconciler interfaces.Reconciler
	runs       interfaces.RunStorage
	logger     arbor.ILogger

	// now is swapped in tests to pin the parsing window
	now func() time.Time
}

// NewRunner wires the pipeline stages together
func NewRunner(config *common.Config, fetcher *Fetcher, covers *CoverStore, store interfaces.ContentStore, reconciler interfaces.Reconciler, runs interfaces.RunStorage, logger arbor.ILogger) *Runner {
	return &Runner{
		config:     config,
		fetcher:    fetcher,
		covers:     covers,
		store:      store,
		reconciler: reconciler,
		runs:       runs,
		logger:     logger,
		now:        time.Now,
	}
}

// RunAll processes every configured source, then prunes expired run
// history. Returns an error when at least one source run failed.
func (r *Runner) RunAll(ctx context.Context) error {
	var failed int

	for _, src := range r.config.Sources {
		run, err := r.RunSource(ctx, src)
		if err != nil {
			failed++
			r.logger.Error().
				Str("source", src.Name).
				Err(err).
				Msg("Source run failed")
			continue
		}

		r.logger.Info().
			Str("source", src.Name).
			Str("run_id", run.ID).
			Int("screenings", run.Screenings).
			Int("created", run.Created).
			Int("updated", run.Updated).
			Int("skipped", run.Skipped).
			Int("failed", run.Failed).
			Int("covers_linked", run.CoversLinked).
			Msg("Source run completed")
	}

	if r.config.Runs.RetentionDays > 0 {
		cutoff := r.now().AddDate(0, 0, -r.config.Runs.RetentionDays)
		if pruned, err := r.runs.PruneBefore(ctx, cutoff); err != nil {
			r.logger.Warn().Err(err).Msg("Run history pruning failed")
		} else if pruned > 0 {
			r.logger.Info().Int("pruned", pruned).Msg("Pruned expired runs")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d source runs failed", failed, len(r.config.Sources))
	}
	return nil
}

// RunSource executes one full pipeline run for a single source. The
// source must answer the preflight check; after that, page fetch and
// per-screening failures are recorded and skipped, never fatal.
func (r *Runner) RunSource(ctx context.Context, src common.SourceConfig) (*models.SyncRun, error) {
	extractor, err := sources.ForStrategy(src.Strategy)
	if err != nil {
		return nil, err
	}

	venue := venueFromSource(src)
	run := models.NewSyncRun(src.Name)
	if err := r.runs.SaveRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist run record")
	}

	r.logger.Info().
		Str("source", src.Name).
		Str("run_id", run.ID).
		Str("url", src.URL).
		Msg("Starting source run")

	if err := r.fetcher.Preflight(ctx, src.URL); err != nil {
		return nil, r.failRun(ctx, run, err)
	}

	windowStart := WindowStart(r.now(), venue)
	pages, err := r.pagePlan(src, windowStart)
	if err != nil {
		return nil, r.failRun(ctx, run, err)
	}

	// Enrichment results are shared across every page of this run
	cache := NewCache()
	resolver := NewResolver(r.fetcher, r.covers, cache, r.logger)

	for _, page := range pages {
		doc, err := r.fetcher.Document(ctx, page.url, src.URL)
		if err != nil {
			r.logger.Error().
				Str("url", page.url).
				Err(err).
				Msg("Schedule page fetch failed")
			continue
		}
		run.PagesProcessed++

		raws := extractor.Extract(doc, interfaces.PageContext{
			URL:      page.url,
			PageDate: page.date,
			Zone:     venue.Location(),
		})
		run.RawShowtimes += len(raws)

		screenings := Group(raws, venue, windowStart, src.DayWindow)
		run.Screenings += len(screenings)

		r.logger.Info().
			Str("url", page.url).
			Int("showtimes", len(raws)).
			Int("screenings", len(screenings)).
			Msg("Extracted schedule page")

		resolver.Resolve(ctx, screenings, extractor, page.url)

		for _, screening := range screenings {
			r.reconcile(ctx, run, screening, venue, cache)
		}
	}

	run.Status = models.RunStatusCompleted
	run.EndedAt = r.now()
	if err := r.runs.SaveRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist run record")
	}

	return run, nil
}

// reconcile upserts one screening and links its cover, recording the
// outcome in run history
func (r *Runner) reconcile(ctx context.Context, run *models.SyncRun, screening models.Screening, venue models.Venue, cache *Cache) {
	result := &models.SyncResult{
		RunID:   run.ID,
		Slug:    screening.IdentitySlug,
		Title:   screening.Title,
		Start:   screening.Start,
		VenueID: screening.VenueID,
		At:      r.now(),
	}

	upsert, err := r.reconciler.Upsert(ctx, screening, venue)
	if err != nil {
		run.Failed++
		result.Outcome = "failed"
		result.Error = err.Error()
		r.logger.Error().
			Str("slug", screening.IdentitySlug).
			Err(err).
			Msg("Reconciliation failed")
		r.saveResult(ctx, result)
		return
	}

	result.Outcome = string(upsert.Outcome)
	result.RecordID = upsert.ID

	switch upsert.Outcome {
	case interfaces.OutcomeCreated:
		run.Created++
	case interfaces.OutcomeUpdated:
		run.Updated++
	case interfaces.OutcomeSkippedConflict:
		run.Skipped++
	}

	if upsert.ID > 0 && screening.CoverImageURL != "" {
		if path, ok := cache.CoverPath(screening.CoverImageURL); ok {
			if _, err := r.store.UploadCover(ctx, path, upsert.ID, screening.AbbTitle, screening.Title); err != nil {
				r.logger.Warn().
					Str("slug", screening.IdentitySlug).
					Err(err).
					Msg("Cover upload failed")
			} else {
				run.CoversLinked++
				result.CoverOK = true
			}
		}
	}

	r.saveResult(ctx, result)
}

func (r *Runner) saveResult(ctx context.Context, result *models.SyncResult) {
	if err := r.runs.SaveResult(ctx, result); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist screening result")
	}
}

// failRun marks the run failed and returns the original error
func (r *Runner) failRun(ctx context.Context, run *models.SyncRun, cause error) error {
	run.Status = models.RunStatusFailed
	run.EndedAt = r.now()
	run.Error = cause.Error()
	if err := r.runs.SaveRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist run record")
	}
	return cause
}

type schedulePage struct {
	url  string
	date time.Time
}

// pagePlan expands a source into the concrete pages to fetch. A
// date-parameterized source gets one page per day of the window, each
// carrying its date in the query string; other sources expose the whole
// window on a single page.
func (r *Runner) pagePlan(src common.SourceConfig, windowStart time.Time) ([]schedulePage, error) {
	if !src.DateParameterized {
		return []schedulePage{{url: src.URL}}, nil
	}

	parsed, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", src.URL, err)
	}

	days := src.DayWindow
	if days <= 0 {
		return nil, errors.New("date-parameterized source requires a day window")
	}

	pages := make([]schedulePage, 0, days)
	for i := 0; i < days; i++ {
		day := windowStart.AddDate(0, 0, i)
		q := parsed.Query()
		q.Set("date", day.Format("2006-01-02"))
		parsed.RawQuery = q.Encode()
		pages = append(pages, schedulePage{url: parsed.String(), date: day})
	}
	return pages, nil
}

func venueFromSource(src common.SourceConfig) models.Venue {
	return models.Venue{
		ID:                  src.VenueID,
		Name:                src.VenueName,
		UTCOffsetMinutes:    src.UTCOffsetMinutes,
		DisplayShiftMinutes: src.DisplayShiftMinutes,
		Discount:            src.Discount,
		DiscountRule:        src.DiscountRule,
		Categories:          src.Categories,
		Cities:              src.Cities,
	}
}
