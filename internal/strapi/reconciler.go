package strapi

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

// Reconciler decides, per screening, whether to create or update the
// store record under its natural key. Lookups fail open: when the store
// cannot answer, the reconciler attempts a create and lets the unique
// constraint arbitrate, so a flaky read never loses a new screening.
type Reconciler struct {
	store  interfaces.ContentStore
	locale string
	logger arbor.ILogger
}

// NewReconciler creates a reconciler over the given store
func NewReconciler(store interfaces.ContentStore, locale string, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		store:  store,
		locale: locale,
		logger: logger,
	}
}

// Upsert reconciles one screening. Outcomes:
//   - created: no record matched the natural key, create succeeded
//   - updated: a record matched, update succeeded
//   - skipped-conflict: the natural key is claimed by a record this run
//     cannot write; create hit the unique constraint, or the looked-up
//     record vanished before the update landed
//
// Any other store failure is returned as an error.
func (r *Reconciler) Upsert(ctx context.Context, screening models.Screening, venue models.Venue) (interfaces.UpsertResult, error) {
	existing, err := r.store.FindScreening(ctx, screening.IdentitySlug, screening.Start, screening.VenueID)
	if err != nil {
		r.logger.Warn().
			Str("slug", screening.IdentitySlug).
			Err(err).
			Msg("Lookup failed, attempting create")
		existing = nil
	}

	fields := r.payload(screening, venue)

	if existing == nil {
		id, err := r.store.CreateScreening(ctx, fields)
		if err != nil {
			if errors.Is(err, interfaces.ErrUniqueConflict) {
				r.logger.Warn().
					Str("slug", screening.IdentitySlug).
					Msg("Natural key already claimed, skipping")
				return interfaces.UpsertResult{Outcome: interfaces.OutcomeSkippedConflict}, nil
			}
			return interfaces.UpsertResult{}, err
		}
		return interfaces.UpsertResult{ID: id, Outcome: interfaces.OutcomeCreated}, nil
	}

	id, err := r.store.UpdateScreening(ctx, existing.ID, fields)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			r.logger.Warn().
				Str("slug", screening.IdentitySlug).
				Int("id", existing.ID).
				Msg("Record vanished before update, skipping")
			return interfaces.UpsertResult{Outcome: interfaces.OutcomeSkippedConflict}, nil
		}
		return interfaces.UpsertResult{}, err
	}
	return interfaces.UpsertResult{ID: id, Outcome: interfaces.OutcomeUpdated}, nil
}

// payload builds the store write body. dateEnd is never written; end
// instants are derived data and stale values caused phantom multi-day
// events in the past.
func (r *Reconciler) payload(screening models.Screening, venue models.Venue) map[string]interface{} {
	fields := map[string]interface{}{
		"title":        screening.Title,
		"abbTitle":     screening.AbbTitle,
		"slug":         screening.IdentitySlug,
		"dateStart":    isoInstant(screening.Start),
		"site":         screening.DetailPageURL,
		"tel":          "",
		"place":        venue.ID,
		"description":  ComposeDescription(screening),
		"discount":     venue.Discount,
		"discountRule": venue.DiscountRule,
	}
	if len(venue.Categories) > 0 {
		fields["categories"] = venue.Categories
	}
	if len(venue.Cities) > 0 {
		fields["forCities"] = venue.Cities
	}
	if r.locale != "" {
		fields["locale"] = r.locale
	}
	return fields
}

// ComposeDescription renders the stored description: a schedule block
// listing every folded showtime when there is more than one, followed
// by the enrichment description when present
func ComposeDescription(screening models.Screening) string {
	var parts []string

	if len(screening.AllShowtimes) > 1 {
		lines := make([]string, 0, len(screening.AllShowtimes)+1)
		lines = append(lines, "**Schedule:**")
		for _, showtime := range screening.AllShowtimes {
			lines = append(lines, "• "+showtime)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	if screening.Description != "" {
		parts = append(parts, screening.Description)
	}

	return strings.Join(parts, "\n\n")
}
