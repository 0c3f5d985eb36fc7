package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/marquee/internal/models"
)

var (
	// ErrRecordNotFound indicates the target record id no longer exists
	ErrRecordNotFound = errors.New("record not found")

	// ErrUniqueConflict indicates the natural key is already claimed
	ErrUniqueConflict = errors.New("unique constraint violation")
)

// UpsertOutcome classifies the result of reconciling one screening
type UpsertOutcome string

const (
	OutcomeCreated         UpsertOutcome = "created"
	OutcomeUpdated         UpsertOutcome = "updated"
	OutcomeSkippedConflict UpsertOutcome = "skipped-conflict"
)

// UpsertResult reports the record id and outcome of one reconciliation.
// ID is 0 when the write was skipped.
type UpsertResult struct {
	ID      int
	Outcome UpsertOutcome
}

// StoreRecord is the subset of the external store's representation the
// pipeline reads for reconciliation. The store owns everything else.
type StoreRecord struct {
	ID         int
	DocumentID string
	Slug       string
	Start      time.Time
	VenueID    int
}

// ContentStore is the external content store, reachable only through
// find/create/update/upload operations
type ContentStore interface {
	// FindScreening looks up zero-or-one record by the natural key
	// (slug, start, venue). Returns (nil, nil) when no record matches.
	FindScreening(ctx context.Context, slug string, start time.Time, venueID int) (*StoreRecord, error)

	// CreateScreening creates a record from the field map and returns its
	// id. Returns ErrUniqueConflict (wrapped) when the natural key is
	// already claimed.
	CreateScreening(ctx context.Context, fields map[string]interface{}) (int, error)

	// UpdateScreening updates the record with the given id. Returns
	// ErrRecordNotFound (wrapped) when the id no longer exists.
	UpdateScreening(ctx context.Context, id int, fields map[string]interface{}) (int, error)

	// UploadCover uploads a local image file and links it to the record's
	// cover field. Returns the created file's id.
	UploadCover(ctx context.Context, localPath string, recordID int, caption, alt string) (int, error)
}

// Reconciler performs the idempotent find-then-write cycle for one
// screening against the content store.
type Reconciler interface {
	Upsert(ctx context.Context, screening models.Screening, venue models.Venue) (UpsertResult, error)
}
