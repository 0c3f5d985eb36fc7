package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus indicates the overall state of one pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun records one execution of the ingestion pipeline over a source
type SyncRun struct {
	ID        string `badgerhold:"key"`
	Source    string
	Status    RunStatus
	StartedAt time.Time
	EndedAt   time.Time

	PagesProcessed int
	RawShowtimes   int
	Screenings     int
	Created        int
	Updated        int
	Skipped        int
	Failed         int
	CoversLinked   int

	Error string // Set when Status is failed
}

// NewSyncRun creates a run record with the "run_" id prefix
func NewSyncRun(source string) *SyncRun {
	return &SyncRun{
		ID:        "run_" + uuid.New().String(),
		Source:    source,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// SyncResult records the outcome of reconciling one screening
type SyncResult struct {
	ID       uint64 `badgerhold:"key"`
	RunID    string `badgerholdIndex:"RunID"`
	Slug     string
	Title    string
	Start    time.Time
	VenueID  int
	Outcome  string // created, updated, skipped-conflict, failed
	RecordID int    // External store id, 0 when the write was skipped
	CoverOK  bool
	Error    string
	At       time.Time
}
