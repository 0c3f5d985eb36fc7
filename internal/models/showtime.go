package models

import (
	"fmt"
	"time"
)

// Venue describes one cinema with its fixed metadata that is injected
// verbatim into every write payload. Local time at a venue is a static
// UTC offset; none of the source venues cross a DST boundary inside the
// parsing window.
type Venue struct {
	ID                  int
	Name                string
	UTCOffsetMinutes    int
	DisplayShiftMinutes int // Applied to showtimes text only, not to stored instants

	Discount     string
	DiscountRule string // Markdown
	Categories   []int
	Cities       []int
}

// Location returns the venue's fixed-offset time zone
func (v Venue) Location() *time.Location {
	name := fmt.Sprintf("UTC%+d:%02d", v.UTCOffsetMinutes/60, abs(v.UTCOffsetMinutes%60))
	return time.FixedZone(name, v.UTCOffsetMinutes*60)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RawShowtime is one detected performance of a title at a single point in
// time, pre-deduplication. Entries without a title or a positive start
// epoch never enter the grouping stage.
type RawShowtime struct {
	TitleBase       string
	AbbTitle        string // Abbreviated title when the page provides one
	AgeRating       string // e.g. "16+", empty when the page shows none
	Start           time.Time
	DurationMinutes int
	CoverImageURL   string
	DetailPageURL   string // Normalized: origin + path, trailing slash
}

// Valid reports whether the showtime carries the minimum fields required
// for grouping
func (r RawShowtime) Valid() bool {
	return r.TitleBase != "" && r.Start.Unix() > 0
}

// Title returns the display title with the optional age-rating suffix
func (r RawShowtime) Title() string {
	if r.AgeRating == "" {
		return r.TitleBase
	}
	return r.TitleBase + ", " + r.AgeRating
}

// End returns the derived end instant when a positive duration is known
func (r RawShowtime) End() (time.Time, bool) {
	if r.DurationMinutes <= 0 {
		return time.Time{}, false
	}
	return r.Start.Add(time.Duration(r.DurationMinutes) * time.Minute), true
}

// Screening is the canonical record: one per (movie, calendar day) at a
// fixed venue, folded from one or more raw showtimes.
type Screening struct {
	Title        string
	AbbTitle     string
	IdentitySlug string
	VenueID      int

	// Start is the earliest showtime in the group
	Start time.Time

	// AllShowtimes holds one "date at time" line per folded showtime,
	// ascending by start instant
	AllShowtimes []string

	DetailPageURL string
	CoverImageURL string

	// Description is filled by the enrichment resolver; empty until then
	Description string
}
