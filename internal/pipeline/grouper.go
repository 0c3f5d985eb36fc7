package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/models"
)

// showtimeLayout renders one folded showtime as a human-readable line
const showtimeLayout = "02.01.2006 at 15:04"

// Group folds raw showtimes into canonical screenings, one per
// (title, calendar day) pair inside the parsing window. Days are
// resolved in the venue's fixed-offset zone. Within each group the
// earliest showtime supplies the start instant, cover image and detail
// page; the remaining showtimes survive only as lines in AllShowtimes.
//
// The window is [windowStart, windowStart+dayWindow days). Showtimes
// outside it are dropped, as are entries without a title or a positive
// start epoch. Output is ordered by start instant, then slug, so a run
// over the same input always reconciles in the same order.
func Group(raws []models.RawShowtime, venue models.Venue, windowStart time.Time, dayWindow int) []models.Screening {
	zone := venue.Location()
	windowEnd := windowStart.AddDate(0, 0, dayWindow)

	type groupKey struct {
		title string
		day   string
	}

	groups := make(map[groupKey][]models.RawShowtime)
	order := make([]groupKey, 0)

	for _, raw := range raws {
		if !raw.Valid() {
			continue
		}
		if raw.Start.Before(windowStart) || !raw.Start.Before(windowEnd) {
			continue
		}

		key := groupKey{
			title: raw.TitleBase,
			day:   raw.Start.In(zone).Format("2006-01-02"),
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], raw)
	}

	screenings := make([]models.Screening, 0, len(order))
	shift := time.Duration(venue.DisplayShiftMinutes) * time.Minute

	for _, key := range order {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Start.Before(members[j].Start)
		})

		first := members[0]
		day := first.Start.In(zone)

		showtimes := make([]string, 0, len(members))
		for _, m := range members {
			showtimes = append(showtimes, m.Start.In(zone).Add(shift).Format(showtimeLayout))
		}

		abbTitle := first.AbbTitle
		if abbTitle == "" {
			abbTitle = first.TitleBase
		}

		screenings = append(screenings, models.Screening{
			Title:        first.Title(),
			AbbTitle:     abbTitle,
			IdentitySlug: common.Slugify(fmt.Sprintf("%d-%s-%s", venue.ID, first.TitleBase, day.Format("02-01-2006"))),
			VenueID:      venue.ID,
			Start:        first.Start,
			AllShowtimes: showtimes,

			DetailPageURL: first.DetailPageURL,
			CoverImageURL: first.CoverImageURL,
		})
	}

	sort.SliceStable(screenings, func(i, j int) bool {
		if !screenings[i].Start.Equal(screenings[j].Start) {
			return screenings[i].Start.Before(screenings[j].Start)
		}
		return screenings[i].IdentitySlug < screenings[j].IdentitySlug
	})

	return screenings
}

// WindowStart returns midnight of the given instant in the venue's zone,
// the canonical lower bound of a parsing window
func WindowStart(at time.Time, venue models.Venue) time.Time {
	local := at.In(venue.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, venue.Location())
}
