package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/marquee/internal/models"
)

var testVenue = models.Venue{
	ID:               10611,
	Name:             "Almaz Cinema",
	UTCOffsetMinutes: 180,
}

func showtimeAt(title string, t time.Time) models.RawShowtime {
	return models.RawShowtime{
		TitleBase: title,
		Start:     t,
	}
}

func TestGroupFoldsSameDayShowtimes(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	raws := []models.RawShowtime{
		{
			TitleBase:     "Холоп",
			AgeRating:     "16+",
			Start:         day.Add(17 * time.Hour),
			CoverImageURL: "https://cdn.example.com/late.jpg",
		},
		{
			TitleBase:     "Холоп",
			AgeRating:     "16+",
			Start:         day.Add(14 * time.Hour),
			CoverImageURL: "https://cdn.example.com/early.jpg",
			DetailPageURL: "https://almaz-cinema.ru/cinema/movie/42/",
		},
		{
			TitleBase: "Холоп",
			AgeRating: "16+",
			Start:     day.Add(20 * time.Hour),
		},
	}

	screenings := Group(raws, testVenue, day, 7)
	require.Len(t, screenings, 1)

	s := screenings[0]
	assert.Equal(t, "Холоп, 16+", s.Title)
	assert.Equal(t, "10611-holop-15-03-2026", s.IdentitySlug)
	assert.Equal(t, testVenue.ID, s.VenueID)

	// Earliest showtime is canonical and supplies enrichment inputs
	assert.True(t, s.Start.Equal(day.Add(14*time.Hour)))
	assert.Equal(t, "https://cdn.example.com/early.jpg", s.CoverImageURL)
	assert.Equal(t, "https://almaz-cinema.ru/cinema/movie/42/", s.DetailPageURL)

	assert.Equal(t, []string{
		"15.03.2026 at 14:00",
		"15.03.2026 at 17:00",
		"15.03.2026 at 20:00",
	}, s.AllShowtimes)
}

func TestGroupSplitsByCalendarDay(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	raws := []models.RawShowtime{
		showtimeAt("Холоп", day.Add(22*time.Hour)),
		showtimeAt("Холоп", day.Add(26*time.Hour)), // 02:00 next day
	}

	screenings := Group(raws, testVenue, day, 7)
	require.Len(t, screenings, 2)
	assert.Equal(t, "10611-holop-15-03-2026", screenings[0].IdentitySlug)
	assert.Equal(t, "10611-holop-16-03-2026", screenings[1].IdentitySlug)
}

func TestGroupWindowBounds(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	raws := []models.RawShowtime{
		showtimeAt("Вчера", day.Add(-2*time.Hour)),       // before window
		showtimeAt("Сегодня", day.Add(10*time.Hour)),     // inside
		showtimeAt("Край", day.AddDate(0, 0, 7)),         // exactly at window end, excluded
		showtimeAt("Последний", day.AddDate(0, 0, 7).Add(-time.Hour)), // last included hour
	}

	screenings := Group(raws, testVenue, day, 7)
	require.Len(t, screenings, 2)
	assert.Equal(t, "Сегодня", screenings[0].Title)
	assert.Equal(t, "Последний", screenings[1].Title)
}

func TestGroupDropsInvalidShowtimes(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	raws := []models.RawShowtime{
		showtimeAt("", day.Add(10*time.Hour)),
		{TitleBase: "Без времени"},
		showtimeAt("Годный", day.Add(12*time.Hour)),
	}

	screenings := Group(raws, testVenue, day, 7)
	require.Len(t, screenings, 1)
	assert.Equal(t, "Годный", screenings[0].Title)
}

func TestGroupDisplayShiftAffectsTextOnly(t *testing.T) {
	venue := testVenue
	venue.DisplayShiftMinutes = 60

	zone := venue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)
	start := day.Add(14 * time.Hour)

	screenings := Group([]models.RawShowtime{showtimeAt("Холоп", start)}, venue, day, 7)
	require.Len(t, screenings, 1)

	assert.Equal(t, []string{"15.03.2026 at 15:00"}, screenings[0].AllShowtimes)
	// Stored instant keeps the source time
	assert.True(t, screenings[0].Start.Equal(start))
	// Slug day comes from the unshifted start
	assert.Equal(t, "10611-holop-15-03-2026", screenings[0].IdentitySlug)
}

func TestGroupDeterministicOrder(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	forward := []models.RawShowtime{
		showtimeAt("Альфа", day.Add(10*time.Hour)),
		showtimeAt("Бета", day.Add(12*time.Hour)),
		showtimeAt("Альфа", day.Add(18*time.Hour)),
		showtimeAt("Бета", day.AddDate(0, 0, 1).Add(12*time.Hour)),
	}
	reversed := []models.RawShowtime{forward[3], forward[2], forward[1], forward[0]}

	a := Group(forward, testVenue, day, 7)
	b := Group(reversed, testVenue, day, 7)
	assert.Equal(t, a, b)

	require.Len(t, a, 3)
	for i := 1; i < len(a); i++ {
		assert.False(t, a[i].Start.Before(a[i-1].Start))
	}
}

func TestGroupAbbTitleFallsBackToBase(t *testing.T) {
	zone := testVenue.Location()
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)

	screenings := Group([]models.RawShowtime{showtimeAt("Холоп", day.Add(10*time.Hour))}, testVenue, day, 7)
	require.Len(t, screenings, 1)
	assert.Equal(t, "Холоп", screenings[0].AbbTitle)
}

func TestWindowStart(t *testing.T) {
	zone := testVenue.Location()
	at := time.Date(2026, 3, 15, 23, 45, 0, 0, zone)

	start := WindowStart(at, testVenue)
	assert.True(t, start.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, zone)))
}
