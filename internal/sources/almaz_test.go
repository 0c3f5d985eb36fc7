package sources

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/marquee/internal/interfaces"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func almazPage(t *testing.T, zone *time.Location) (*goquery.Document, time.Time) {
	t.Helper()
	first := time.Date(2026, 3, 15, 14, 0, 0, 0, zone)
	second := time.Date(2026, 3, 15, 17, 0, 0, 0, zone)

	html := fmt.Sprintf(`<html><body>
<div class="item day">
  <div class="scheduleList">
    <div class="scheduleMovie__item">
      <div class="scheduleMovie__item-poster">
        <a href="/cinema/movie/4512"><img src="/upload/holop.jpg"></a>
      </div>
      <div class="scheduleMovie__item-content">
        <div class="title"><h3>Холоп</h3></div>
        <span class="age">16+</span>
      </div>
      <div class="seances"><div class="format"><div class="content-list">
        <a class="btn btn__time sale" data-data='{"timestamp":%d,"length":109,"movieUrl":"/cinema/movie/4512"}'>14:00</a>
        <a class="btn btn__time" data-data='{"timestamp":%d,"duration":{"release":109}}'>17:00</a>
        <a class="btn btn__time" data-data='broken json'>19:00</a>
        <a class="btn btn__time">20:00</a>
      </div></div></div>
    </div>
  </div>
</div>
</body></html>`, first.Unix(), second.Unix())

	return parseHTML(t, html), first
}

func TestAlmazExtract(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	doc, first := almazPage(t, zone)

	extractor := NewAlmazExtractor()
	showtimes := extractor.Extract(doc, interfaces.PageContext{
		URL:  "https://almaz-cinema.ru/schedule/",
		Zone: zone,
	})

	// Sessions without a usable timestamp are dropped, the rest survive
	require.Len(t, showtimes, 2)

	s := showtimes[0]
	assert.Equal(t, "Холоп", s.TitleBase)
	assert.Equal(t, "Холоп", s.AbbTitle)
	assert.Equal(t, "16+", s.AgeRating)
	assert.True(t, s.Start.Equal(first))
	assert.Equal(t, 109, s.DurationMinutes)
	assert.Equal(t, "https://almaz-cinema.ru/upload/holop.jpg", s.CoverImageURL)
	assert.Equal(t, "https://almaz-cinema.ru/cinema/movie/4512/", s.DetailPageURL)

	// Length fallback via duration.release
	assert.Equal(t, 109, showtimes[1].DurationMinutes)
	assert.True(t, s.Valid())
}

func TestAlmazExtractSkipsTitlelessMovies(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	html := `<div class="item day"><div class="scheduleList">
<div class="scheduleMovie__item">
  <div class="scheduleMovie__item-content"><div class="title"><h3></h3></div></div>
  <div class="seances"><div class="format"><div class="content-list">
    <a class="btn btn__time" data-data='{"timestamp":1773558000}'>14:00</a>
  </div></div></div>
</div></div></div>`

	showtimes := NewAlmazExtractor().Extract(parseHTML(t, html), interfaces.PageContext{
		URL:  "https://almaz-cinema.ru/schedule/",
		Zone: zone,
	})
	assert.Empty(t, showtimes)
}

func TestAlmazExtractEmptyPage(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	showtimes := NewAlmazExtractor().Extract(parseHTML(t, "<html><body></body></html>"), interfaces.PageContext{
		URL:  "https://almaz-cinema.ru/schedule/",
		Zone: zone,
	})
	assert.Empty(t, showtimes)
}

func TestAlmazDetailURLPrefersCanonicalMoviePath(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	html := `<div class="item day"><div class="scheduleList">
<div class="scheduleMovie__item">
  <div class="scheduleMovie__item-poster"><a href="/news/premiere-announcement-long"><img src="/p.jpg"></a></div>
  <div class="scheduleMovie__item-content"><div class="title"><h3>Холоп</h3><a href="/cinema/movie/4512"></a></div></div>
  <div class="seances"><div class="format"><div class="content-list">
    <a class="btn btn__time" data-data='{"timestamp":1773558000}'>14:00</a>
  </div></div></div>
</div></div></div>`

	showtimes := NewAlmazExtractor().Extract(parseHTML(t, html), interfaces.PageContext{
		URL:  "https://almaz-cinema.ru/schedule/",
		Zone: zone,
	})
	require.Len(t, showtimes, 1)
	assert.Equal(t, "https://almaz-cinema.ru/cinema/movie/4512/", showtimes[0].DetailPageURL)
}

func TestAlmazDescriptionHTML(t *testing.T) {
	extractor := NewAlmazExtractor()

	t.Run("Description container", func(t *testing.T) {
		doc := parseHTML(t, `<html><body><div class="description"><p>Сюжет фильма.</p></div></body></html>`)
		assert.Contains(t, extractor.DescriptionHTML(doc), "Сюжет фильма.")
	})

	t.Run("Meta fallback", func(t *testing.T) {
		doc := parseHTML(t, `<html><head><meta name="description" content="Краткое описание."></head><body></body></html>`)
		assert.Equal(t, "Краткое описание.", extractor.DescriptionHTML(doc))
	})

	t.Run("OpenGraph fallback", func(t *testing.T) {
		doc := parseHTML(t, `<html><head><meta property="og:description" content="OG описание."></head><body></body></html>`)
		assert.Equal(t, "OG описание.", extractor.DescriptionHTML(doc))
	})

	t.Run("Nothing recognizable", func(t *testing.T) {
		doc := parseHTML(t, `<html><body><p>Не описание</p></body></html>`)
		assert.Equal(t, "", extractor.DescriptionHTML(doc))
	})
}

func TestParseAgeRating(t *testing.T) {
	assert.Equal(t, "16+", parseAgeRating("Холоп 16+"))
	assert.Equal(t, "6+", parseAgeRating("мультфильм, 6 +, дубляж"))
	assert.Equal(t, "", parseAgeRating("Холоп"))
	assert.Equal(t, "", parseAgeRating(""))
}
