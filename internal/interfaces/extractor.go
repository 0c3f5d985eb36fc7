package interfaces

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/marquee/internal/models"
)

// PageContext carries the identity of a fetched schedule page into the
// extraction strategy
type PageContext struct {
	// URL is the page's own URL, used to resolve relative links
	URL string

	// PageDate is the calendar date encoded in the page URL for
	// date-parameterized sources; zero otherwise
	PageDate time.Time

	// Zone is the venue's fixed-offset local zone
	Zone *time.Location
}

// Extractor parses a schedule page's markup into raw showtimes.
// Implementations are pure functions of the page content: no network
// access, no side effects. A malformed single entry is dropped, never the
// whole page.
type Extractor interface {
	// Name identifies the strategy, matching SourceConfig.Strategy
	Name() string

	// Extract returns every parseable showtime on the page
	Extract(doc *goquery.Document, page PageContext) []models.RawShowtime

	// DescriptionHTML extracts the movie description fragment from a
	// detail page. Returns raw HTML (or plain text) or "" when the page
	// carries no recognizable description.
	DescriptionHTML(doc *goquery.Document) string
}
