package sources

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

// KinoteatrExtractor parses kinoteatr.ru schedule pages. Pages are
// date-parameterized (?date=YYYY-MM-DD) and session anchors only carry a
// wall-clock HH:MM, so the start instant is composed from the page date.
type KinoteatrExtractor struct{}

// NewKinoteatrExtractor creates the kinoteatr.ru extraction strategy
func NewKinoteatrExtractor() *KinoteatrExtractor {
	return &KinoteatrExtractor{}
}

// Name identifies the strategy
func (e *KinoteatrExtractor) Name() string {
	return "kinoteatr"
}

// Extract returns every parseable showtime on the schedule page
func (e *KinoteatrExtractor) Extract(doc *goquery.Document, page interfaces.PageContext) []models.RawShowtime {
	base, _ := url.Parse(page.URL)
	pageDate := page.PageDate
	if pageDate.IsZero() {
		pageDate = time.Now().In(page.Zone)
	}

	var showtimes []models.RawShowtime

	doc.Find(".shedule_movie.bordered").Each(func(_ int, movie *goquery.Selection) {
		baseTitle := strings.TrimSpace(movie.Find(".movie_card_header.title").First().Text())
		if baseTitle == "" {
			return
		}

		age := parseAgeRating(movie.Find(".movie_card_raiting.sub_title").Text())

		cover := coverImageURL(movie.Find("img.shedule_movie_img").First(), base)
		if cover == "" {
			cover = coverImageURL(movie.Find(".shedule_movie_img img").First(), base)
		}

		detail := ""
		if href := attrOr(movie.Find("a.gtm-ec-list-item-movie").First(), "href"); href != "" {
			detail = common.NormalizeDetailURL(href, base)
		}

		movie.Find(".shedule_movie_sessions a.buy_seance").Each(func(_ int, seance *goquery.Selection) {
			timeText := strings.TrimSpace(seance.Find(".shedule_session_time").Text())
			hours, minutes, ok := parseClock(timeText)
			if !ok {
				return
			}

			start := time.Date(
				pageDate.Year(), pageDate.Month(), pageDate.Day(),
				hours, minutes, 0, 0, page.Zone,
			)

			showtimes = append(showtimes, models.RawShowtime{
				TitleBase:     baseTitle,
				AbbTitle:      withAge(baseTitle, age),
				AgeRating:     age,
				Start:         start,
				CoverImageURL: cover,
				DetailPageURL: detail,
			})
		})
	})

	return showtimes
}

// DescriptionHTML extracts the movie description fragment from a detail page
func (e *KinoteatrExtractor) DescriptionHTML(doc *goquery.Document) string {
	sel := doc.Find("p[itemprop='description']").First()
	if sel.Length() > 0 {
		if html, err := sel.Html(); err == nil && strings.TrimSpace(html) != "" {
			return html
		}
	}
	if content, ok := doc.Find("meta[property='og:description']").Attr("content"); ok && content != "" {
		return content
	}
	return ""
}

// parseClock parses "HH:MM" session time text
func parseClock(text string) (int, int, bool) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, 0, false
	}
	return hours, minutes, true
}

func withAge(title, age string) string {
	if age == "" {
		return title
	}
	return title + ", " + age
}
