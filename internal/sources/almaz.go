package sources

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

var ageRatingRe = regexp.MustCompile(`\b([0-9]{1,2}\s*\+)`)

// AlmazExtractor parses the Almaz Cinema schedule page. The whole window
// of days sits on a single page; each session anchor carries a data-data
// JSON attribute with the start epoch and the film length.
type AlmazExtractor struct{}

// NewAlmazExtractor creates the Almaz Cinema extraction strategy
func NewAlmazExtractor() *AlmazExtractor {
	return &AlmazExtractor{}
}

// Name identifies the strategy
func (e *AlmazExtractor) Name() string {
	return "almaz"
}

// sessionData mirrors the data-data JSON attribute on session anchors
type sessionData struct {
	Timestamp int64 `json:"timestamp"`
	Length    int   `json:"length"`
	Duration  struct {
		Release int `json:"release"`
	} `json:"duration"`
	MovieURL string `json:"movieUrl"`
	URL      string `json:"url"`
	Href     string `json:"href"`
	Link     string `json:"link"`
}

func (d sessionData) lengthMinutes() int {
	if d.Length > 0 {
		return d.Length
	}
	return d.Duration.Release
}

// Extract returns every parseable showtime on the schedule page
func (e *AlmazExtractor) Extract(doc *goquery.Document, page interfaces.PageContext) []models.RawShowtime {
	base, _ := url.Parse(page.URL)
	var showtimes []models.RawShowtime

	doc.Find(".item.day").Each(func(_ int, day *goquery.Selection) {
		day.Find(".scheduleList .scheduleMovie__item").Each(func(_ int, movie *goquery.Selection) {
			baseTitle := strings.TrimSpace(movie.Find(".scheduleMovie__item-content .title h3").First().Text())

			rawText := movie.Find(".scheduleMovie__item-content").First().Text()
			age := parseAgeRating(rawText)

			abbTitle := strings.TrimSpace(movie.Find(".scheduleMovie__item-content .title .abbr, .scheduleMovie__item-content .title abbr").First().Text())
			if abbTitle == "" {
				abbTitle = baseTitle
			}

			cover := coverImageURL(movie.Find(".scheduleMovie__item-poster img").First(), base)
			if cover == "" {
				cover = coverImageURL(movie.Find(".scheduleMovie__item-hposter img").First(), base)
			}

			movie.Find(".seances .format .content-list a.btn.btn__time.sale, .seances .format .content-list a.btn.btn__time").Each(func(_ int, anchor *goquery.Selection) {
				var data sessionData
				if raw, ok := anchor.Attr("data-data"); ok {
					// Malformed attributes drop the session, not the page
					_ = json.Unmarshal([]byte(raw), &data)
				}

				if baseTitle == "" || data.Timestamp <= 0 {
					return
				}

				showtimes = append(showtimes, models.RawShowtime{
					TitleBase:       baseTitle,
					AbbTitle:        abbTitle,
					AgeRating:       age,
					Start:           time.Unix(data.Timestamp, 0).In(page.Zone),
					DurationMinutes: data.lengthMinutes(),
					CoverImageURL:   cover,
					DetailPageURL:   e.detailPageURL(movie, base, data),
				})
			})
		})
	})

	return showtimes
}

// detailPageURL collects candidate links and ranks them: canonical movie
// paths first, then shortest
func (e *AlmazExtractor) detailPageURL(movie *goquery.Selection, base *url.URL, data sessionData) string {
	raw := []string{
		attrOr(movie.Find("a.movie__item-cover").First(), "href"),
		attrOr(movie.Find(".scheduleMovie__item-poster a").First(), "href"),
		attrOr(movie.Find(".scheduleMovie__item-content .title a").First(), "href"),
		data.MovieURL,
		data.URL,
		data.Href,
		data.Link,
	}

	seen := make(map[string]bool)
	var urls []string
	for _, c := range raw {
		if c == "" {
			continue
		}
		v := common.NormalizeDetailURL(c, base)
		if v != "" && !seen[v] {
			seen[v] = true
			urls = append(urls, v)
		}
	}
	if len(urls) == 0 {
		return ""
	}

	sort.SliceStable(urls, func(i, j int) bool {
		pi := 1
		if strings.Contains(urls[i], "/cinema/movie/") {
			pi = 0
		}
		pj := 1
		if strings.Contains(urls[j], "/cinema/movie/") {
			pj = 0
		}
		if pi != pj {
			return pi < pj
		}
		return len(urls[i]) < len(urls[j])
	})
	return urls[0]
}

// DescriptionHTML extracts the movie description fragment from a detail
// page, trying the site's description containers before falling back to
// meta tags
func (e *AlmazExtractor) DescriptionHTML(doc *goquery.Document) string {
	selectors := []string{
		"div.description",
		"div.movie-desc", "div.movie_desc", "div.synopsis", "div.summary", "div.about",
		"div[itemprop='description']",
	}
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			if html, err := sel.Html(); err == nil && strings.TrimSpace(html) != "" {
				return html
			}
		}
	}

	if content, ok := doc.Find("meta[name='description']").Attr("content"); ok && content != "" {
		return content
	}
	if content, ok := doc.Find("meta[property='og:description']").Attr("content"); ok && content != "" {
		return content
	}
	return ""
}

// parseAgeRating pulls an "NN+" age classification out of surrounding text
func parseAgeRating(text string) string {
	m := ageRatingRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.ReplaceAll(m[1], " ", "")
}

// attrOr returns the attribute value or ""
func attrOr(sel *goquery.Selection, attr string) string {
	v, _ := sel.Attr(attr)
	return v
}
