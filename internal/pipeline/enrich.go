package pipeline

import (
	"context"
	"regexp"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/models"
)

// resolveConcurrency bounds the number of in-flight enrichment fetches
const resolveConcurrency = 5

var spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)

// Cache memoizes enrichment results for the life of a run. The same
// movie appears on several schedule pages of a date-parameterized
// source, so detail pages and covers are fetched once per run, not once
// per page. Keys are only inserted, never overwritten.
type Cache struct {
	mu           sync.Mutex
	descriptions map[string]string // detail page URL -> markdown description, "" = fetched but empty
	covers       map[string]string // image URL -> local file path
}

// NewCache creates an empty enrichment cache
func NewCache() *Cache {
	return &Cache{
		descriptions: make(map[string]string),
		covers:       make(map[string]string),
	}
}

// Description returns the cached description for a detail URL
func (c *Cache) Description(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	desc, ok := c.descriptions[url]
	return desc, ok
}

// SetDescription records a resolved description. The first writer wins.
func (c *Cache) SetDescription(url, desc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.descriptions[url]; !ok {
		c.descriptions[url] = desc
	}
}

// CoverPath returns the cached local path for an image URL
func (c *Cache) CoverPath(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.covers[url]
	return path, ok
}

// SetCoverPath records a downloaded cover. The first writer wins.
func (c *Cache) SetCoverPath(url, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.covers[url]; !ok {
		c.covers[url] = path
	}
}

// Resolver performs best-effort enrichment of a screening batch:
// descriptions from detail pages and cover images to local disk. Every
// task settles independently; a failed task degrades its screening but
// never fails the batch or cancels siblings.
type Resolver struct {
	fetcher   *Fetcher
	covers    *CoverStore
	cache     *Cache
	converter *md.Converter
	logger    arbor.ILogger
}

// NewResolver creates a resolver sharing the run-scoped cache
func NewResolver(fetcher *Fetcher, covers *CoverStore, cache *Cache, logger arbor.ILogger) *Resolver {
	return &Resolver{
		fetcher:   fetcher,
		covers:    covers,
		cache:     cache,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Resolve enriches the batch in place. One task is scheduled per
// distinct uncached detail URL and per distinct uncached cover URL;
// cache membership is checked before scheduling, so no two tasks ever
// chase the same URL. Returns only after every task has settled.
func (r *Resolver) Resolve(ctx context.Context, screenings []models.Screening, extractor interfaces.Extractor, referer string) {
	type coverTask struct {
		url      string
		fileBase string
	}

	detailURLs := make([]string, 0)
	coverTasks := make([]coverTask, 0)
	seenDetail := make(map[string]bool)
	seenCover := make(map[string]bool)

	for _, s := range screenings {
		if s.DetailPageURL != "" && !seenDetail[s.DetailPageURL] {
			seenDetail[s.DetailPageURL] = true
			if _, cached := r.cache.Description(s.DetailPageURL); !cached {
				detailURLs = append(detailURLs, s.DetailPageURL)
			}
		}
		if s.CoverImageURL != "" && !seenCover[s.CoverImageURL] {
			seenCover[s.CoverImageURL] = true
			if _, cached := r.cache.CoverPath(s.CoverImageURL); !cached {
				coverTasks = append(coverTasks, coverTask{
					url:      s.CoverImageURL,
					fileBase: FileBase(s.IdentitySlug, s.CoverImageURL),
				})
			}
		}
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, resolveConcurrency)

	for _, detailURL := range detailURLs {
		wg.Add(1)
		go func(detailURL string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			r.resolveDescription(ctx, detailURL, extractor, referer)
		}(detailURL)
	}

	for _, task := range coverTasks {
		wg.Add(1)
		go func(task coverTask) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			path, err := r.covers.Download(ctx, task.url, task.fileBase, referer)
			if err != nil {
				r.logger.Warn().
					Str("url", task.url).
					Err(err).
					Msg("Cover enrichment failed")
				return
			}
			r.cache.SetCoverPath(task.url, path)
		}(task)
	}

	wg.Wait()

	for i := range screenings {
		if screenings[i].DetailPageURL == "" {
			continue
		}
		if desc, ok := r.cache.Description(screenings[i].DetailPageURL); ok {
			screenings[i].Description = desc
		}
	}
}

// resolveDescription fetches a detail page and caches its description
// as markdown. Failures cache an empty string so the URL is not retried
// within the run.
func (r *Resolver) resolveDescription(ctx context.Context, detailURL string, extractor interfaces.Extractor, referer string) {
	doc, err := r.fetcher.DetailDocument(ctx, detailURL, referer)
	if err != nil {
		r.logger.Warn().
			Str("url", detailURL).
			Err(err).
			Msg("Description enrichment failed")
		r.cache.SetDescription(detailURL, "")
		return
	}

	html := extractor.DescriptionHTML(doc)
	r.cache.SetDescription(detailURL, r.toMarkdown(html))
}

// toMarkdown converts description HTML to markdown, falling back to
// stripped plain text when conversion fails
func (r *Resolver) toMarkdown(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	markdown, err := r.converter.ConvertString(html)
	if err == nil && strings.TrimSpace(markdown) != "" {
		return cleanText(markdown)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + html + "</div>"))
	if err != nil {
		return ""
	}
	return cleanText(doc.Text())
}

func cleanText(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}
