package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marquee/internal/common"
)

const (
	coverMaxAttempts = 3
	coverRetryStep   = 300 * time.Millisecond
)

var urlExtRe = regexp.MustCompile(`\.([a-zA-Z0-9]{2,5})$`)

// CoverStore downloads cover images into a flat directory with
// deterministic names, so repeated runs map the same source URL to the
// same local file. Existing files are reused, never overwritten.
type CoverStore struct {
	dir     string
	fetcher *Fetcher
	logger  arbor.ILogger
}

// NewCoverStore creates the image directory if needed
func NewCoverStore(dir string, fetcher *Fetcher, logger arbor.ILogger) (*CoverStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &CoverStore{
		dir:     dir,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// FileBase derives the deterministic name stem for a cover: the owning
// screening's slug plus a short hash of the source URL, so distinct
// URLs for the same screening never collide.
func FileBase(slug, imageURL string) string {
	sum := md5.Sum([]byte(imageURL))
	return common.SafeBaseName(slug + "-" + hex.EncodeToString(sum[:])[:8])
}

// Download fetches one cover image and returns the local path. Up to
// three attempts with a linearly growing delay; transient source errors
// are common on these sites. When the extension is already known from
// the URL and the file exists, the download is skipped entirely.
func (s *CoverStore) Download(ctx context.Context, imageURL, fileBase, referer string) (string, error) {
	if ext := extFromURL(imageURL); ext != "" {
		path := filepath.Join(s.dir, fileBase+"."+ext)
		if _, err := os.Stat(path); err == nil {
			s.logger.Debug().Str("path", path).Msg("Cover already on disk")
			return path, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= coverMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(coverRetryStep * time.Duration(attempt)):
			}
		}

		body, contentType, err := s.fetcher.Bytes(ctx, imageURL, referer)
		if err != nil {
			lastErr = err
			s.logger.Warn().
				Str("url", imageURL).
				Int("attempt", attempt).
				Err(err).
				Msg("Cover download attempt failed")
			continue
		}

		ext := extFromURL(imageURL)
		if ext == "" {
			ext = extFromContentType(contentType)
		}
		if ext == "" {
			ext = "jpg"
		}

		path := filepath.Join(s.dir, fileBase+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		if err := os.WriteFile(path, body, 0644); err != nil {
			return "", fmt.Errorf("failed to write cover %s: %w", path, err)
		}

		s.logger.Debug().
			Str("url", imageURL).
			Str("path", path).
			Int("bytes", len(body)).
			Msg("Cover downloaded")
		return path, nil
	}

	return "", fmt.Errorf("cover download failed after %d attempts: %w", coverMaxAttempts, lastErr)
}

// extFromURL extracts a file extension from the URL path, ignoring
// query and fragment
func extFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := urlExtRe.FindStringSubmatch(parsed.Path)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func extFromContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/avif":
		return "avif"
	case "image/svg+xml":
		return "svg"
	}
	return ""
}
