package sources

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/marquee/internal/common"
)

// coverImageURL picks the best poster URL from an img selection, checking
// srcset first, then src and the common lazy-loading attributes.
func coverImageURL(img *goquery.Selection, base *url.URL) string {
	if img == nil || img.Length() == 0 {
		return ""
	}

	var candidates []string

	if srcset, ok := img.Attr("srcset"); ok && srcset != "" {
		first := strings.TrimSpace(strings.Split(srcset, ",")[0])
		if fields := strings.Fields(first); len(fields) > 0 {
			candidates = append(candidates, fields[0])
		}
	}

	for _, attr := range []string{"src", "data-src", "data-original", "data-lazy"} {
		if v, ok := img.Attr(attr); ok && v != "" {
			candidates = append(candidates, v)
		}
	}

	for _, c := range candidates {
		if abs := common.AbsoluteURL(c, base); common.IsHTTPURL(abs) {
			return abs
		}
	}
	return ""
}
