package common

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("https://almaz-cinema.ru/cinema/movie/123/"))
	assert.True(t, IsHTTPURL("http://example.com/a.jpg"))
	assert.False(t, IsHTTPURL("/cinema/movie/123/"))
	assert.False(t, IsHTTPURL("ftp://example.com/file"))
	assert.False(t, IsHTTPURL(""))
	assert.False(t, IsHTTPURL("javascript:void(0)"))
}

func TestAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://kinoteatr.ru/kinoafisha/perm/")
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "Relative path",
			raw:      "/upload/poster.jpg",
			expected: "https://kinoteatr.ru/upload/poster.jpg",
		},
		{
			name:     "Already absolute",
			raw:      "https://cdn.kinoteatr.ru/poster.jpg",
			expected: "https://cdn.kinoteatr.ru/poster.jpg",
		},
		{
			name:     "Protocol relative",
			raw:      "//cdn.kinoteatr.ru/poster.jpg",
			expected: "https://cdn.kinoteatr.ru/poster.jpg",
		},
		{
			name:     "Empty stays empty",
			raw:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AbsoluteURL(tt.raw, base))
		})
	}
}

func TestStripMarkdownURL(t *testing.T) {
	assert.Equal(t, "https://example.com/movie/", StripMarkdownURL("[Холоп](https://example.com/movie/)"))
	assert.Equal(t, "https://example.com/movie/", StripMarkdownURL("  https://example.com/movie/ "))
	assert.Equal(t, "plain text", StripMarkdownURL(" plain text, "))
}

func TestNormalizeDetailURL(t *testing.T) {
	base, err := url.Parse("https://almaz-cinema.ru/")
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "Relative path gains origin and trailing slash",
			raw:      "/cinema/movie/4512",
			expected: "https://almaz-cinema.ru/cinema/movie/4512/",
		},
		{
			name:     "Query and fragment stripped",
			raw:      "https://almaz-cinema.ru/cinema/movie/4512/?utm=banner#top",
			expected: "https://almaz-cinema.ru/cinema/movie/4512/",
		},
		{
			name:     "Markdown wrapper removed",
			raw:      "[title](https://almaz-cinema.ru/cinema/movie/4512/)",
			expected: "https://almaz-cinema.ru/cinema/movie/4512/",
		},
		{
			name:     "Non-http scheme rejected",
			raw:      "javascript:void(0)",
			expected: "",
		},
		{
			name:     "Empty rejected",
			raw:      "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDetailURL(tt.raw, base))
		})
	}
}

func TestNormalizeDetailURLIdempotent(t *testing.T) {
	base, _ := url.Parse("https://almaz-cinema.ru/")
	once := NormalizeDetailURL("/cinema/movie/4512?x=1", base)
	twice := NormalizeDetailURL(once, base)
	assert.Equal(t, once, twice)
}
