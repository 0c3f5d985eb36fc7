package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Latin with spaces",
			input:    "The Dark Knight",
			expected: "the-dark-knight",
		},
		{
			name:     "Cyrillic title",
			input:    "Мастер и Маргарита",
			expected: "master-i-margarita",
		},
		{
			name:     "Venue prefix and date suffix",
			input:    "10611-Холоп-15-03-2026",
			expected: "10611-holop-15-03-2026",
		},
		{
			name:     "Punctuation collapses to single hyphens",
			input:    "Один дома!!! (расширенная версия)",
			expected: "odin-doma-rasshirennaya-versiya",
		},
		{
			name:     "Soft and hard signs vanish",
			input:    "Объект",
			expected: "obekt",
		},
		{
			name:     "Leading and trailing noise trimmed",
			input:    "  ...Дюна...  ",
			expected: "dyuna",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "Only punctuation",
			input:    "?!...",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	input := "10984-Планета Кино-07-11-2026"
	assert.Equal(t, Slugify(input), Slugify(input))
}

func TestSafeBaseName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Slug with hash suffix",
			input:    "10611-holop-15-03-2026-a1b2c3d4",
			expected: "10611-holop-15-03-2026-a1b2c3d4",
		},
		{
			name:     "Uppercase lowered",
			input:    "Cover_IMAGE.JPG",
			expected: "cover_image.jpg",
		},
		{
			name:     "Path separators neutralized",
			input:    "../../etc/passwd",
			expected: "..-..-etc-passwd",
		},
		{
			name:     "Hyphen runs collapse",
			input:    "a---b  c",
			expected: "a-b-c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeBaseName(tt.input))
		})
	}
}
