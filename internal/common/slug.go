package common

import (
	"strings"
	"unicode"
)

// translit maps Cyrillic runes to Latin sequences for URL-safe slugs.
// Source sites are Russian cinemas, so titles arrive in Cyrillic.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// Slugify converts a string into a lowercase, URL-safe slug.
// Cyrillic characters are transliterated, everything else outside
// [a-z0-9] collapses into single hyphens.
func Slugify(input string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen

	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		if repl, ok := translit[r]; ok {
			if repl != "" {
				b.WriteString(repl)
				lastHyphen = false
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}

// SafeBaseName sanitizes a string for use as a local filename base:
// anything outside [a-z0-9._-] becomes a hyphen, runs of hyphens collapse.
func SafeBaseName(name string) string {
	var b strings.Builder
	lastHyphen := false

	for _, r := range name {
		lr := unicode.ToLower(r)
		switch {
		case (lr >= 'a' && lr <= 'z') || (lr >= '0' && lr <= '9') || lr == '.' || lr == '_':
			b.WriteRune(lr)
			lastHyphen = false
		case lr == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
