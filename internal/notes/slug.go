package notes

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds both derived and user-supplied slugs.
const MaxSlugLength = 100

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)

	// SlugPattern is what user-supplied slugs must match.
	SlugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// diacriticsFold decomposes characters and strips combining marks,
// so "café" becomes "cafe".
var diacriticsFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// cyrillicTranslit maps lowercase Cyrillic letters to Latin equivalents.
var cyrillicTranslit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "j", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
}

// Slugify converts a note title to a URL-safe slug.
//
// Normalization rules:
//  1. Transliterate Cyrillic to Latin
//  2. Strip diacritics, trim whitespace and lowercase
//  3. Replace spaces, underscores and slashes with dashes
//  4. Remove non-alphanumeric characters (except dashes)
//  5. Collapse multiple dashes and trim leading/trailing dashes
//  6. Truncate to MaxSlugLength
//
// Examples:
//
//	"Hello World"   → "hello-world"
//	"Café périple"  → "cafe-periple"
//	"Заголовок"     → "zagolovok"
//	"  multi   word " → "multi-word"
func Slugify(title string) string {
	s := transliterate(strings.ToLower(title))

	if folded, _, err := transform.String(diacriticsFold, s); err == nil {
		s = folded
	}

	s = strings.TrimSpace(s)
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// ValidateSlug checks a user-supplied slug for length and allowed characters.
func ValidateSlug(slug string) bool {
	return len(slug) <= MaxSlugLength && SlugPattern.MatchString(slug)
}

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := cyrillicTranslit[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
