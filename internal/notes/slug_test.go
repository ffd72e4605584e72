package notes

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Basic normalization
		{"lowercase", "DRAGONS", "dragons"},
		{"spaces to dashes", "Hello World", "hello-world"},
		{"underscores to dashes", "hello_world", "hello-world"},
		{"already normalized", "hello-world", "hello-world"},

		// Whitespace handling
		{"trim whitespace", "  dragons  ", "dragons"},
		{"multiple spaces", "multi   word", "multi-word"},
		{"tabs and spaces", "multi\t word", "multi-word"},

		// Special characters
		{"emoji removal", "🐉 Dragons!", "dragons"},
		{"punctuation removal", "sci-fi/fantasy", "sci-fi-fantasy"},
		{"apostrophe removal", "don't", "dont"},

		// Diacritics
		{"fold accents", "Café périple", "cafe-periple"},
		{"german umlauts", "Über München", "uber-munchen"},

		// Transliteration
		{"cyrillic word", "Заголовок", "zagolovok"},
		{"cyrillic phrase", "Новая заметка", "novaya-zametka"},
		{"mixed scripts", "Note Проверка 1", "note-proverka-1"},

		// Dash handling
		{"multiple dashes", "slow--burn", "slow-burn"},
		{"leading dashes", "--dragons", "dragons"},
		{"trailing dashes", "dragons--", "dragons"},

		// Edge cases
		{"empty string", "", ""},
		{"only spaces", "   ", ""},
		{"only special chars", "!@#$%", ""},
		{"numbers allowed", "top10", "top10"},
		{"mixed case with numbers", "Top 10 Books", "top-10-books"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slugify(tt.input)
			if result != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSlugify_TruncatesLongTitles(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("word ", 50)
	slug := Slugify(long)
	if len(slug) > MaxSlugLength {
		t.Fatalf("slug length %d exceeds %d", len(slug), MaxSlugLength)
	}
	if strings.HasSuffix(slug, "-") {
		t.Fatalf("truncated slug ends with dash: %q", slug)
	}
}

func testSlugify_AlwaysProducesValidSlug(t *rapid.T) {
	title := rapid.String().Draw(t, "title")
	slug := Slugify(title)
	if slug == "" {
		return
	}
	if !ValidateSlug(slug) {
		t.Fatalf("Slugify(%q) = %q is not a valid slug", title, slug)
	}
	if strings.Contains(slug, "--") {
		t.Fatalf("Slugify(%q) = %q contains consecutive dashes", title, slug)
	}
	if slug != Slugify(slug) {
		t.Fatalf("Slugify is not idempotent: %q -> %q -> %q", title, slug, Slugify(slug))
	}
}

func TestSlugify_AlwaysProducesValidSlug(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSlugify_AlwaysProducesValidSlug)
}

func TestValidateSlug(t *testing.T) {
	t.Parallel()
	valid := []string{"a", "hello-world", "under_score", "MiXeD-123", strings.Repeat("x", 100)}
	for _, s := range valid {
		if !ValidateSlug(s) {
			t.Errorf("ValidateSlug(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "has space", "slash/есть", "юникод", strings.Repeat("x", 101)}
	for _, s := range invalid {
		if ValidateSlug(s) {
			t.Errorf("ValidateSlug(%q) = true, want false", s)
		}
	}
}
