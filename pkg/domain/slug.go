package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackSlug is used when nothing of the source text survives slugification.
const fallbackSlug = "cultivation"

var (
	slugDisallowed = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts text into a lower-case ASCII slug. Accented letters are
// decomposed and stripped of their marks; characters without an ASCII
// decomposition are dropped. Runs of whitespace and hyphens collapse into a
// single hyphen.
func Slugify(text string) string {
	ascii := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(ascii, text)
	if err != nil {
		out = text
	}
	out = slugDisallowed.ReplaceAllString(strings.ToLower(out), "")
	out = slugSeparators.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}

// CultivationSlugBase builds the slug candidate for a season before collision handling.
func CultivationSlugBase(year int, fieldName, cropName string) string {
	base := Slugify(fmt.Sprintf("%d-%s-%s", year, fieldName, cropName))
	if base == "" {
		return fallbackSlug
	}
	return base
}

// UniqueSlug returns base, or base with a "-2", "-3", ... suffix, choosing
// the first candidate for which taken returns false. Candidates never exceed
// MaxSlugLength; the base is shortened to make room for the suffix.
func UniqueSlug(base string, taken func(string) bool) string {
	if base == "" {
		base = fallbackSlug
	}
	candidate := truncateSlug(base, MaxSlugLength)
	if !taken(candidate) {
		return candidate
	}
	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate = truncateSlug(base, MaxSlugLength-len(suffix)) + suffix
		if !taken(candidate) {
			return candidate
		}
	}
}

func truncateSlug(slug string, limit int) string {
	if len(slug) <= limit {
		return slug
	}
	return strings.TrimRight(slug[:limit], "-_")
}
