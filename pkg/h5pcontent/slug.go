package h5pcontent

import (
	"fmt"
	"regexp"
	"strings"
)

// Matches runs of anything that is not an ASCII letter or digit.
var nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)

const defaultSlug = "untitled"

// GenerateSlug converts a title to an ASCII slug.
//
//	"Hello, World!" → "hello-world"
//	"日本語"         → "untitled"
func GenerateSlug(title string) string {
	s := strings.ToLower(title)
	s = nonAlphanumericRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return defaultSlug
	}
	return s
}

// slugCandidate returns the n-th attempt for a base slug: base, base-2, base-3, ...
func slugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
