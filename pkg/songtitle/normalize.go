// Package songtitle normalizes video titles for matching and for use as file names.
package songtitle

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cases.Caser is stateful, so every call builds its own chain.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFKC, cases.Fold())
}

// Fold maps s to a form suitable for case-insensitive comparison.
// Full-width letters and digits (common in CJK titles) collapse to their ASCII forms.
func Fold(s string) string {
	result, _, err := transform.String(foldChain(), s)
	if err != nil {
		return strings.ToLower(s)
	}
	return result
}

// Tokens splits a folded query into whitespace-separated tokens.
func Tokens(s string) []string {
	return strings.Fields(Fold(strings.TrimSpace(s)))
}

// illegalChars are characters not allowed in filenames on common filesystems.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var multiSpace = regexp.MustCompile(`\s+`)

var multiDot = regexp.MustCompile(`\.{2,}`)

// SanitizeFilename removes or replaces characters that are unsafe for filenames.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}
