// Package protect shields inline image references from the translation
// backend by swapping them for opaque positional placeholders before the text
// is chunked, and swapping them back after reassembly.
package protect

import (
	"fmt"
	"regexp"
	"strings"
)

// imageRe matches markdown images: ![alt text](path/to/image.png)
var imageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)

// Placeholder returns the opaque token for the image at position idx.
// The token deliberately contains no natural-language characters so the
// translator has nothing to rewrite.
func Placeholder(idx int) string {
	return fmt.Sprintf("<<IMG_%d>>", idx)
}

// Protect replaces every image reference, in order of appearance, with its
// positional placeholder. The returned table holds the original reference
// text for each index; len(table) always equals the number of substitutions.
func Protect(text string) (string, []string) {
	var table []string
	cleaned := imageRe.ReplaceAllStringFunc(text, func(match string) string {
		idx := len(table)
		table = append(table, match)
		return Placeholder(idx)
	})
	return cleaned, table
}

// Restore substitutes each placeholder back with its original image
// reference. Placeholders are found by exact string match, so a translator
// that moved tokens around within a chunk does not break restoration.
// With an empty table Restore is the identity function.
func Restore(text string, table []string) string {
	for idx, ref := range table {
		text = strings.ReplaceAll(text, Placeholder(idx), ref)
	}
	return text
}
