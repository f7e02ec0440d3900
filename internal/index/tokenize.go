package index

import "strings"

// Tokenize lower-cases text and splits it on whitespace. The same tokens feed
// BM25 scoring and keyword overlap.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
