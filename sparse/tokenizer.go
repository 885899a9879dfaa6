package sparse

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the input and splits it on anything that is not a
// Unicode word character. Both documents and queries go through this exact
// function so index and search agree on term boundaries.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
