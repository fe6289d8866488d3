package messages

import (
	"regexp"
	"strings"
)

// DefaultMaxBodyLen bounds plaintext message bodies. Ciphertext-marker bodies
// are exempt and stored byte-exact.
const DefaultMaxBodyLen = 4000

// Filter trims plaintext bodies to a bound and masks banned words. It never
// touches ciphertext payloads; the ledger routes those around it.
type Filter struct {
	maxLen  int
	banned  []*regexp.Regexp
	replace []string
}

// NewFilter compiles the banned-word list. Words are matched whole and
// case-insensitively.
func NewFilter(maxLen int, bannedWords []string) *Filter {
	if maxLen <= 0 {
		maxLen = DefaultMaxBodyLen
	}
	f := &Filter{maxLen: maxLen}
	for _, word := range bannedWords {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			continue
		}
		f.banned = append(f.banned, re)
		f.replace = append(f.replace, strings.Repeat("*", len([]rune(word))))
	}
	return f
}

// Apply normalizes a plaintext body: whitespace-trimmed, length-bounded,
// banned words masked.
func (f *Filter) Apply(body string) string {
	body = strings.TrimSpace(body)
	if runes := []rune(body); len(runes) > f.maxLen {
		body = string(runes[:f.maxLen])
	}
	for i, re := range f.banned {
		body = re.ReplaceAllString(body, f.replace[i])
	}
	return body
}
