// Package textfilter reduces raw word lists to the tokens worth embedding.
package textfilter

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)^(?:[a-z][a-z0-9+.-]*://\S+|www\.\S+)$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Filter drops stop words, punctuation-only tokens, URLs and e-mail addresses.
// Survivors keep their original spelling and order.
type Filter struct {
	stopwords map[string]struct{}
}

// New creates a Filter over the English stop word list plus any extra words.
func New(extra ...string) *Filter {
	m := make(map[string]struct{}, len(englishStopwords)+len(extra))
	for _, w := range englishStopwords {
		m[w] = struct{}{}
	}
	for _, w := range extra {
		m[strings.ToLower(w)] = struct{}{}
	}
	return &Filter{stopwords: m}
}

// Apply returns the words that survive filtering.
func (f *Filter) Apply(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if f.drop(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (f *Filter) drop(w string) bool {
	if strings.Trim(w, punctuation) == "" {
		return true
	}
	if _, ok := f.stopwords[strings.ToLower(w)]; ok {
		return true
	}
	return isURL(w) || isEmail(w)
}

func isURL(w string) bool {
	return urlPattern.MatchString(w)
}

func isEmail(w string) bool {
	if !emailPattern.MatchString(w) {
		return false
	}
	_, err := mail.ParseAddress(w)
	return err == nil
}
