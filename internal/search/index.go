// Package search is a small in-memory index over generated study material.
//
// Each Document is split into facts (see Facts); every fact becomes one
// searchable entry that remembers the document it came from. Scoring is the
// Jaccard similarity between the query token set and the fact token set:
// score = |Q ∩ F| / |Q ∪ F|. Ties break on shorter text, then lexically, so
// results are deterministic. An Index is read-only after construction and
// safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is one searchable text with a caller-defined id.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked snippet.
type Result struct {
	DocID   string
	Snippet string
	Score   float64
}

// Index ranks snippets for a query.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option configures index construction.
type Option func(*config)

type config struct {
	minFactRunes int
	stopwords    map[string]struct{}
	maxEntries   int
}

func defaultConfig() config {
	return config{minFactRunes: 20}
}

// WithMinFactRunes drops facts shorter than n runes. Negative values are ignored.
func WithMinFactRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minFactRunes = n
		}
	}
}

// WithStopwords excludes words from tokenization. Case-insensitive.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxEntries caps the number of indexed facts.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

type entry struct {
	docID  string
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg     config
	entries []entry
}

// New indexes docs in order.
func New(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	idx := &index{cfg: cfg}
	for _, d := range docs {
		for _, f := range Facts(d.Text) {
			if cfg.maxEntries > 0 && len(idx.entries) >= cfg.maxEntries {
				return idx
			}
			if cfg.minFactRunes > 0 && utf8.RuneCountInString(f) < cfg.minFactRunes {
				continue
			}
			toks := tokenize(f, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			idx.entries = append(idx.entries, entry{docID: d.ID, text: f, tokens: toks})
		}
	}
	return idx
}

func (i *index) Len() int { return len(i.entries) }

// TopK returns up to k best matches; k <= 0 means 3.
func (i *index) TopK(q string, k int) []Result {
	if len(i.entries) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	out := make([]Result, 0, k)
	for _, e := range i.entries {
		over := overlap(qTokens, e.tokens)
		if over == 0 {
			continue
		}
		union := len(qTokens) + len(e.tokens) - over
		out = append(out, Result{DocID: e.docID, Snippet: e.text, Score: float64(over) / float64(union)})
	}
	if len(out) == 0 {
		return nil
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		la, lb := utf8.RuneCountInString(out[a].Snippet), utf8.RuneCountInString(out[b].Snippet)
		if la != lb {
			return la < lb
		}
		return out[a].Snippet < out[b].Snippet
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
