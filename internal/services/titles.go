package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"

	defaultTitleMaxLen = 60
	maxTitleWords      = 8
)

// Titler tidies user-supplied chat titles and derives a title from the first
// prompt of a chat. The zero value cases words in English and clips titles
// to 60 runes.
type Titler struct {
	Locale language.Tag
	MaxLen int
}

func (t Titler) locale() language.Tag {
	if t.Locale == language.Und {
		return language.English
	}
	return t.Locale
}

func (t Titler) clip(s string) string {
	max := t.MaxLen
	if max <= 0 {
		max = defaultTitleMaxLen
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// Tidy trims s, collapses inner whitespace and clips it. It returns "" for a
// blank title; callers pick the fallback.
func (t Titler) Tidy(s string) string {
	return t.clip(whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " "))
}

// FromPrompt keeps the first words of prompt that are not stop words,
// title-cased for the configured locale. Prompts made only of stop words or
// punctuation give "".
func (t Titler) FromPrompt(prompt string) string {
	words := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	caser := cases.Title(t.locale())
	kept := make([]string, 0, maxTitleWords)
	for _, w := range words {
		if _, stop := titleStopWords[w]; stop {
			continue
		}
		kept = append(kept, caser.String(w))
		if len(kept) == maxTitleWords {
			break
		}
	}
	return t.clip(strings.Join(kept, " "))
}

// isPlaceholderTitle reports whether title was never chosen by the student.
func isPlaceholderTitle(title string) bool {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "", strings.ToLower(defaultTitleNew), strings.ToLower(defaultTitleUntitled):
		return true
	}
	return false
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	// letters with optional trailing digits, e.g. "algebra2"
	titleWordRE = regexp.MustCompile(`\p{L}+\p{N}*`)
)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"me": {}, "my": {}, "i": {}, "can": {}, "you": {}, "please": {}, "what": {}, "how": {},
}
