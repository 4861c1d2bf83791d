// Package langdetect tags article content with a language code.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Undetermined is stored when no language could be detected.
const Undetermined = "und"

const minLetters = 6

// Lingua detects languages with a lazily built lingua detector.
type Lingua struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func NewLingua() *Lingua {
	return &Lingua{}
}

// Detect returns the ISO 639-1 code of text or "" when unsure.
func (l *Lingua) Detect(text string) string {
	sample := strings.TrimSpace(text)
	if countLetters(sample) < minLetters {
		return ""
	}

	detected, exists := l.get().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := primarySubtag(detected.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func (l *Lingua) get() lingua.LanguageDetector {
	l.once.Do(func() {
		l.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return l.detector
}

// Tag returns a normalized code for the stored language column.
func Tag(code string) string {
	normalized := primarySubtag(code)
	if normalized == "" {
		return Undetermined
	}
	return normalized
}

func countLetters(value string) int {
	count := 0
	for _, r := range value {
		if unicode.IsLetter(r) {
			count++
		}
	}
	return count
}

// primarySubtag lowercases a tag such as "en_US" or "de-AT" and keeps the
// primary subtag. Anything that is not ASCII letters yields "".
func primarySubtag(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if cut := strings.IndexAny(tag, "-_"); cut >= 0 {
		tag = tag[:cut]
	}
	if tag == "" {
		return ""
	}
	for _, r := range tag {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return tag
}
