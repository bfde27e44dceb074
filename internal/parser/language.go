package parser

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// detectSampleRunes bounds how much text feeds the detector. A book section
// can be a whole chapter; the opening lines are plenty for a confident call.
const detectSampleRunes = 4000

// LanguageDetector wraps lingua. Building it loads the language models, so
// callers should construct one and reuse it.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

func NewLanguageDetector() *LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &LanguageDetector{detector: detector}
}

func (d *LanguageDetector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	if runes := []rune(text); len(runes) > detectSampleRunes {
		text = string(runes[:detectSampleRunes])
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the ISO 639-1 code of the detected language in the
// lowercase form the rest of the pipeline uses for language flags.
func (d *LanguageDetector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
