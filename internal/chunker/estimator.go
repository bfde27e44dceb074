package chunker

import "strings"

// Estimator is the pluggable token-counting capability. The detector and
// normalizer depend only on this interface, so a precise tokenizer can be
// swapped in without touching the chunking logic.
type Estimator interface {
	Estimate(text string) int
}

// wordsPerToken is empirically calibrated for Spanish and English prose.
// CJK text needs its own factor (roughly 1-2 tokens per character).
const defaultTokenMultiplier = 1.3

// WordCountEstimator is a fast, dependency-free estimator. Typical error
// is under 10%, which is enough for sizing chunks.
type WordCountEstimator struct {
	Multiplier float64
}

func NewWordCountEstimator() WordCountEstimator {
	return WordCountEstimator{Multiplier: defaultTokenMultiplier}
}

func (e WordCountEstimator) Estimate(text string) int {
	m := e.Multiplier
	if m <= 0 {
		m = defaultTokenMultiplier
	}
	return int(float64(len(strings.Fields(text))) * m)
}
