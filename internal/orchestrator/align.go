package orchestrator

import (
	"math"
	"strings"
	"unicode"

	"github.com/librotran/librotran/internal/book"
)

// Alignment for fix mode: the existing translation has no chunk boundaries
// of its own, so it is split proportionally to the reference chunk lengths
// and each cut is snapped to a nearby natural break.

const snapWindow = 120

func alignTranslationByReference(referenceChunks []book.Chunk, translationSections []string) []string {
	if len(referenceChunks) == 0 {
		return nil
	}

	lengths := make([]int, len(referenceChunks))
	for i, c := range referenceChunks {
		lengths[i] = len([]rune(c.Original))
		if lengths[i] < 1 {
			lengths[i] = 1
		}
	}

	translationText := strings.Join(translationSections, "\n\n")
	return splitByReferenceLengths(translationText, lengths)
}

func splitByReferenceLengths(text string, referenceLengths []int) []string {
	if len(referenceLengths) == 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return make([]string, len(referenceLengths))
	}

	totalReference := 0
	for _, l := range referenceLengths {
		totalReference += l
	}
	totalChars := len(runes)

	segments := make([]string, 0, len(referenceLengths))
	start := 0
	consumed := 0

	for _, length := range referenceLengths[:len(referenceLengths)-1] {
		consumed += length
		target := int(math.Round(float64(consumed) / float64(totalReference) * float64(totalChars)))
		splitIdx := snapSplitIndex(runes, target, start)
		segments = append(segments, strings.TrimSpace(string(runes[start:splitIdx])))
		start = splitIdx
	}

	segments = append(segments, strings.TrimSpace(string(runes[start:])))
	return segments
}

// snapSplitIndex moves the proportional cut to the closest natural break
// within the window, preferring the left side on ties.
func snapSplitIndex(runes []rune, target, start int) int {
	if start >= len(runes) {
		return len(runes)
	}

	minIdx := start + 1
	maxIdx := len(runes) - 1
	if minIdx > maxIdx {
		return len(runes)
	}

	if target < minIdx {
		target = minIdx
	}
	if target > maxIdx {
		target = maxIdx
	}

	for radius := 0; radius <= snapWindow; radius++ {
		if left := target - radius; left >= minIdx && isNaturalBreak(runes, left) {
			return left
		}
		if right := target + radius; right <= maxIdx && isNaturalBreak(runes, right) {
			return right
		}
	}
	return target
}

// isNaturalBreak accepts a position right after a newline, or right after
// sentence punctuation followed by whitespace.
func isNaturalBreak(runes []rune, idx int) bool {
	var prev, curr rune
	if idx > 0 {
		prev = runes[idx-1]
	}
	if idx < len(runes) {
		curr = runes[idx]
	}

	if prev == '\n' {
		return true
	}
	if strings.ContainsRune(".?!;:", prev) && (unicode.IsSpace(curr) || curr == '\n') {
		return true
	}
	return false
}
