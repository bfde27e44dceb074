package chunker

import (
	"strings"
	"unicode"

	"github.com/librotran/librotran/internal/book"
)

// Normalizer is the second pass: it takes semantic segments and fits them to
// the configured token range, producing the final chunk sequence.
type Normalizer struct {
	cfg Config
	est Estimator
}

func NewNormalizer(cfg Config, est Estimator) *Normalizer {
	return &Normalizer{cfg: cfg, est: est}
}

// Normalize expands oversized segments, fuses undersized neighbours and
// re-indexes the result into one contiguous zero-based chunk sequence.
func (n *Normalizer) Normalize(segments []Segment) []book.Chunk {
	if len(segments) == 0 {
		return nil
	}
	expanded := n.expandLarge(segments)
	merged := n.mergeSmall(expanded)
	return n.toChunks(merged)
}

func (n *Normalizer) expandLarge(segments []Segment) []Segment {
	var result []Segment
	for _, seg := range segments {
		if seg.TokenEstimate <= n.cfg.MaxTokens {
			result = append(result, seg)
		} else {
			result = append(result, n.splitSegment(seg)...)
		}
	}
	return result
}

// splitSegment divides an oversized segment at paragraph boundaries. A
// paragraph that alone exceeds the bound drops to sentence splitting. A
// single sentence is never broken, whatever its size.
func (n *Normalizer) splitSegment(seg Segment) []Segment {
	var paragraphs []string
	for _, p := range strings.Split(seg.Text, "\n\n") {
		if t := strings.TrimSpace(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}

	if len(paragraphs) <= 1 {
		return n.splitBySentences(seg)
	}

	var (
		result        []Segment
		currentParts  []string
		currentTokens int
	)

	flush := func() {
		if len(currentParts) > 0 {
			result = append(result, n.subSegment(strings.Join(currentParts, "\n\n"), seg))
			currentParts = nil
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		paraTokens := n.est.Estimate(para)

		if paraTokens > n.cfg.MaxTokens {
			flush()
			result = append(result, n.splitBySentences(n.subSegment(para, seg))...)
			continue
		}

		if currentTokens+paraTokens > n.cfg.MaxTokens && len(currentParts) > 0 {
			flush()
		}
		currentParts = append(currentParts, para)
		currentTokens += paraTokens
	}
	flush()

	return result
}

func (n *Normalizer) splitBySentences(seg Segment) []Segment {
	sentences := splitSentences(seg.Text)

	var (
		result        []Segment
		currentParts  []string
		currentTokens int
	)

	flush := func() {
		if len(currentParts) > 0 {
			result = append(result, n.subSegment(strings.Join(currentParts, " "), seg))
			currentParts = nil
			currentTokens = 0
		}
	}

	for _, sentence := range sentences {
		sentenceTokens := n.est.Estimate(sentence)

		// A lone sentence over the bound is kept intact.
		if sentenceTokens > n.cfg.MaxTokens {
			flush()
			result = append(result, n.subSegment(sentence, seg))
			continue
		}

		if currentTokens+sentenceTokens > n.cfg.MaxTokens && len(currentParts) > 0 {
			flush()
		}
		currentParts = append(currentParts, sentence)
		currentTokens += sentenceTokens
	}
	flush()

	return result
}

// mergeSmall fuses a segment into its predecessor only when the predecessor
// is under MinTokens, the combination stays within MaxTokens and neither
// side is a chapter boundary. Chapters are never merged across.
func (n *Normalizer) mergeSmall(segments []Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}

	result := []Segment{segments[0]}

	for _, current := range segments[1:] {
		previous := result[len(result)-1]
		combined := previous.TokenEstimate + current.TokenEstimate

		canMerge := previous.TokenEstimate < n.cfg.MinTokens &&
			combined <= n.cfg.MaxTokens &&
			current.Boundary != BoundaryChapter &&
			previous.Boundary != BoundaryChapter

		if canMerge {
			mergedText := previous.Text + "\n\n" + current.Text
			result[len(result)-1] = Segment{
				Text:          mergedText,
				Boundary:      previous.Boundary,
				SourceSection: previous.SourceSection,
				Position:      previous.Position,
				TokenEstimate: n.est.Estimate(mergedText),
			}
		} else {
			result = append(result, current)
		}
	}

	return result
}

func (n *Normalizer) toChunks(segments []Segment) []book.Chunk {
	chunks := make([]book.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, book.Chunk{
			Index:         i,
			Original:      seg.Text,
			TokenEstimate: seg.TokenEstimate,
			SourceSection: seg.SourceSection,
			Status:        book.ChunkPending,
		})
	}
	return chunks
}

func (n *Normalizer) subSegment(text string, parent Segment) Segment {
	return Segment{
		Text:          text,
		Boundary:      BoundaryParagraph,
		SourceSection: parent.SourceSection,
		Position:      parent.Position,
		TokenEstimate: n.est.Estimate(text),
	}
}

// splitSentences breaks text after sentence-ending punctuation followed by
// whitespace and an uppercase letter, opening quote or dash. Abbreviation
// periods mid-sentence stay attached because the next rune is lowercase.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		sentences []string
		start     int
	)

	for i := 0; i < len(runes)-1; i++ {
		if !isSentenceEnd(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// Consume the whitespace run and peek at what follows.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j >= len(runes) || !isSentenceOpener(runes[j]) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = j
		i = j - 1
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isSentenceOpener(r rune) bool {
	if unicode.IsUpper(r) {
		return true
	}
	switch r {
	case '"', '“', '”', '«', '—', '¿', '¡':
		return true
	}
	return false
}
