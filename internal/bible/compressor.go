package bible

import (
	"strings"
)

const (
	compressedRecentDecisions = 8
	compressedLastSceneChars  = 320
)

// Compressor selects the slice of a book bible that is relevant to one
// chunk, so prompts stay small even when the full bible has grown to its
// caps. Selection is deterministic: the same bible and chunk always produce
// the same compressed view.
type Compressor struct {
	recentDecisions int
	lastSceneChars  int
}

func NewCompressor() *Compressor {
	return &Compressor{
		recentDecisions: compressedRecentDecisions,
		lastSceneChars:  compressedLastSceneChars,
	}
}

// Compress returns a reduced copy of b scoped to chunkText. Glossary terms
// and character names are kept only when they actually appear in the chunk,
// matched case-insensitively. Voice is always kept; decisions keep only the
// most recent entries.
func (c *Compressor) Compress(b *Bible, chunkText string) *Bible {
	if b == nil || b.IsEmpty() {
		return Empty()
	}

	lowered := strings.ToLower(chunkText)

	out := Empty()
	out.Voice = b.Voice
	out.LastScene = truncateText(b.LastScene, c.lastSceneChars)

	if len(b.Decisions) > 0 {
		start := len(b.Decisions) - c.recentDecisions
		if start < 0 {
			start = 0
		}
		out.Decisions = append(out.Decisions, b.Decisions[start:]...)
	}

	for term, translation := range b.Glossary {
		if strings.Contains(lowered, strings.ToLower(term)) {
			out.Glossary[term] = translation
		}
	}
	for name, description := range b.Characters {
		if strings.Contains(lowered, strings.ToLower(name)) {
			out.Characters[name] = description
		}
	}
	return out
}

// CompressionRatio reports compressed size over full size measured in
// serialized bytes, 1.0 when the full bible is empty.
func (c *Compressor) CompressionRatio(full, compressed *Bible) float64 {
	fullJSON, err := full.ToJSON()
	if err != nil || len(fullJSON) == 0 {
		return 1.0
	}
	compressedJSON, err := compressed.ToJSON()
	if err != nil {
		return 1.0
	}
	return float64(len(compressedJSON)) / float64(len(fullJSON))
}
