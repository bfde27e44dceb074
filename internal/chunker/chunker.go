package chunker

import "github.com/librotran/librotran/internal/book"

// Chunker composes the boundary detector and the normalizer into the single
// entry point the orchestrator uses: document in, ordered chunks out.
type Chunker struct {
	detector   *BoundaryDetector
	normalizer *Normalizer
}

// New builds a Chunker. A nil estimator gets the word-count default.
func New(cfg Config, est Estimator) *Chunker {
	if est == nil {
		est = NewWordCountEstimator()
	}
	return &Chunker{
		detector:   NewBoundaryDetector(cfg, est),
		normalizer: NewNormalizer(cfg, est),
	}
}

// Chunk runs both passes over every section of the document. Segments from
// all sections are normalized together so fusion can cross section gaps, and
// the resulting chunks carry a contiguous zero-based index across the whole
// book plus their originating section for reconstruction ordering.
func (c *Chunker) Chunk(raw book.RawBook) []book.Chunk {
	var segments []Segment
	for i, section := range raw.Sections {
		segments = append(segments, c.detector.Detect(section, i)...)
	}
	return c.normalizer.Normalize(segments)
}
