package chunker

import "strings"

// BoundaryDetector scans a section line by line and emits semantic segments.
// It knows nothing about token budgets; that is the Normalizer's job.
type BoundaryDetector struct {
	cfg Config
	est Estimator
}

func NewBoundaryDetector(cfg Config, est Estimator) *BoundaryDetector {
	return &BoundaryDetector{cfg: cfg, est: est}
}

// Detect returns the ordered segments of one section. Empty or
// whitespace-only input yields no segments. The segment being accumulated
// when input ends is always flushed, even without a trailing boundary.
func (d *BoundaryDetector) Detect(text string, sourceSection int) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	var (
		segments     []Segment
		currentLines []string
		currentStart int
		currentType  = BoundaryParagraph
		charPosition int
	)

	flush := func() {
		segText := strings.TrimSpace(strings.Join(currentLines, ""))
		if segText != "" {
			segments = append(segments, Segment{
				Text:          segText,
				Boundary:      currentType,
				SourceSection: sourceSection,
				Position:      currentStart,
				TokenEstimate: d.est.Estimate(segText),
			})
		}
	}

	for i, line := range lines {
		boundary, ok := d.classifyLine(line, lines, i)

		if ok {
			if len(currentLines) > 0 {
				flush()
				currentLines = []string{line}
				currentStart = charPosition
				currentType = boundary
			} else {
				// First line of the section already marks a boundary.
				currentLines = append(currentLines, line)
				currentType = boundary
			}
		} else {
			currentLines = append(currentLines, line)
		}

		charPosition += len(line)
	}

	if len(currentLines) > 0 {
		flush()
	}

	return segments
}

// classifyLine reports whether the line opens a new segment and with which
// boundary type. Families are checked in precedence order: chapter > scene >
// pov > paragraph > sentence.
func (d *BoundaryDetector) classifyLine(line string, all []string, index int) (BoundaryType, bool) {
	stripped := strings.TrimSpace(line)

	// Runs of blank lines collapse into a single scene break: only a blank
	// line whose predecessor is also blank opens one, and the empty segments
	// that longer runs would produce are filtered out at flush time.
	if stripped == "" {
		if index > 0 && index < len(all)-1 && strings.TrimSpace(all[index-1]) == "" {
			return BoundaryScene, true
		}
		return 0, false
	}

	for _, p := range d.cfg.ChapterPatterns {
		if p.MatchString(stripped) {
			return BoundaryChapter, true
		}
	}
	for _, p := range d.cfg.ScenePatterns {
		if p.MatchString(stripped) {
			return BoundaryScene, true
		}
	}
	for _, p := range d.cfg.POVPatterns {
		if p.MatchString(stripped) {
			return BoundaryPOV, true
		}
	}
	for _, p := range d.cfg.ParagraphPatterns {
		if p.MatchString(stripped) {
			return BoundaryParagraph, true
		}
	}
	for _, p := range d.cfg.SentencePatterns {
		if p.MatchString(stripped) {
			return BoundarySentence, true
		}
	}

	return 0, false
}
