package orchestrator

import (
	"strings"
	"testing"

	"github.com/librotran/librotran/internal/book"
)

func TestAlignTranslationByReference_ProportionalSplit(t *testing.T) {
	refs := []book.Chunk{
		{Index: 0, Original: strings.Repeat("a", 100)},
		{Index: 1, Original: strings.Repeat("b", 100)},
	}
	first := strings.Repeat("x", 95) + ". "
	second := strings.Repeat("y", 95)
	got := alignTranslationByReference(refs, []string{first + second})

	if len(got) != 2 {
		t.Fatalf("segments = %d, want 2", len(got))
	}
	if !strings.HasPrefix(got[0], "x") || !strings.HasSuffix(got[0], ".") {
		t.Errorf("first segment should snap to the sentence end: %q", got[0])
	}
	if !strings.HasPrefix(got[1], "y") {
		t.Errorf("second segment = %q", got[1])
	}
}

func TestAlignTranslationByReference_Empty(t *testing.T) {
	if got := alignTranslationByReference(nil, []string{"text"}); got != nil {
		t.Errorf("no reference chunks should yield nil, got %v", got)
	}

	refs := []book.Chunk{{Index: 0, Original: "abc"}, {Index: 1, Original: "def"}}
	got := alignTranslationByReference(refs, nil)
	if len(got) != 2 || got[0] != "" || got[1] != "" {
		t.Errorf("empty translation should yield empty segments per reference: %v", got)
	}
}

func TestSplitByReferenceLengths_LastTakesRest(t *testing.T) {
	text := "Uno dos tres. Cuatro cinco seis. Siete ocho nueve."
	got := splitByReferenceLengths(text, []int{10, 10, 100})

	if len(got) != 3 {
		t.Fatalf("segments = %d, want 3", len(got))
	}
	joined := strings.Join(got, " ")
	for _, w := range strings.Fields(text) {
		if !strings.Contains(joined, w) {
			t.Errorf("word %q lost in split", w)
		}
	}
	if !strings.HasSuffix(got[2], "nueve.") {
		t.Errorf("last segment should absorb the remainder: %q", got[2])
	}
}

func TestSnapSplitIndex_PrefersNaturalBreak(t *testing.T) {
	runes := []rune("First sentence. Second sentence here")
	// Proportional target lands mid-word; position 15, right after the
	// period, is the natural break inside the window.
	got := snapSplitIndex(runes, 20, 0)
	if got != 15 {
		t.Errorf("snap index = %d, want 15", got)
	}
}

func TestSnapSplitIndex_Clamped(t *testing.T) {
	runes := []rune("short")
	if got := snapSplitIndex(runes, 50, 0); got < 1 || got > len(runes) {
		t.Errorf("snap index %d out of range", got)
	}
	if got := snapSplitIndex(runes, 2, 10); got != len(runes) {
		t.Errorf("start beyond text should return len, got %d", got)
	}
}

func TestIsNaturalBreak(t *testing.T) {
	runes := []rune("end.\nNew line and more. Space")
	if !isNaturalBreak(runes, 5) {
		t.Error("position after newline should be a break")
	}
	if !isNaturalBreak(runes, 23) {
		t.Error("position after sentence punctuation and before space should be a break")
	}
	if isNaturalBreak(runes, 7) {
		t.Error("mid-word position is not a break")
	}
}
