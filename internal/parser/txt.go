package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/librotran/librotran/internal/book"
)

// Chapter-marker patterns for plain text. The first match on a line wins.
var txtChapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(chapter|cap[ií]tulo|chapitre|kapitel)\s+[\divxlc]+`),
	regexp.MustCompile(`(?i)^\s*(chapter|cap[ií]tulo)\s+\w+`),
	regexp.MustCompile(`(?i)^\s*[\divxlc]{1,6}[.\-)]\s`),
	regexp.MustCompile(`^\s*\*{3,}\s*$`),
	regexp.MustCompile(`^\s*-{3,}\s*$`),
	regexp.MustCompile(`^\s*#{1,3}\s+\w`),
}

const minSectionWords = 40

// TxtParser reads .txt and .md files.
//
// Section strategy: if the text carries recognizable chapter markers, split
// by chapters; otherwise split on blank-line blocks, fusing blocks under 40
// words into the next one. The title comes from the first line when it looks
// like a title, else from the file name.
type TxtParser struct{}

func NewTxtParser() *TxtParser { return &TxtParser{} }

func (p *TxtParser) Extensions() []string { return []string{".txt", ".md"} }

func (p *TxtParser) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func (p *TxtParser) Parse(path string) (book.RawBook, error) {
	text, err := readText(path)
	if err != nil {
		return book.RawBook{}, err
	}

	return book.RawBook{
		Title:      extractTitle(text, path),
		SourcePath: path,
		Sections:   splitSections(text),
	}, nil
}

// readText decodes UTF-8, falling back to Latin-1 for legacy files.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func extractTitle(text, path string) string {
	firstLine := text
	if idx := strings.IndexByte(strings.TrimSpace(text), '\n'); idx >= 0 {
		firstLine = strings.TrimSpace(text)[:idx]
	}
	firstLine = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(firstLine), "#"))

	words := strings.Fields(firstLine)
	if len(words) > 0 && len(words) <= 10 && !strings.HasSuffix(firstLine, ".") {
		return firstLine
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitSections(text string) []string {
	if hasChapterMarkers(text) {
		return splitByChapters(text)
	}
	return splitByParagraphs(text)
}

// hasChapterMarkers reports whether at least two lines look like chapter
// starts. One match alone is too weak a signal.
func hasChapterMarkers(text string) bool {
	matches := 0
	for _, line := range strings.Split(text, "\n") {
		if matchesChapter(line) {
			matches++
			if matches >= 2 {
				return true
			}
		}
	}
	return false
}

func matchesChapter(line string) bool {
	for _, p := range txtChapterPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// splitByChapters keeps the marker line at the start of its section.
func splitByChapters(text string) []string {
	var (
		sections     []string
		currentLines []string
	)

	flush := func() {
		if s := strings.TrimSpace(strings.Join(currentLines, "\n")); s != "" {
			sections = append(sections, s)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if matchesChapter(line) && len(currentLines) > 0 {
			flush()
			currentLines = []string{line}
		} else {
			currentLines = append(currentLines, line)
		}
	}
	flush()

	if len(sections) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return sections
}

var blankBlockRe = regexp.MustCompile(`\n{2,}`)

// splitByParagraphs is the fallback: blank-line blocks, with blocks under
// minSectionWords fused into the next one so sections stay meaningful.
func splitByParagraphs(text string) []string {
	var blocks []string
	for _, b := range blankBlockRe.Split(text, -1) {
		if t := strings.TrimSpace(b); t != "" {
			blocks = append(blocks, t)
		}
	}

	var (
		merged []string
		buffer string
	)
	for _, block := range blocks {
		if buffer != "" {
			buffer = buffer + "\n\n" + block
		} else {
			buffer = block
		}
		if len(strings.Fields(buffer)) >= minSectionWords {
			merged = append(merged, buffer)
			buffer = ""
		}
	}
	if buffer != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] += "\n\n" + buffer
		} else {
			merged = append(merged, buffer)
		}
	}

	if len(merged) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return merged
}
