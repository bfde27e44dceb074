// Package reconstructor assembles the output file from stored chunks. It
// knows nothing about models or parsers; it takes a book id and writes text.
package reconstructor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/librotran/librotran/internal/book"
	"github.com/librotran/librotran/internal/logging"
)

const reviewMarker = "[⚠ PENDING REVIEW]\n"

// ChunkSource is the slice of the store the writer reads from.
type ChunkSource interface {
	AllChunks(ctx context.Context, bookID int64) ([]book.Chunk, error)
}

type Writer struct {
	chunks    ChunkSource
	outputDir string
}

func NewWriter(chunks ChunkSource, outputDir string) *Writer {
	return &Writer{chunks: chunks, outputDir: outputDir}
}

// Build writes the assembled book to outputDir and returns the path.
// Flagged chunks without a translation carry a visible review marker in
// front of the original text so nothing is silently dropped.
func (w *Writer) Build(ctx context.Context, bookID int64, title, targetLang string) (string, error) {
	chunks, err := w.chunks.AllChunks(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("no chunks for book %d", bookID)
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(w.outputDir, OutputFilename(title, targetLang))

	var parts []string
	prevSection := -1
	for i, c := range chunks { // already ordered by chunk index
		// Extra blank gap between source sections keeps the book's shape.
		if i > 0 && c.SourceSection != prevSection {
			parts = append(parts, "\n\n")
		}
		parts = append(parts, resolveChunkText(c))
		prevSection = c.SourceSection
	}

	if err := os.WriteFile(outputPath, []byte(strings.Join(parts, "\n\n")), 0o644); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}

	log := logging.With("reconstructor")
	log.Info().Str("path", outputPath).Msg("output written")
	return outputPath, nil
}

// resolveChunkText prefers the translation; a flagged chunk without one
// falls back to the marked original, anything else to the bare original.
func resolveChunkText(c book.Chunk) string {
	if c.Translated != "" {
		return c.Translated
	}
	if c.Status == book.ChunkFlagged {
		return reviewMarker + c.Original
	}
	return c.Original
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// OutputFilename derives "{slug}_{lang}.txt" from the book title.
func OutputFilename(title, targetLang string) string {
	slug := slugCleanRe.ReplaceAllString(strings.ToLower(title), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "book"
	}
	return fmt.Sprintf("%s_%s.txt", slug, strings.ToLower(targetLang))
}
