package reconstructor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/librotran/librotran/internal/book"
)

type staticChunks []book.Chunk

func (s staticChunks) AllChunks(_ context.Context, _ int64) ([]book.Chunk, error) {
	return s, nil
}

func TestBuild_ResolvesChunkText(t *testing.T) {
	chunks := staticChunks{
		{Index: 0, Original: "uno", Translated: "one", Status: book.ChunkDone},
		{Index: 1, Original: "dos", Status: book.ChunkFlagged},
		{Index: 2, Original: "tres", Status: book.ChunkPending},
	}
	w := NewWriter(chunks, t.TempDir())

	path, err := w.Build(context.Background(), 1, "Mi Libro", "en")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)

	if !strings.Contains(text, "one") {
		t.Error("translated chunk missing")
	}
	if !strings.Contains(text, "[⚠ PENDING REVIEW]\ndos") {
		t.Errorf("flagged chunk should carry the review marker: %q", text)
	}
	if strings.Contains(text, "[⚠ PENDING REVIEW]\ntres") {
		t.Error("pending chunk must not carry the review marker")
	}
	if !strings.Contains(text, "tres") {
		t.Error("pending chunk should fall back to its original")
	}
}

func TestBuild_FlaggedWithTranslationKeepsTranslation(t *testing.T) {
	chunks := staticChunks{
		{Index: 0, Original: "uno", Translated: "low confidence one", Status: book.ChunkFlagged},
	}
	w := NewWriter(chunks, t.TempDir())

	path, err := w.Build(context.Background(), 1, "Libro", "en")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := os.ReadFile(path)
	if strings.Contains(string(out), "PENDING REVIEW") {
		t.Error("a flagged chunk that has a translation needs no marker")
	}
	if !strings.Contains(string(out), "low confidence one") {
		t.Error("translation missing")
	}
}

func TestBuild_SectionSeparators(t *testing.T) {
	chunks := staticChunks{
		{Index: 0, Translated: "chapter one text", SourceSection: 0, Status: book.ChunkDone},
		{Index: 1, Translated: "more of chapter one", SourceSection: 0, Status: book.ChunkDone},
		{Index: 2, Translated: "chapter two text", SourceSection: 1, Status: book.ChunkDone},
	}
	w := NewWriter(chunks, t.TempDir())

	path, err := w.Build(context.Background(), 1, "Libro", "en")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := os.ReadFile(path)
	text := string(out)

	within := "more of chapter one\n\nchapter two text"
	if strings.Contains(text, within) {
		t.Error("section change should widen the gap beyond a single blank line")
	}
	if !strings.Contains(text, "chapter one text\n\nmore of chapter one") {
		t.Errorf("chunks within a section keep a single blank line: %q", text)
	}
}

func TestBuild_NoChunks(t *testing.T) {
	w := NewWriter(staticChunks{}, t.TempDir())
	if _, err := w.Build(context.Background(), 1, "Libro", "en"); err == nil {
		t.Error("expected error for a book with no chunks")
	}
}

func TestBuild_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	w := NewWriter(staticChunks{{Index: 0, Translated: "text", Status: book.ChunkDone}}, dir)

	path, err := w.Build(context.Background(), 1, "Libro", "en")
	if err != nil {
		t.Fatalf("Build should create the output directory: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("output written to %q, want %q", filepath.Dir(path), dir)
	}
}

func TestOutputFilename(t *testing.T) {
	cases := []struct {
		title, lang, want string
	}{
		{"El Quijote", "en", "el_quijote_en.txt"},
		{"Cien Años de Soledad!", "EN", "cien_a_os_de_soledad_en.txt"},
		{"...", "fr", "book_fr.txt"},
		{"", "de", "book_de.txt"},
	}
	for _, c := range cases {
		if got := OutputFilename(c.title, c.lang); got != c.want {
			t.Errorf("OutputFilename(%q, %q) = %q, want %q", c.title, c.lang, got, c.want)
		}
	}
}
