package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/librotran/librotran/internal/book"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBook(t *testing.T, s *Store, hash string) int64 {
	t.Helper()
	id, err := s.CreateBook(context.Background(), "El Mar", hash, book.ModeTranslate, "es", "en")
	if err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	return id
}

func TestCreateBook_AndLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	byHash, err := s.BookByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("BookByHash failed: %v", err)
	}
	if byHash.ID != id || byHash.Title != "El Mar" || byHash.Status != book.StatusInProgress {
		t.Errorf("unexpected book: %+v", byHash)
	}
	if byHash.Mode != book.ModeTranslate {
		t.Errorf("Mode = %s", byHash.Mode)
	}

	byID, err := s.BookByID(ctx, id)
	if err != nil {
		t.Fatalf("BookByID failed: %v", err)
	}
	if byID.FileHash != "hash-1" {
		t.Errorf("FileHash = %q", byID.FileHash)
	}
}

func TestBookByHash_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.BookByHash(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBookStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if err := s.UpdateBookStatus(ctx, id, book.StatusDone); err != nil {
		t.Fatalf("UpdateBookStatus failed: %v", err)
	}
	b, _ := s.BookByID(ctx, id)
	if b.Status != book.StatusDone {
		t.Errorf("Status = %s", b.Status)
	}
}

func testChunks(n int) []book.Chunk {
	chunks := make([]book.Chunk, n)
	for i := range chunks {
		chunks[i] = book.Chunk{
			Index:         i,
			Original:      "texto original",
			TokenEstimate: 100,
			SourceSection: 0,
			Status:        book.ChunkPending,
		}
	}
	return chunks
}

func TestSaveChunks_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if err := s.SaveChunks(ctx, id, testChunks(3)); err != nil {
		t.Fatalf("SaveChunks failed: %v", err)
	}
	// A resumed run re-ingests the same chunks; nothing may duplicate.
	if err := s.SaveChunks(ctx, id, testChunks(3)); err != nil {
		t.Fatalf("second SaveChunks failed: %v", err)
	}

	all, err := s.AllChunks(ctx, id)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("chunks = %d, want 3", len(all))
	}
}

func TestSaveChunks_ReingestKeepsProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if err := s.SaveChunks(ctx, id, testChunks(2)); err != nil {
		t.Fatal(err)
	}
	all, _ := s.AllChunks(ctx, id)
	if err := s.UpdateChunkTranslation(ctx, all[0].ID, "translated text", "model-a", 0.9, book.ChunkDone); err != nil {
		t.Fatalf("UpdateChunkTranslation failed: %v", err)
	}

	// Second ingest must not reset the finished chunk.
	if err := s.SaveChunks(ctx, id, testChunks(2)); err != nil {
		t.Fatal(err)
	}
	all, _ = s.AllChunks(ctx, id)
	if all[0].Status != book.ChunkDone || all[0].Translated != "translated text" {
		t.Errorf("progress lost on re-ingest: %+v", all[0])
	}
}

func TestPendingChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if err := s.SaveChunks(ctx, id, testChunks(3)); err != nil {
		t.Fatal(err)
	}
	all, _ := s.AllChunks(ctx, id)
	if err := s.UpdateChunkTranslation(ctx, all[1].ID, "done", "model-a", 0.95, book.ChunkDone); err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingChunks(ctx, id)
	if err != nil {
		t.Fatalf("PendingChunks failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Index != 0 || pending[1].Index != 2 {
		t.Errorf("pending order wrong: %d, %d", pending[0].Index, pending[1].Index)
	}
}

func TestFlagChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if err := s.SaveChunks(ctx, id, testChunks(1)); err != nil {
		t.Fatal(err)
	}
	all, _ := s.AllChunks(ctx, id)
	if err := s.FlagChunk(ctx, all[0].ID, []string{"translation_error: timeout"}); err != nil {
		t.Fatalf("FlagChunk failed: %v", err)
	}

	all, _ = s.AllChunks(ctx, id)
	if all[0].Status != book.ChunkFlagged {
		t.Errorf("Status = %s, want flagged", all[0].Status)
	}
	if len(all[0].Flags) != 1 || all[0].Flags[0] != "translation_error: timeout" {
		t.Errorf("Flags = %v", all[0].Flags)
	}
}

func TestTokenUsage_UpsertAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddTokenUsage(ctx, "model-a", 100); err != nil {
		t.Fatalf("AddTokenUsage failed: %v", err)
	}
	if err := s.AddTokenUsage(ctx, "model-a", 250); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTokenUsage(ctx, "model-b", 40); err != nil {
		t.Fatal(err)
	}

	used, err := s.TokenUsageToday(ctx, "model-a")
	if err != nil {
		t.Fatalf("TokenUsageToday failed: %v", err)
	}
	if used != 350 {
		t.Errorf("model-a usage = %d, want 350", used)
	}
	if used, _ := s.TokenUsageToday(ctx, "model-b"); used != 40 {
		t.Errorf("model-b usage = %d, want 40", used)
	}
	if used, _ := s.TokenUsageToday(ctx, "model-c"); used != 0 {
		t.Errorf("unknown model usage = %d, want 0", used)
	}
}

func TestBibleVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	v1, err := s.SaveBible(ctx, id, `{"voice":"v1"}`)
	if err != nil {
		t.Fatalf("SaveBible failed: %v", err)
	}
	v2, err := s.SaveBible(ctx, id, `{"voice":"v2"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != 1 || v2 != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", v1, v2)
	}

	content, version, err := s.LatestBible(ctx, id)
	if err != nil {
		t.Fatalf("LatestBible failed: %v", err)
	}
	if version != 2 || content != `{"voice":"v2"}` {
		t.Errorf("latest = v%d %q", version, content)
	}
}

func TestLatestBible_NotFound(t *testing.T) {
	s := newTestStore(t)
	id := seedBook(t, s, "hash-1")

	if _, _, err := s.LatestBible(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a book with no bible, got %v", err)
	}
}

func TestRollbackBible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	for _, v := range []string{`{"voice":"v1"}`, `{"voice":"v2"}`, `{"voice":"v3"}`} {
		if _, err := s.SaveBible(ctx, id, v); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.RollbackBible(ctx, id, 1); err != nil {
		t.Fatalf("RollbackBible failed: %v", err)
	}

	// Rollback re-points current by copying v1 to a new head version.
	content, version, err := s.LatestBible(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if version != 4 || content != `{"voice":"v1"}` {
		t.Errorf("after rollback latest = v%d %q, want v4 with v1 content", version, content)
	}

	// The intermediate versions must survive the rollback.
	for v, want := range map[int]string{1: `{"voice":"v1"}`, 2: `{"voice":"v2"}`, 3: `{"voice":"v3"}`} {
		got, err := s.BibleVersion(ctx, id, v)
		if err != nil {
			t.Fatalf("BibleVersion(%d) failed: %v", v, err)
		}
		if got != want {
			t.Errorf("version %d = %q, want %q", v, got, want)
		}
	}
}

func TestRollbackBible_MissingVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "hash-1")

	if _, err := s.SaveBible(ctx, id, `{"voice":"v1"}`); err != nil {
		t.Fatal(err)
	}
	if err := s.RollbackBible(ctx, id, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing version, got %v", err)
	}
}

func TestCreateBook_DuplicateHash(t *testing.T) {
	s := newTestStore(t)
	seedBook(t, s, "hash-1")

	if _, err := s.CreateBook(context.Background(), "Otro", "hash-1", book.ModeTranslate, "es", "en"); err == nil {
		t.Error("expected unique-hash violation on duplicate create")
	}
}
