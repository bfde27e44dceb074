// Package store is the only interface between the rest of the application
// and SQLite. Every write is transactional per call; nothing here keeps
// in-memory state beyond the connection pool.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/librotran/librotran/internal/book"
	"github.com/librotran/librotran/internal/logging"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT    NOT NULL,
	source_lang TEXT,
	target_lang TEXT,
	mode        TEXT    NOT NULL DEFAULT 'translate',
	status      TEXT    NOT NULL DEFAULT 'in_progress',
	file_hash   TEXT    NOT NULL UNIQUE,
	created_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id         INTEGER NOT NULL,
	chunk_index     INTEGER NOT NULL,
	original        TEXT    NOT NULL,
	translated      TEXT,
	token_estimated INTEGER,
	source_section  INTEGER,
	model_used      TEXT,
	confidence      REAL,
	status          TEXT    NOT NULL DEFAULT 'pending',
	flags           TEXT             DEFAULT '[]',
	FOREIGN KEY (book_id) REFERENCES books(id),
	UNIQUE (book_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS bible (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id      INTEGER NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	content_json TEXT    NOT NULL,
	updated_at   TEXT    NOT NULL,
	FOREIGN KEY (book_id) REFERENCES books(id)
);

CREATE TABLE IF NOT EXISTS quota_usage (
	model       TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (model, date)
);
`

type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the database at dbPath. The parent
// directory is created on demand so a fresh install works without setup.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite ships with foreign keys off. WAL helps concurrent readers.
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Books ---

// CreateBook inserts a new book and returns its id. A duplicate file hash
// fails here; the caller resolves the existing row instead.
func (s *Store) CreateBook(ctx context.Context, title, fileHash string, mode book.Mode, sourceLang, targetLang string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, source_lang, target_lang, mode, status, file_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, sourceLang, targetLang, string(mode), string(book.StatusInProgress),
		fileHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create book: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) BookByHash(ctx context.Context, fileHash string) (*book.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, source_lang, target_lang, mode, status, file_hash, created_at FROM books WHERE file_hash = ?`, fileHash)
	return scanBook(row)
}

func (s *Store) BookByID(ctx context.Context, bookID int64) (*book.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, source_lang, target_lang, mode, status, file_hash, created_at FROM books WHERE id = ?`, bookID)
	return scanBook(row)
}

func (s *Store) UpdateBookStatus(ctx context.Context, bookID int64, status book.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE books SET status = ? WHERE id = ?`, string(status), bookID)
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	return nil
}

// --- Chunks ---

// SaveChunks bulk-inserts chunks with INSERT OR IGNORE so a re-run after an
// interrupted ingest does not trip over the (book_id, chunk_index) UNIQUE.
func (s *Store) SaveChunks(ctx context.Context, bookID int64, chunks []book.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks
		    (book_id, chunk_index, original, token_estimated, source_section, status, flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			bookID, c.Index, c.Original, c.TokenEstimate, c.SourceSection,
			string(book.ChunkPending), "[]",
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

func (s *Store) PendingChunks(ctx context.Context, bookID int64) ([]book.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, chunk_index, original, translated, token_estimated,
		        source_section, model_used, confidence, status, flags
		 FROM chunks
		 WHERE book_id = ? AND status = ?
		 ORDER BY chunk_index ASC`,
		bookID, string(book.ChunkPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *Store) AllChunks(ctx context.Context, bookID int64) ([]book.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, chunk_index, original, translated, token_estimated,
		        source_section, model_used, confidence, status, flags
		 FROM chunks
		 WHERE book_id = ?
		 ORDER BY chunk_index ASC`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateChunkTranslation stores translation, model, confidence and status in
// one statement so a crash never leaves a half-written chunk.
func (s *Store) UpdateChunkTranslation(ctx context.Context, chunkID int64, translated, modelUsed string, confidence float64, status book.ChunkStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET translated = ?, model_used = ?, confidence = ?, status = ? WHERE id = ?`,
		translated, modelUsed, confidence, string(status), chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk translation: %w", err)
	}
	return nil
}

// FlagChunk records flags and moves the chunk to FLAGGED.
func (s *Store) FlagChunk(ctx context.Context, chunkID int64, flags []string) error {
	encoded, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE chunks SET flags = ?, status = ? WHERE id = ?`,
		string(encoded), string(book.ChunkFlagged), chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to flag chunk: %w", err)
	}
	return nil
}

// --- Quota ---

// AddTokenUsage upserts today's counter for a model.
func (s *Store) AddTokenUsage(ctx context.Context, model string, tokens int) error {
	today := time.Now().Format("2006-01-02")
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_usage (model, date, tokens_used)
		 VALUES (?, ?, ?)
		 ON CONFLICT (model, date)
		 DO UPDATE SET tokens_used = tokens_used + excluded.tokens_used`,
		model, today, tokens,
	)
	if err != nil {
		return fmt.Errorf("failed to add token usage: %w", err)
	}
	return nil
}

func (s *Store) TokenUsageToday(ctx context.Context, model string) (int, error) {
	today := time.Now().Format("2006-01-02")
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens_used FROM quota_usage WHERE model = ? AND date = ?`,
		model, today,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query token usage: %w", err)
	}
	return used, nil
}

// --- Bible ---

// SaveBible inserts a new immutable version of the serialized bible and
// returns the version number it was assigned.
func (s *Store) SaveBible(ctx context.Context, bookID int64, contentJSON string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM bible WHERE book_id = ?`, bookID,
	).Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("failed to query bible version: %w", err)
	}
	next := int(maxVersion.Int64) + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bible (book_id, version, content_json, updated_at) VALUES (?, ?, ?, ?)`,
		bookID, next, contentJSON, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("failed to save bible: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// LatestBible returns the most recent serialized bible for a book, or
// ErrNotFound for a book that has none yet.
func (s *Store) LatestBible(ctx context.Context, bookID int64) (string, int, error) {
	var contentJSON string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT content_json, version FROM bible
		 WHERE book_id = ?
		 ORDER BY version DESC
		 LIMIT 1`,
		bookID,
	).Scan(&contentJSON, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to query bible: %w", err)
	}
	return contentJSON, version, nil
}

// BibleVersion returns one specific serialized bible version, or ErrNotFound
// when the book never had that version.
func (s *Store) BibleVersion(ctx context.Context, bookID int64, version int) (string, error) {
	var contentJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_json FROM bible WHERE book_id = ? AND version = ?`,
		bookID, version,
	).Scan(&contentJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query bible version %d: %w", version, err)
	}
	return contentJSON, nil
}

// RollbackBible makes an older version current again. Versions are
// immutable and never deleted; the old content is copied to a new head
// version, so the full history stays queryable.
func (s *Store) RollbackBible(ctx context.Context, bookID int64, toVersion int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var contentJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT content_json FROM bible WHERE book_id = ? AND version = ?`,
		bookID, toVersion,
	).Scan(&contentJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query bible version %d: %w", toVersion, err)
	}

	var maxVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM bible WHERE book_id = ?`, bookID,
	).Scan(&maxVersion); err != nil {
		return fmt.Errorf("failed to query bible version: %w", err)
	}
	next := maxVersion + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bible (book_id, version, content_json, updated_at) VALUES (?, ?, ?, ?)`,
		bookID, next, contentJSON, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to rollback bible: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log := logging.With("store")
	log.Info().
		Int64("book_id", bookID).
		Int("to_version", toVersion).
		Int("new_version", next).
		Msg("bible rolled back")
	return nil
}

// --- Row mapping ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*book.Book, error) {
	var b book.Book
	var sourceLang, targetLang sql.NullString
	var mode, status, createdAt string

	err := row.Scan(&b.ID, &b.Title, &sourceLang, &targetLang, &mode, &status, &b.FileHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}

	b.SourceLang = sourceLang.String
	b.TargetLang = targetLang.String
	b.Mode = book.Mode(mode)
	b.Status = book.Status(status)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		b.CreatedAt = t
	}
	return &b, nil
}

func scanChunks(rows *sql.Rows) ([]book.Chunk, error) {
	var chunks []book.Chunk
	for rows.Next() {
		var c book.Chunk
		var translated, modelUsed, flagsJSON sql.NullString
		var tokenEstimate, sourceSection sql.NullInt64
		var confidence sql.NullFloat64
		var status string

		if err := rows.Scan(
			&c.ID, &c.BookID, &c.Index, &c.Original, &translated,
			&tokenEstimate, &sourceSection, &modelUsed, &confidence,
			&status, &flagsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		c.Translated = translated.String
		c.TokenEstimate = int(tokenEstimate.Int64)
		c.SourceSection = int(sourceSection.Int64)
		c.ModelUsed = modelUsed.String
		c.Confidence = confidence.Float64
		c.Status = book.ChunkStatus(status)
		c.Flags = decodeFlags(flagsJSON.String)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func decodeFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil
	}
	if len(flags) == 0 {
		return nil
	}
	return flags
}
