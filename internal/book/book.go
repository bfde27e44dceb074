// Package book holds the persistent domain types shared across the pipeline:
// the Book row, its Chunks, and the normalized document produced by parsers.
package book

import "time"

// Status is the lifecycle state of a Book.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	// StatusReview is reserved for an external review surface; the pipeline
	// never assigns it.
	StatusReview Status = "review"
)

// ChunkStatus is the lifecycle state of a single Chunk.
type ChunkStatus string

const (
	ChunkPending ChunkStatus = "pending"
	ChunkDone    ChunkStatus = "done"
	ChunkFlagged ChunkStatus = "flagged"
	// ChunkReviewed is assigned by a human-review surface, not by this core.
	ChunkReviewed ChunkStatus = "reviewed"
)

// Mode distinguishes what kind of job created a Book row.
type Mode string

const (
	ModeTranslate Mode = "translate"
	ModeFix       Mode = "fix"
	// ModeWrite is reserved for the drafting surface; the pipeline never
	// assigns it.
	ModeWrite Mode = "write"
)

// Book identifies one processing job. Identity is the content hash of the
// source bytes, never the file name: resubmitting identical content resolves
// to the same row.
type Book struct {
	ID         int64
	Title      string
	SourceLang string
	TargetLang string
	Mode       Mode
	Status     Status
	FileHash   string
	CreatedAt  time.Time
}

// Chunk is one bounded-size unit of source text scheduled for one model call.
// (BookID, Index) is unique; chunks are created once at ingest and mutated
// exactly once per processing attempt.
type Chunk struct {
	ID            int64
	BookID        int64
	Index         int
	Original      string
	Translated    string
	TokenEstimate int
	SourceSection int
	ModelUsed     string
	Confidence    float64
	Status        ChunkStatus
	Flags         []string
}

// RawBook is the normalized document a parser hands to the chunker.
type RawBook struct {
	Title            string
	SourcePath       string
	Sections         []string
	DetectedLanguage string
}
