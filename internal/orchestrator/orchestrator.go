// Package orchestrator drives the pipeline end to end. It has no business
// logic of its own: it decides between fresh ingest and resume, walks the
// pending chunks, and delegates everything else to the other packages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/librotran/librotran/internal/bible"
	"github.com/librotran/librotran/internal/book"
	"github.com/librotran/librotran/internal/chunker"
	"github.com/librotran/librotran/internal/logging"
	"github.com/librotran/librotran/internal/parser"
	"github.com/librotran/librotran/internal/reconstructor"
	"github.com/librotran/librotran/internal/router"
	"github.com/librotran/librotran/internal/store"
)

// ErrBookAlreadyDone means the book was fully processed in a previous run
// and there is nothing left to do.
var ErrBookAlreadyDone = errors.New("book already done")

// doneConfidence is the acceptance threshold: chunks below it are flagged
// for human review instead of marked done.
const doneConfidence = 0.75

// Translator is the slice of the router the orchestrator needs. The
// concrete *router.Router satisfies it; tests plug in fakes.
type Translator interface {
	Translate(ctx context.Context, chunk, systemPrompt string) (*router.Response, error)
}

// Result is what the CLI consumes after a run.
type Result struct {
	BookID      int64
	OutputPath  string
	TotalChunks int
	Translated  int
	Flagged     int
	WasResumed  bool
}

type Orchestrator struct {
	repo       *store.Store
	parsers    *parser.Registry
	chunker    *chunker.Chunker
	translator Translator
	writer     *reconstructor.Writer
	extractor  *bible.Extractor
	compressor *bible.Compressor
	log        zerolog.Logger
}

// New wires the pipeline. extractor may be nil; the bible then advances on
// local heuristics only.
func New(repo *store.Store, parsers *parser.Registry, ck *chunker.Chunker, translator Translator, writer *reconstructor.Writer, extractor *bible.Extractor) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		parsers:    parsers,
		chunker:    ck,
		translator: translator,
		writer:     writer,
		extractor:  extractor,
		compressor: bible.NewCompressor(),
		log:        logging.With("orchestrator"),
	}
}

// chunkJob abstracts what differs between translate, fix and fix-style:
// which text drives compression and character detection, and how the system
// prompt and user payload are built for one chunk.
type chunkJob struct {
	label        string
	sourceText   func(c book.Chunk) string
	systemPrompt func(compressed *bible.Bible) string
	userPayload  func(c book.Chunk) string
}

// Run translates a book. Idempotent: running it twice on the same file
// resumes from where the previous run stopped.
func (o *Orchestrator) Run(ctx context.Context, filePath, sourceLang, targetLang string) (*Result, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	fileHash, err := hashFile(absPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("mode", "translate").Logger()

	raw, err := o.parsers.Parse(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	sourceLang = resolveSourceLang(sourceLang, raw.DetectedLanguage, log)

	bookID, title, wasResumed, err := o.resolveBook(ctx, fileHash, fileTitle(absPath), book.ModeTranslate, sourceLang, targetLang, log)
	if err != nil {
		return nil, err
	}
	if !wasResumed {
		if err := o.storeChunks(ctx, raw, bookID); err != nil {
			return nil, err
		}
	}

	job := chunkJob{
		label:      "translate",
		sourceText: func(c book.Chunk) string { return c.Original },
		systemPrompt: func(compressed *bible.Bible) string {
			return router.BuildTranslatePrompt(promptContext(compressed, sourceLang, targetLang))
		},
		userPayload: func(c book.Chunk) string { return c.Original },
	}
	return o.finishRun(ctx, bookID, title, targetLang, wasResumed, job, log)
}

// RunFix corrects an existing translation against the original text. The
// book identity hashes both files plus the mode so translate and fix jobs
// for the same book never collide.
func (o *Orchestrator) RunFix(ctx context.Context, originalPath, translationPath, targetLang, sourceLang string) (*Result, error) {
	absOriginal, err := filepath.Abs(originalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDraft, err := filepath.Abs(translationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	fileHash, err := fixHash(absOriginal, absDraft)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("mode", "fix").Logger()

	// The reference chunks are needed on resume too: they are the per-index
	// originals the correction prompt quotes.
	sourceRaw, err := o.parsers.Parse(absOriginal)
	if err != nil {
		return nil, fmt.Errorf("failed to parse original: %w", err)
	}
	sourceLang = resolveSourceLang(sourceLang, sourceRaw.DetectedLanguage, log)
	sourceChunks := o.chunker.Chunk(sourceRaw)

	bookID, title, wasResumed, err := o.resolveBook(ctx, fileHash, fileTitle(absDraft), book.ModeFix, sourceLang, targetLang, log)
	if err != nil {
		return nil, err
	}
	if !wasResumed {
		if err := o.stageFixChunks(ctx, sourceChunks, absDraft, bookID); err != nil {
			return nil, err
		}
	}

	sourceByIndex := make(map[int]string, len(sourceChunks))
	for _, c := range sourceChunks {
		sourceByIndex[c.Index] = c.Original
	}

	job := chunkJob{
		label: "fix",
		sourceText: func(c book.Chunk) string {
			if src := sourceByIndex[c.Index]; src != "" {
				return src
			}
			log.Warn().Int("chunk_index", c.Index).Msg("no reference original for chunk, using draft only")
			return c.Original
		},
		systemPrompt: func(compressed *bible.Bible) string {
			return router.BuildFixPrompt(promptContext(compressed, sourceLang, targetLang))
		},
		userPayload: func(c book.Chunk) string {
			return router.BuildFixPayload(sourceByIndex[c.Index], c.Original, sourceLang, targetLang)
		},
	}
	return o.finishRun(ctx, bookID, title, targetLang, wasResumed, job, log)
}

// RunFixStyle polishes an existing translation without a reference
// original.
func (o *Orchestrator) RunFixStyle(ctx context.Context, translationPath, targetLang, sourceLang string) (*Result, error) {
	absDraft, err := filepath.Abs(translationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	fileHash, err := fixStyleHash(absDraft, targetLang)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("mode", "fix-style").Logger()

	bookID, title, wasResumed, err := o.resolveBook(ctx, fileHash, fileTitle(absDraft), book.ModeFix, sourceLang, targetLang, log)
	if err != nil {
		return nil, err
	}
	if !wasResumed {
		raw, err := o.parsers.Parse(absDraft)
		if err != nil {
			return nil, fmt.Errorf("failed to parse: %w", err)
		}
		if err := o.storeChunks(ctx, raw, bookID); err != nil {
			return nil, err
		}
	}

	job := chunkJob{
		label:      "fix-style",
		sourceText: func(c book.Chunk) string { return c.Original },
		systemPrompt: func(compressed *bible.Bible) string {
			return router.BuildPolishPrompt(promptContext(compressed, sourceLang, targetLang))
		},
		userPayload: func(c book.Chunk) string {
			return router.BuildPolishPayload(c.Original, targetLang)
		},
	}
	return o.finishRun(ctx, bookID, title, targetLang, wasResumed, job, log)
}

// resolveBook finds an existing book by hash or creates a fresh row.
func (o *Orchestrator) resolveBook(ctx context.Context, fileHash, title string, mode book.Mode, sourceLang, targetLang string, log zerolog.Logger) (int64, string, bool, error) {
	existing, err := o.repo.BookByHash(ctx, fileHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, "", false, err
	}

	if existing != nil {
		if err := o.assertBookCanRun(ctx, existing); err != nil {
			return 0, "", false, err
		}
		log.Info().Int64("book_id", existing.ID).Str("title", existing.Title).Msg("resuming book")
		return existing.ID, existing.Title, true, nil
	}

	bookID, err := o.repo.CreateBook(ctx, title, fileHash, mode, sourceLang, targetLang)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to create book: %w", err)
	}
	log.Info().Int64("book_id", bookID).Str("title", title).Msg("new book")
	return bookID, title, false, nil
}

// assertBookCanRun guards the DONE state. A legacy row that says DONE but
// still has pending chunks is forced back to IN_PROGRESS so it can resume.
func (o *Orchestrator) assertBookCanRun(ctx context.Context, b *book.Book) error {
	if b.Status != book.StatusDone {
		return nil
	}

	pending, err := o.repo.PendingChunks(ctx, b.ID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		o.log.Warn().Int64("book_id", b.ID).Int("pending", len(pending)).Msg("book marked done with pending chunks, forcing resume")
		return o.repo.UpdateBookStatus(ctx, b.ID, book.StatusInProgress)
	}
	return fmt.Errorf("%w: %q (book_id=%d)", ErrBookAlreadyDone, b.Title, b.ID)
}

// storeChunks chunks a parsed book and stores everything PENDING.
func (o *Orchestrator) storeChunks(ctx context.Context, raw book.RawBook, bookID int64) error {
	chunks := o.chunker.Chunk(raw)
	if err := o.repo.SaveChunks(ctx, bookID, chunks); err != nil {
		return err
	}
	o.log.Info().Int64("book_id", bookID).Int("chunks", len(chunks)).Msg("chunks created and stored")
	return nil
}

// stageFixChunks creates the fix-mode chunk rows: boundaries come from the
// original, content is the existing translation aligned proportionally.
func (o *Orchestrator) stageFixChunks(ctx context.Context, sourceChunks []book.Chunk, translationPath string, bookID int64) error {
	draftRaw, err := o.parsers.Parse(translationPath)
	if err != nil {
		return fmt.Errorf("failed to parse translation: %w", err)
	}
	aligned := alignTranslationByReference(sourceChunks, draftRaw.Sections)

	staged := make([]book.Chunk, 0, len(sourceChunks))
	for i, src := range sourceChunks {
		staged = append(staged, book.Chunk{
			Index:         src.Index,
			Original:      aligned[i],
			TokenEstimate: src.TokenEstimate,
			SourceSection: src.SourceSection,
			Status:        book.ChunkPending,
		})
	}

	if err := o.repo.SaveChunks(ctx, bookID, staged); err != nil {
		return err
	}
	o.log.Info().Int64("book_id", bookID).Int("chunks", len(staged)).Msg("fix chunks staged from existing translation")
	return nil
}

// finishRun is everything after book resolution: process pending chunks,
// rebuild the output, and settle the book status.
func (o *Orchestrator) finishRun(ctx context.Context, bookID int64, title, targetLang string, wasResumed bool, job chunkJob, log zerolog.Logger) (*Result, error) {
	pending, err := o.repo.PendingChunks(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if len(pending) > 0 {
		all, err := o.repo.AllChunks(ctx, bookID)
		if err != nil {
			return nil, err
		}
		total := len(all)
		offset := total - len(pending)

		log.Info().Str("title", title).Int("total_chunks", total).Msg("processing")
		if wasResumed {
			log.Info().Int("done_so_far", offset).Msg("resuming from checkpoint")
		}

		if err := o.processPending(ctx, pending, bookID, total, offset, job, log); err != nil {
			return nil, err
		}
	} else {
		log.Info().Msg("no pending chunks, nothing to process")
	}

	outputPath, err := o.writer.Build(ctx, bookID, title, targetLang)
	if err != nil {
		return nil, err
	}

	result, err := o.buildResult(ctx, bookID, outputPath, wasResumed)
	if err != nil {
		return nil, err
	}

	pendingAfter := result.TotalChunks - result.Translated - result.Flagged
	status := book.StatusDone
	if pendingAfter > 0 {
		status = book.StatusInProgress
	}
	if err := o.repo.UpdateBookStatus(ctx, bookID, status); err != nil {
		return nil, err
	}

	log.Info().
		Int("translated", result.Translated).
		Int("flagged", result.Flagged).
		Int("pending", pendingAfter).
		Str("output", outputPath).
		Msg("run finished")
	return result, nil
}

// processPending walks the pending chunks in order. Each chunk gets its own
// error boundary: a failure flags the chunk and moves on, only quota
// exhaustion or cancellation pauses the whole pipeline.
func (o *Orchestrator) processPending(ctx context.Context, pending []book.Chunk, bookID int64, total, offset int, job chunkJob, log zerolog.Logger) error {
	b, err := o.loadOrInitBible(ctx, bookID)
	if err != nil {
		return err
	}

	for i, chunk := range pending {
		if ctx.Err() != nil {
			log.Warn().Msg("run interrupted")
			break
		}
		current := offset + i + 1

		err := o.processChunk(ctx, chunk, bookID, b, job, log)
		if err == nil {
			log.Info().
				Str("job", job.label).
				Int("current", current).
				Int("total", total).
				Int("percent", current*100/total).
				Msg("chunk processed")
			continue
		}

		if errors.Is(err, router.ErrAllModelsExhausted) {
			log.Error().Err(err).Int("current", current).Int("total", total).Msg("all models exhausted, pipeline paused")
			break
		}
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("run interrupted")
			break
		}

		log.Warn().Err(err).Int("chunk_index", chunk.Index).Msg("chunk failed, flagged and continuing")
		if flagErr := o.repo.FlagChunk(ctx, chunk.ID, []string{"error: " + err.Error()}); flagErr != nil {
			return flagErr
		}
	}
	return nil
}

// processChunk runs one chunk through compress, prompt, translate, persist
// and bible maintenance.
func (o *Orchestrator) processChunk(ctx context.Context, chunk book.Chunk, bookID int64, b *bible.Bible, job chunkJob, log zerolog.Logger) error {
	sourceText := job.sourceText(chunk)

	compressed := o.compressor.Compress(b, sourceText)
	if ratio := o.compressor.CompressionRatio(b, compressed); ratio < 1.0 {
		log.Debug().Int("chunk_index", chunk.Index).Float64("ratio", ratio).Msg("bible compressed for chunk")
	}

	resp, err := o.translator.Translate(ctx, job.userPayload(chunk), job.systemPrompt(compressed))
	if err != nil {
		return err
	}

	if err := o.repo.UpdateChunkTranslation(ctx, chunk.ID, resp.Translation, resp.ModelUsed, resp.Confidence, resolveStatus(resp.Confidence)); err != nil {
		return err
	}

	// Detect candidates once; the AI extractor validates and enriches them.
	localCharacters := bible.ExtractCharacterMentions(sourceText, resp.Translation, 0, b.Characters)

	var extracted *bible.Update
	if o.extractor != nil {
		extracted = o.extractor.Extract(ctx, sourceText, resp.Translation, resp.Notes,
			chunk.Index, localCharacters, bible.HasUnenrichedCandidates(localCharacters, b))
	}

	local := bible.BuildLocalUpdate(resp.Translation, resp.Notes, b.Voice, localCharacters)
	b.Apply(bible.MergeUpdates(local, extracted))

	version, err := o.saveBible(ctx, bookID, b)
	if err != nil {
		return err
	}
	log.Debug().Int("bible_version", version).Msg("bible updated")
	return nil
}

func (o *Orchestrator) buildResult(ctx context.Context, bookID int64, outputPath string, wasResumed bool) (*Result, error) {
	all, err := o.repo.AllChunks(ctx, bookID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BookID:      bookID,
		OutputPath:  outputPath,
		TotalChunks: len(all),
		WasResumed:  wasResumed,
	}
	for _, c := range all {
		switch c.Status {
		case book.ChunkDone:
			result.Translated++
		case book.ChunkFlagged:
			result.Flagged++
		}
	}
	return result, nil
}

// loadOrInitBible guarantees at least one stored bible version per book, so
// no book finishes without a bible trail even when the extractor never
// fires.
func (o *Orchestrator) loadOrInitBible(ctx context.Context, bookID int64) (*bible.Bible, error) {
	contentJSON, _, err := o.repo.LatestBible(ctx, bookID)
	if err == nil {
		b, parseErr := bible.FromJSON(contentJSON)
		if parseErr == nil {
			return b, nil
		}
		o.log.Warn().Int64("book_id", bookID).Err(parseErr).Msg("stored bible unreadable, starting fresh")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	b := bible.Empty()
	version, err := o.saveBible(ctx, bookID, b)
	if err != nil {
		return nil, err
	}
	o.log.Debug().Int64("book_id", bookID).Int("version", version).Msg("initial bible created")
	return b, nil
}

func (o *Orchestrator) saveBible(ctx context.Context, bookID int64, b *bible.Bible) (int, error) {
	contentJSON, err := b.ToJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize bible: %w", err)
	}
	return o.repo.SaveBible(ctx, bookID, contentJSON)
}

// resolveStatus routes low-confidence chunks to human review.
func resolveStatus(confidence float64) book.ChunkStatus {
	if confidence >= doneConfidence {
		return book.ChunkDone
	}
	return book.ChunkFlagged
}

// resolveSourceLang replaces the "auto" marker (or an empty flag) with the
// language detected from the parsed text. Detection can come back empty for
// very short input; the marker then stays and the machine-translation
// fallback defers to provider-side detection.
func resolveSourceLang(requested, detected string, log zerolog.Logger) string {
	if requested != "" && !strings.EqualFold(requested, "auto") {
		return requested
	}
	if detected == "" {
		return requested
	}
	code := strings.ToLower(detected)
	log.Info().Str("source_lang", code).Msg("source language detected")
	return code
}

func promptContext(compressed *bible.Bible, sourceLang, targetLang string) router.PromptContext {
	return router.PromptContext{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Voice:      compressed.Voice,
		Decisions:  compressed.Decisions,
		Glossary:   compressed.Glossary,
		Characters: compressed.Characters,
		LastScene:  compressed.LastScene,
	}
}

func fileTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
