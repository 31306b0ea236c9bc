// Package hydrate backfills full article text for sources that arrived as feed stubs.
package hydrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/db"
	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/langdetect"
	"github.com/KasiaMirowska/shift-track/internal/reader"
	"github.com/KasiaMirowska/shift-track/internal/sentiment"
)

const DefaultExcerptChars = 240

// Store is the persistence the worker needs. *db.Pool implements it.
type Store interface {
	LoadSourceMeta(ctx context.Context, sourceID int64) (db.SourceMeta, error)
	SaveHydration(ctx context.Context, w db.HydrationWrite) error
}

// duplicateCounter is optionally implemented by stores that can report
// other sources sharing a text hash.
type duplicateCounter interface {
	CountTextHashDuplicates(ctx context.Context, hash string, excludeSourceID int64) (int64, error)
}

type Options struct {
	Fetch          reader.FetchOptions
	ExcerptChars   int
	DetectLanguage bool
}

type Worker struct {
	store  Store
	logger zerolog.Logger
	opts   Options
}

// Outcome describes one successful hydration.
type Outcome struct {
	SourceID       int64
	FetchOutcome   reader.Outcome
	FetchedURL     string
	WordCount      int
	TextHash       string
	Sentiment      float64
	AuthorFilled   bool
	ExcerptFilled  bool
	LanguageFilled bool
	DuplicateCount int64
}

// BatchResult counts a sequential pass over several targets.
type BatchResult struct {
	Attempted int
	Hydrated  int
	Failed    int
}

func NewWorker(store Store, logger zerolog.Logger, opts Options) *Worker {
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = DefaultExcerptChars
	}
	return &Worker{store: store, logger: logger, opts: opts}
}

// Hydrate fetches, extracts and scores one target, then writes the result
// without overwriting feed-supplied author, excerpt or title.
func (w *Worker) Hydrate(ctx context.Context, target db.HydrationTarget) (Outcome, error) {
	if w == nil || w.store == nil {
		return Outcome{}, fmt.Errorf("hydration worker is not initialized")
	}
	out := Outcome{SourceID: target.SourceID}

	fetched := reader.Fetch(ctx, target.URL, w.opts.Fetch)
	out.FetchOutcome = fetched.Outcome
	out.FetchedURL = fetched.URL
	if fetched.Outcome == reader.OutcomeFatal {
		return out, fmt.Errorf("fetch source %d: %w", target.SourceID, fetched.Err)
	}

	extracted, err := reader.Extract(fetched.Body, fetched.URL, fetched.ContentType)
	if err != nil {
		return out, fmt.Errorf("extract source %d: %w", target.SourceID, err)
	}

	digest := sha256.Sum256([]byte(extracted.Text))
	out.TextHash = hex.EncodeToString(digest[:])
	out.WordCount = reader.WordCount(extracted.Text)
	out.Sentiment = sentiment.Score(extracted.Text)

	meta, err := w.store.LoadSourceMeta(ctx, target.SourceID)
	if err != nil {
		return out, fmt.Errorf("load source %d: %w", target.SourceID, err)
	}

	write := db.HydrationWrite{
		SourceID:  target.SourceID,
		Text:      extracted.Text,
		HTML:      optional(extracted.HTML),
		WordCount: out.WordCount,
		TextHash:  out.TextHash,
		Sentiment: out.Sentiment,
	}
	if isBlank(meta.Author) && extracted.Byline != "" {
		write.Author = optional(extracted.Byline)
		out.AuthorFilled = true
	}
	if isBlank(meta.Excerpt) {
		write.Excerpt = optional(reader.CollapseExcerpt(extracted.Text, w.opts.ExcerptChars))
		out.ExcerptFilled = write.Excerpt != nil
	}
	if title := strings.TrimSpace(meta.Title); (title == "" || title == db.UntitledPlaceholder) && extracted.Title != "" {
		write.Title = optional(extracted.Title)
	}
	if w.opts.DetectLanguage && isBlank(meta.Language) {
		if code := langdetect.DetectISO6391(extracted.Text); code != "" {
			write.Language = &code
			out.LanguageFilled = true
		}
	}

	if counter, ok := w.store.(duplicateCounter); ok {
		n, err := counter.CountTextHashDuplicates(ctx, out.TextHash, target.SourceID)
		if err != nil {
			w.logger.Warn().Err(err).Int64("source_id", target.SourceID).Msg("text hash duplicate check failed")
		} else if n > 0 {
			out.DuplicateCount = n
			w.logger.Info().
				Int64("source_id", target.SourceID).
				Str("text_hash", out.TextHash).
				Int64("duplicates", n).
				Msg("hydrated text duplicates existing sources")
		}
	}

	if err := w.store.SaveHydration(ctx, write); err != nil {
		return out, fmt.Errorf("save hydration for source %d: %w", target.SourceID, err)
	}
	return out, nil
}

// HydrateAll processes targets one at a time. A failed target is logged and skipped.
func (w *Worker) HydrateAll(ctx context.Context, targets []db.HydrationTarget) BatchResult {
	var result BatchResult
	for _, target := range targets {
		if ctx.Err() != nil {
			w.logger.Warn().Err(ctx.Err()).Int("remaining", len(targets)-result.Attempted).Msg("hydration stopped")
			break
		}
		result.Attempted++

		started := globaltime.Now()
		out, err := w.Hydrate(ctx, target)
		if err != nil {
			result.Failed++
			w.logger.Error().
				Err(err).
				Int64("source_id", target.SourceID).
				Str("url", target.URL).
				Str("fetch_outcome", out.FetchOutcome.String()).
				Bool("extraction_error", reader.IsExtractionError(err)).
				Msg("hydration failed")
			continue
		}

		result.Hydrated++
		w.logger.Info().
			Int64("source_id", target.SourceID).
			Str("fetch_outcome", out.FetchOutcome.String()).
			Int("word_count", out.WordCount).
			Float64("sentiment", out.Sentiment).
			Bool("author_filled", out.AuthorFilled).
			Dur("elapsed", globaltime.Since(started)).
			Msg("hydrated source")
	}
	return result
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
