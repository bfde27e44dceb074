// Package router selects which model translates each chunk and fails over
// between them. Callers talk to the Router, never to an adapter directly.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/librotran/librotran/internal/logging"
)

// ErrAllModelsExhausted is returned when no configured model can take the
// call: every one is over its daily quota, cooling down after errors, or
// failed with a retryable error.
var ErrAllModelsExhausted = errors.New("all models exhausted")

// Response is what a model adapter returns for one chunk. Adapters never
// fail on malformed model output; parse trouble shows up as low confidence
// and a warning note instead.
type Response struct {
	Translation  string
	Confidence   float64
	Notes        string
	ModelUsed    string
	TokensInput  int
	TokensOutput int

	// RawText is the model output before response parsing. Callers that
	// send their own structured prompt through the router (bible
	// extraction) read this field; the translation fields only make sense
	// for replies to the translate prompt.
	RawText string
}

// Model is the adapter contract. Available must be cheap: it checks quota
// and cooldown state without touching the network.
type Model interface {
	Name() string
	Available(ctx context.Context) bool
	Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error)
}

// ContentError marks a failure caused by the chunk itself, for example
// content blocked by the provider. Failing over is pointless: every model
// would reject the same input, so the router propagates it immediately.
type ContentError struct {
	Model  string
	Status int
	Err    error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s rejected content (status %d): %v", e.Model, e.Status, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// IsContentError reports whether err is (or wraps) a ContentError.
func IsContentError(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}

// Router walks the model list in priority order. The slice comes already
// sorted from the config loader.
type Router struct {
	models []Model
}

func New(models []Model) (*Router, error) {
	if len(models) == 0 {
		return nil, errors.New("router needs at least one model")
	}
	return &Router{models: models}, nil
}

// Translate tries each available model in order. Retryable failures move on
// to the next model; content errors propagate as-is. When every model is
// unavailable or failed, the result wraps ErrAllModelsExhausted together
// with the last failure seen.
func (r *Router) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	log := logging.With("router")
	var lastErr error

	for _, model := range r.models {
		if !model.Available(ctx) {
			log.Info().Str("model", model.Name()).Msg("model unavailable, skipping")
			continue
		}

		log.Debug().Str("model", model.Name()).Msg("attempting translation")
		resp, err := model.Translate(ctx, chunk, systemPrompt)
		if err == nil {
			log.Info().
				Str("model", model.Name()).
				Int("tokens_in", resp.TokensInput).
				Int("tokens_out", resp.TokensOutput).
				Float64("confidence", resp.Confidence).
				Msg("chunk translated")
			return resp, nil
		}

		if IsContentError(err) {
			log.Error().Str("model", model.Name()).Err(err).Msg("content error, not failing over")
			return nil, err
		}

		log.Warn().Str("model", model.Name()).Err(err).Msg("retryable failure, trying next model")
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %w", ErrAllModelsExhausted, lastErr)
	}
	return nil, ErrAllModelsExhausted
}

// AvailableModels lists the names of models that could take a call right
// now. Used for logging and the CLI summary.
func (r *Router) AvailableModels(ctx context.Context) []string {
	var names []string
	for _, m := range r.models {
		if m.Available(ctx) {
			names = append(names, m.Name())
		}
	}
	return names
}
