package router

import (
	"context"
	"fmt"
	"strings"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/librotran/librotran/internal/config"
)

// GoogleTranslateModel wraps the Cloud Translation API as a last-resort
// fallback. Machine translation ignores the system prompt and the book
// bible, so the fixed confidence stays below 1.0 and the notes say which
// path produced the text.
type GoogleTranslateModel struct {
	modelBase
	sourceLang string
	targetLang string
	opts       []option.ClientOption
}

const googleTranslateConfidence = 0.9

func NewGoogleTranslateModel(cfg config.ModelEntry, quota QuotaStore, sourceLang, targetLang string) *GoogleTranslateModel {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	return &GoogleTranslateModel{
		modelBase:  modelBase{cfg: cfg, quota: quota},
		sourceLang: sourceLang,
		targetLang: targetLang,
		opts:       opts,
	}
}

func (m *GoogleTranslateModel) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	targetTag, err := language.Parse(m.targetLang)
	if err != nil {
		return nil, &ContentError{Model: m.Name(), Err: fmt.Errorf("invalid target language: %w", err)}
	}

	client, err := translate.NewClient(ctx, m.opts...)
	if err != nil {
		return nil, m.retryable(fmt.Errorf("failed to create client: %w", err))
	}
	defer client.Close()

	var translations []translate.Translation
	if m.sourceLang == "" || m.sourceLang == "auto" {
		translations, err = client.Translate(ctx, []string{chunk}, targetTag, nil)
	} else {
		sourceTag, parseErr := language.Parse(m.sourceLang)
		if parseErr != nil {
			return nil, &ContentError{Model: m.Name(), Err: fmt.Errorf("invalid source language: %w", parseErr)}
		}
		translations, err = client.Translate(ctx, []string{chunk}, targetTag, &translate.Options{Source: sourceTag})
	}
	if err != nil {
		return nil, m.retryable(fmt.Errorf("translation failed: %w", err))
	}
	if len(translations) == 0 {
		return nil, m.retryable(fmt.Errorf("no translation returned"))
	}

	translated := translations[0].Text
	tokensIn := estimateAPITokens(chunk)
	tokensOut := estimateAPITokens(translated)
	m.recordUsage(ctx, tokensIn+tokensOut)

	return &Response{
		Translation:  translated,
		Confidence:   googleTranslateConfidence,
		Notes:        "Machine translation fallback. Book bible was not applied.",
		ModelUsed:    m.Name(),
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
		RawText:      translated,
	}, nil
}

// estimateAPITokens approximates usage for providers that do not report it.
func estimateAPITokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
