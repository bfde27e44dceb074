package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/librotran/librotran/internal/config"
	"github.com/librotran/librotran/internal/postprocess"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "google/gemini-2.0-flash-exp:free"
)

type OpenRouterModel struct {
	modelBase
	client *http.Client
}

func NewOpenRouterModel(cfg config.ModelEntry, quota QuotaStore) *OpenRouterModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenRouterModel
	}
	m := &OpenRouterModel{modelBase: modelBase{cfg: cfg, quota: quota}}
	m.client = &http.Client{Timeout: m.timeout()}
	return m
}

func (m *OpenRouterModel) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	if m.cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key required")
	}

	payload := map[string]interface{}{
		"model":       m.cfg.Model,
		"temperature": m.cfg.Temperature,
		"max_tokens":  4096,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": chunk},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", m.cfg.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.cfg.APIKey))
	httpReq.Header.Set("HTTP-Referer", "https://librotran.local")
	httpReq.Header.Set("X-Title", "librotran")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, m.retryable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, m.classifyStatus(resp.StatusCode, errResp.Error.Message)
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, m.retryable(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(apiResp.Choices) == 0 {
		return nil, m.retryable(fmt.Errorf("empty response choices"))
	}

	tokensIn := apiResp.Usage.PromptTokens
	tokensOut := apiResp.Usage.CompletionTokens
	m.recordUsage(ctx, tokensIn+tokensOut)

	parsed := ParseResponse(apiResp.Choices[0].Message.Content, m.Name())
	return &Response{
		Translation:  postprocess.Clean(parsed.Translation),
		Confidence:   parsed.Confidence,
		Notes:        parsed.Notes,
		ModelUsed:    m.Name(),
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
		RawText:      apiResp.Choices[0].Message.Content,
	}, nil
}
