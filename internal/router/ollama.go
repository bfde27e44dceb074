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
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
)

type OllamaModel struct {
	modelBase
	client *http.Client
}

func NewOllamaModel(cfg config.ModelEntry, quota QuotaStore) *OllamaModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	m := &OllamaModel{modelBase: modelBase{cfg: cfg, quota: quota}}
	m.client = &http.Client{Timeout: m.timeout()}
	return m
}

func (m *OllamaModel) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	payload := map[string]interface{}{
		"model":  m.cfg.Model,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": m.cfg.Temperature,
		},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": chunk},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/chat", m.cfg.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, m.retryable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.classifyStatus(resp.StatusCode, "")
	}

	var apiResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, m.retryable(fmt.Errorf("failed to decode response: %w", err))
	}

	m.recordUsage(ctx, apiResp.PromptEvalCount+apiResp.EvalCount)

	parsed := ParseResponse(apiResp.Message.Content, m.Name())
	return &Response{
		Translation:  postprocess.Clean(parsed.Translation),
		Confidence:   parsed.Confidence,
		Notes:        parsed.Notes,
		ModelUsed:    m.Name(),
		TokensInput:  apiResp.PromptEvalCount,
		TokensOutput: apiResp.EvalCount,
		RawText:      apiResp.Message.Content,
	}, nil
}
