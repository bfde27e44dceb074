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
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-haiku-4-5"
	anthropicVersion        = "2023-06-01"
)

type AnthropicModel struct {
	modelBase
	client *http.Client
}

func NewAnthropicModel(cfg config.ModelEntry, quota QuotaStore) *AnthropicModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	m := &AnthropicModel{modelBase: modelBase{cfg: cfg, quota: quota}}
	m.client = &http.Client{Timeout: m.timeout()}
	return m
}

func (m *AnthropicModel) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	payload := map[string]interface{}{
		"model":       m.cfg.Model,
		"max_tokens":  4096,
		"temperature": m.cfg.Temperature,
		"system":      systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": chunk},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/v1/messages", m.cfg.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", m.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, m.retryable(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(apiResp.Content) == 0 {
		return nil, m.retryable(fmt.Errorf("empty response content"))
	}

	m.recordUsage(ctx, apiResp.Usage.InputTokens+apiResp.Usage.OutputTokens)

	parsed := ParseResponse(apiResp.Content[0].Text, m.Name())
	return &Response{
		Translation:  postprocess.Clean(parsed.Translation),
		Confidence:   parsed.Confidence,
		Notes:        parsed.Notes,
		ModelUsed:    m.Name(),
		TokensInput:  apiResp.Usage.InputTokens,
		TokensOutput: apiResp.Usage.OutputTokens,
		RawText:      apiResp.Content[0].Text,
	}, nil
}
