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
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

type GeminiModel struct {
	modelBase
	client *http.Client
}

func NewGeminiModel(cfg config.ModelEntry, quota QuotaStore) *GeminiModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	m := &GeminiModel{modelBase: modelBase{cfg: cfg, quota: quota}}
	m.client = &http.Client{Timeout: m.timeout()}
	return m
}

func (m *GeminiModel) Translate(ctx context.Context, chunk, systemPrompt string) (*Response, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": chunk}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature": m.cfg.Temperature,
		},
	}
	if systemPrompt != "" {
		payload["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": systemPrompt}},
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", m.cfg.BaseURL, m.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", m.cfg.APIKey)

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
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, m.retryable(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, m.retryable(fmt.Errorf("empty response candidates"))
	}

	tokensIn := apiResp.UsageMetadata.PromptTokenCount
	tokensOut := apiResp.UsageMetadata.CandidatesTokenCount
	m.recordUsage(ctx, tokensIn+tokensOut)

	parsed := ParseResponse(apiResp.Candidates[0].Content.Parts[0].Text, m.Name())
	return &Response{
		Translation:  postprocess.Clean(parsed.Translation),
		Confidence:   parsed.Confidence,
		Notes:        parsed.Notes,
		ModelUsed:    m.Name(),
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
		RawText:      apiResp.Candidates[0].Content.Parts[0].Text,
	}, nil
}
