/*
Copyright © 2025 The librotran authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/librotran/librotran/internal/bible"
	"github.com/librotran/librotran/internal/chunker"
	"github.com/librotran/librotran/internal/config"
	"github.com/librotran/librotran/internal/logging"
	"github.com/librotran/librotran/internal/orchestrator"
	"github.com/librotran/librotran/internal/parser"
	"github.com/librotran/librotran/internal/reconstructor"
	"github.com/librotran/librotran/internal/router"
	"github.com/librotran/librotran/internal/store"
)

var supportedFormats = map[string]struct{}{
	".txt": {},
	".md":  {},
}

// pipeline bundles what commands need after assembly.
type pipeline struct {
	orch *orchestrator.Orchestrator
	repo *store.Store
}

func (p *pipeline) Close() {
	if err := p.repo.Close(); err != nil {
		log := logging.With("cmd")
		log.Warn().Err(err).Msg("failed to close store")
	}
}

// buildPipeline assembles the orchestrator with all its dependencies. The
// single entry point for commands and integration tests.
func buildPipeline(chunkSize, sourceLang, targetLang string) (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(stateDir(), "librotran.db")
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(stateDir(), "output")
	}

	repo, err := store.New(dbPath)
	if err != nil {
		return nil, err
	}

	models, err := buildModels(cfg.Models, repo, sourceLang, targetLang)
	if err != nil {
		repo.Close()
		return nil, err
	}
	rt, err := router.New(models)
	if err != nil {
		repo.Close()
		return nil, err
	}

	parsers := parser.NewRegistry().WithLanguageDetection(parser.NewLanguageDetector())
	ck := chunker.New(chunker.ConfigForPreset(chunkSize), nil)
	writer := reconstructor.NewWriter(repo, outputDir)
	extractor := bible.NewExtractor(extractorModel{rt})

	return &pipeline{
		orch: orchestrator.New(repo, parsers, ck, rt, writer, extractor),
		repo: repo,
	}, nil
}

// buildModels constructs an adapter per configured entry. Entries without a
// usable key are skipped with a notice instead of failing the whole run.
func buildModels(entries []config.ModelEntry, repo *store.Store, sourceLang, targetLang string) ([]router.Model, error) {
	var models []router.Model
	for _, entry := range entries {
		switch strings.ToLower(entry.Name) {
		case "anthropic", "claude":
			if entry.APIKey == "" {
				fmt.Fprintf(os.Stderr, "[librotran] %s: no api_key, skipping\n", entry.Name)
				continue
			}
			models = append(models, router.NewAnthropicModel(entry, repo))
		case "gemini":
			if entry.APIKey == "" {
				fmt.Fprintf(os.Stderr, "[librotran] %s: no api_key, skipping\n", entry.Name)
				continue
			}
			models = append(models, router.NewGeminiModel(entry, repo))
		case "openrouter":
			if entry.APIKey == "" {
				fmt.Fprintf(os.Stderr, "[librotran] %s: no api_key, skipping\n", entry.Name)
				continue
			}
			models = append(models, router.NewOpenRouterModel(entry, repo))
		case "ollama":
			models = append(models, router.NewOllamaModel(entry, repo))
		case "google", "googletx":
			models = append(models, router.NewGoogleTranslateModel(entry, repo, sourceLang, targetLang))
		default:
			fmt.Fprintf(os.Stderr, "[librotran] unknown model %q, skipping\n", entry.Name)
		}
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("no models configured: check %s and your environment variables", config.DefaultPath())
	}
	return models, nil
}

// extractorModel feeds the bible extractor through the router so extraction
// gets the same failover as translation. It hands back the raw model output:
// the extraction reply is its own JSON document, not a translate reply, so
// the translation fields of the response do not apply.
type extractorModel struct {
	rt *router.Router
}

func (m extractorModel) Translate(ctx context.Context, chunk, systemPrompt string) (string, error) {
	resp, err := m.rt.Translate(ctx, chunk, systemPrompt)
	if err != nil {
		return "", err
	}
	return resp.RawText, nil
}

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".librotran"
	}
	return filepath.Join(home, ".librotran")
}

// --- Input validation ---

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("path is not a file: %s", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedFormats[ext]; !ok {
		return fmt.Errorf("unsupported format %q (supported: .md, .txt)", ext)
	}
	return nil
}

func validateLang(code, option string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%s cannot be empty", option)
	}
	stripped := strings.ReplaceAll(code, "-", "")
	for _, r := range stripped {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("%s has invalid characters: %q (valid examples: en, es, ja, pt-br)", option, code)
		}
	}
	if len(code) > 10 {
		return fmt.Errorf("%s: language code too long: %q", option, code)
	}
	return nil
}

// --- Output ---

func printSummary(result *orchestrator.Result) {
	pending := result.TotalChunks - result.Translated - result.Flagged

	fmt.Println()
	fmt.Println(strings.Repeat("─", 50))
	if pending > 0 {
		fmt.Println("[librotran] ⚠ Process paused")
	} else {
		fmt.Println("[librotran] ✓ Process completed")
	}
	fmt.Printf("[librotran]   Total chunks : %d\n", result.TotalChunks)
	fmt.Printf("[librotran]   Translated   : %d\n", result.Translated)
	if result.Flagged > 0 {
		fmt.Printf("[librotran]   Flagged      : %d (need review)\n", result.Flagged)
	}
	if pending > 0 {
		fmt.Printf("[librotran]   Pending      : %d\n", pending)
	}
	if result.WasResumed {
		fmt.Println("[librotran]   Mode         : resumed")
	}
	fmt.Printf("[librotran]   Output       : %s\n", result.OutputPath)
	fmt.Println(strings.Repeat("─", 50))
}

func printAlreadyDone(action string) {
	fmt.Printf("\n[librotran] This book was already fully %s.\n", action)
	fmt.Println("[librotran] Reset is not implemented yet. Remove the database entry or change the file to reprocess.")
}
