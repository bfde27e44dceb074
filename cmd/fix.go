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
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/librotran/librotran/internal/orchestrator"
)

var (
	fixTranslation string
	fixOriginal    string
	fixFrom        string
	fixTo          string
	fixChunkSize   string
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Correct an existing translation",
	Long: `Correct an existing translation.

With --original the draft is corrected against the reference text.
Without it, fix-style mode improves fluency and style with no reference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFile(fixTranslation); err != nil {
			return err
		}
		if fixOriginal != "" {
			if err := validateFile(fixOriginal); err != nil {
				return err
			}
		}
		if err := validateLang(fixTo, "--to"); err != nil {
			return err
		}
		if err := validateLang(fixFrom, "--from"); err != nil {
			return err
		}

		sourceLang := strings.ToLower(fixFrom)
		targetLang := strings.ToLower(fixTo)
		if fixOriginal != "" && sourceLang != "auto" && sourceLang == targetLang {
			return errors.New("source and target language cannot be the same")
		}

		p, err := buildPipeline(fixChunkSize, sourceLang, targetLang)
		if err != nil {
			return err
		}
		defer p.Close()

		var result *orchestrator.Result
		if fixOriginal != "" {
			result, err = p.orch.RunFix(cmd.Context(), fixOriginal, fixTranslation, targetLang, sourceLang)
		} else {
			result, err = p.orch.RunFixStyle(cmd.Context(), fixTranslation, targetLang, sourceLang)
		}
		if errors.Is(err, orchestrator.ErrBookAlreadyDone) {
			printAlreadyDone("corrected")
			return nil
		}
		if err != nil {
			return err
		}

		printSummary(result)
		return nil
	},
}

func init() {
	fixCmd.Flags().StringVar(&fixTranslation, "translation", "", "file with the existing translation (.txt, .md)")
	fixCmd.Flags().StringVar(&fixOriginal, "original", "", "reference original file (.txt, .md), optional")
	fixCmd.Flags().StringVar(&fixTo, "to", "", "target language of the corrected translation (e.g. es, en)")
	fixCmd.Flags().StringVar(&fixFrom, "from", "auto", "language of the original, 'auto' if unknown")
	fixCmd.Flags().StringVar(&fixChunkSize, "chunk-size", "standard", "chunk size: standard (800-2000), large (1200-3500), xlarge (2000-5000 tokens)")
	fixCmd.MarkFlagRequired("translation")
	fixCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(fixCmd)
}
