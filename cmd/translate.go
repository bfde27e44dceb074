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
	translateBook      string
	translateFrom      string
	translateTo        string
	translateChunkSize string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a complete book preserving narrative voice and coherence",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFile(translateBook); err != nil {
			return err
		}
		if err := validateLang(translateFrom, "--from"); err != nil {
			return err
		}
		if err := validateLang(translateTo, "--to"); err != nil {
			return err
		}

		sourceLang := strings.ToLower(translateFrom)
		targetLang := strings.ToLower(translateTo)
		if sourceLang == targetLang {
			return errors.New("source and target language cannot be the same")
		}

		p, err := buildPipeline(translateChunkSize, sourceLang, targetLang)
		if err != nil {
			return err
		}
		defer p.Close()

		result, err := p.orch.Run(cmd.Context(), translateBook, sourceLang, targetLang)
		if errors.Is(err, orchestrator.ErrBookAlreadyDone) {
			printAlreadyDone("translated")
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
	translateCmd.Flags().StringVarP(&translateBook, "book", "b", "", "path to the book file (.txt, .md)")
	translateCmd.Flags().StringVar(&translateFrom, "from", "", "source language (e.g. en, ja, fr), or auto to detect it")
	translateCmd.Flags().StringVar(&translateTo, "to", "", "target language (e.g. es, en)")
	translateCmd.Flags().StringVar(&translateChunkSize, "chunk-size", "standard", "chunk size: standard (800-2000), large (1200-3500), xlarge (2000-5000 tokens)")
	translateCmd.MarkFlagRequired("book")
	translateCmd.MarkFlagRequired("from")
	translateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(translateCmd)
}
