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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/librotran/librotran/internal/book"
	"github.com/librotran/librotran/internal/config"
	"github.com/librotran/librotran/internal/store"
)

var reviewBook string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List the flagged chunks of a processed book",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFile(reviewBook); err != nil {
			return err
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		dbPath := cfg.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(stateDir(), "librotran.db")
		}
		repo, err := store.New(dbPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		fileHash, err := hashForReview(reviewBook)
		if err != nil {
			return err
		}

		b, err := repo.BookByHash(cmd.Context(), fileHash)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no processed book matches %s: run 'librotran translate' first", reviewBook)
		}
		if err != nil {
			return err
		}

		chunks, err := repo.AllChunks(cmd.Context(), b.ID)
		if err != nil {
			return err
		}

		var flagged []book.Chunk
		for _, c := range chunks {
			if c.Status == book.ChunkFlagged {
				flagged = append(flagged, c)
			}
		}

		fmt.Printf("[librotran] %q (book_id=%d, status=%s)\n", b.Title, b.ID, b.Status)
		if len(flagged) == 0 {
			fmt.Println("[librotran] No flagged chunks. Nothing to review.")
			return nil
		}

		fmt.Printf("[librotran] %d flagged chunk(s):\n\n", len(flagged))
		for _, c := range flagged {
			fmt.Printf("  chunk %d (confidence %.2f, model %s)\n", c.Index, c.Confidence, displayModel(c.ModelUsed))
			if len(c.Flags) > 0 {
				fmt.Printf("    flags: %s\n", strings.Join(c.Flags, "; "))
			}
			fmt.Printf("    %s\n\n", snippet(c.Original, 120))
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewBook, "book", "b", "", "processed book file to review")
	reviewCmd.MarkFlagRequired("book")

	rootCmd.AddCommand(reviewCmd)
}

// hashForReview mirrors the translate-mode book identity.
func hashForReview(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func displayModel(model string) string {
	if model == "" {
		return "-"
	}
	return model
}

func snippet(text string, maxChars int) string {
	clean := strings.Join(strings.Fields(text), " ")
	runes := []rune(clean)
	if len(runes) <= maxChars {
		return clean
	}
	return string(runes[:maxChars]) + "…"
}
