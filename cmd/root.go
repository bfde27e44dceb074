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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/librotran/librotran/internal/logging"
	"github.com/librotran/librotran/internal/router"
)

var version = "0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "librotran",
	Short: "Agentic literary translation pipeline",
	Long: `librotran translates, corrects and polishes complete books with AI while
preserving narrative voice and terminology across the whole text.

Progress is checkpointed in SQLite: interrupt any run and re-execute the
same command to resume from where it stopped.

Use "librotran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.librotran/config.yaml)")
	cobra.OnInitialize(func() {
		logging.Init(logging.FromEnv())
	})
}

// Execute runs the CLI and maps the error taxonomy to exit codes: 0 for
// success and interrupts, 2 when every model is exhausted, 1 for anything
// else.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\n[librotran] Interrupted. Run the same command to resume from the checkpoint.")
		os.Exit(0)
	case errors.Is(err, router.ErrAllModelsExhausted):
		fmt.Fprintf(os.Stderr, "[librotran] No models available: %v\nRe-run the same command once quota is available and the process resumes automatically.\n", err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "[librotran] Error: %v\n", err)
		os.Exit(1)
	}
}
