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
	"fmt"

	"github.com/spf13/cobra"
)

var writeOutline string

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "[Coming soon] Co-author mode: develop an outline into a full book",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("[librotran] The 'write' command is not available yet.")
		return nil
	},
}

func init() {
	writeCmd.Flags().StringVarP(&writeOutline, "outline", "o", "", "file with the book outline")
	writeCmd.MarkFlagRequired("outline")

	rootCmd.AddCommand(writeCmd)
}
