package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codescope",
	Short: "codescope extracts symbols, docs, and type references from source files",
	Long: `codescope drives a language server through its LSP lifecycle to harvest
per-file symbol hierarchies, hover documentation, and cross-reference-
resolved type dependencies, rendering the result as Markdown or JSON.`,
}

func Execute() error {
	return rootCmd.Execute()
}
