package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codescope/config"
	"codescope/internal/analyze"
	"codescope/internal/analyze/discover"
	"codescope/internal/analyze/project"
	"codescope/internal/analyze/render"
	"codescope/internal/analyze/session"
	"codescope/internal/analyze/telemetry"
	"codescope/internal/analyze/transport"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	analyzeFormat        string
	analyzeServerCommand string
	analyzeNoCache       bool
	analyzeNoLSP         bool
	analyzeVerbose       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Extract symbols, types, and cross-references from source files",
	Long: `Analyze spawns a language server for the files' project, harvests their
symbol hierarchy, hover documentation, and type references, and renders
the result as Markdown or JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "markdown", "output format: markdown or json")
	analyzeCmd.Flags().StringVar(&analyzeServerCommand, "server", "", "language server command to spawn (defaults per detected project kind)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "skip the on-disk symbol cache")
	analyzeCmd.Flags().BoolVar(&analyzeNoLSP, "no-lsp-resolve", false, "skip the typeDefinition round-trip for types not found locally")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	level := telemetry.LevelInfo
	if analyzeVerbose {
		level = telemetry.LevelDebug
	}
	logger, err := telemetry.New(level)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logger.Sync()

	first, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path %s: %w", args[0], err)
	}
	root, kind, err := project.DetectRoot(first)
	if err != nil {
		return fmt.Errorf("detecting project root: %w", err)
	}

	paths, err := discover.Expand(args, kind)
	if err != nil {
		return fmt.Errorf("expanding file arguments: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no source files found among the given arguments")
	}

	analyzeCfg, err := config.LoadAnalyzeConfig(root)
	if err != nil {
		return fmt.Errorf("loading .codescope/analyze.json: %w", err)
	}

	serverCommand := analyzeServerCommand
	if serverCommand == "" {
		serverCommand = analyzeCfg.ServerCommand
	}
	if serverCommand == "" {
		serverCommand = defaultServerCommand(kind)
	}

	progress := render.NewProgress(isatty.IsTerminal(os.Stderr.Fd()))
	defer progress.Done()

	opts := analyze.Options{
		ServerCommand: serverCommand,
		ServerArgs:    analyzeCfg.ServerArgs,
		BinPaths:      analyzeCfg.BinPaths,
		CacheDir:      analyzeCfg.CacheDir,
		UseCache:      !analyzeNoCache,
		UseLSP:        !analyzeNoLSP,
		Logger:        logger,
		Tuning:        tuningFrom(analyzeCfg),
		OnProgress: func(states map[string]transport.ProgressState) {
			progress.Update(states)
		},
	}
	if opts.ServerCommand == "" {
		return fmt.Errorf("no language server configured for project kind %s; pass --server or set server_command in .codescope/analyze.json", kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	reports, err := analyze.Run(ctx, paths, opts)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	results := make([]render.FileResult, 0, len(reports))
	for _, r := range reports {
		results = append(results, render.FileResult{Path: r.Path, Symbols: r.Symbols})
	}

	fmt.Fprintln(os.Stdout, render.Render(render.ParseFormat(analyzeFormat), results))
	return nil
}

func tuningFrom(cfg config.AnalyzeConfig) session.Tuning {
	return session.Tuning{
		DocumentSymbolRetries:   cfg.DocumentSymbolRetries,
		DocumentSymbolRetryWait: cfg.DocumentSymbolRetryWait(),
		DiagnosticsPoll:         cfg.DiagnosticsPoll(),
		DiagnosticsSettle:       cfg.DiagnosticsSettle(),
		DiagnosticsStablePolls:  cfg.DiagnosticsStablePolls,
		IndexingPoll:            cfg.IndexingPoll(),
		IndexingSettle:          cfg.IndexingSettle(),
	}
}

func defaultServerCommand(kind project.Type) string {
	switch kind {
	case project.Go:
		return "gopls"
	case project.Rust:
		return "rust-analyzer"
	case project.Python:
		return "pyright-langserver"
	case project.TypeScript, project.JavaScript:
		return "typescript-language-server"
	default:
		return ""
	}
}
