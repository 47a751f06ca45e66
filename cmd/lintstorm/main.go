// Package main is the entry point for the lintstorm watcher.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/diag"
	"github.com/dshills/lintstorm/internal/document"
	"github.com/dshills/lintstorm/internal/lint"
	"github.com/dshills/lintstorm/internal/runner"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath    string
	WorkspacePath string
	LogLevel      string
	Files         []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	logger := newLogger(opts.LogLevel)
	slog.SetDefault(logger)

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(opts.WorkspacePath, "lintstorm.toml")
	}
	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading %s: %v\n", configPath, err)
		return 1
	}
	svc := config.NewService(settings)

	cfgWatch, err := config.WatchFile(svc, configPath)
	if err != nil {
		logger.Warn("configuration file not watched", "path", configPath, "error", err)
	} else {
		defer cfgWatch.Close()
	}

	tracker := document.NewTracker()
	store := diag.NewStore(diag.WithChangeHandler(printDiagnostics))

	tool := runner.New(
		runner.WithLogger(logger),
		runner.WithNotice(func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		}),
	)

	provider := lint.NewProvider(svc, tracker,
		lint.WithRunner(tool),
		lint.WithStore(store),
		lint.WithLogger(logger),
	)

	if len(opts.Files) > 0 {
		for _, path := range opts.Files {
			if err := openFile(tracker, path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
		}
	} else if err := openWorkspace(tracker, opts.WorkspacePath, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Activate after the initial open so a project sweep covers every file.
	provider.Activate()
	defer provider.Dispose()

	watcher, err := watchWorkspace(opts.WorkspacePath, tracker, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: watching %s: %v\n", opts.WorkspacePath, err)
		return 1
	}
	defer watcher.Close()

	logger.Info("watching workspace",
		"workspace", opts.WorkspacePath,
		"documents", tracker.Count(),
		"trigger", svc.Settings().Trigger,
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	sum := store.Summarize()
	fmt.Fprintf(os.Stderr, "%d file(s) with findings: %d error(s), %d warning(s)\n",
		sum.Files, sum.Errors, sum.Warnings)

	if sum.Errors > 0 {
		return 1
	}
	return 0
}

// openFile reads one explicitly named file into the tracker.
func openFile(tracker *document.Tracker, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	tracker.Open(abs, document.LanguageForPath(abs), string(content))
	return nil
}

// openWorkspace walks the workspace and opens every file with a recognizable
// language. Hidden directories are skipped.
func openWorkspace(tracker *document.Tracker, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		lang := document.LanguageForPath(path)
		if lang == "" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		tracker.Open(abs, lang, string(content))
		return nil
	})
}

// printDiagnostics writes each published finding to stdout in the familiar
// path:line:col form. A nil set means the document's findings were cleared.
func printDiagnostics(_ document.ID, diagnostics []diag.Diagnostic) {
	for _, d := range diagnostics {
		line := fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
		if d.Code != "" {
			line += fmt.Sprintf(" [%s]", d.Code)
		}
		fmt.Println(line)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.WorkspacePath, "workspace", ".", "Workspace/project directory")
	flag.StringVar(&opts.WorkspacePath, "w", ".", "Workspace/project directory (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Lintstorm - external linter runner for live workspaces\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lintstorm [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lintstorm                   Watch the current directory\n")
		fmt.Fprintf(os.Stderr, "  lintstorm -w ./project      Watch a workspace\n")
		fmt.Fprintf(os.Stderr, "  lintstorm file.go           Watch specific files\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Lintstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	opts.Files = flag.Args()

	if abs, err := filepath.Abs(opts.WorkspacePath); err == nil {
		opts.WorkspacePath = abs
	}

	return opts
}
