// Package cmd implements the CLI command structure for tasklist.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklist-go/internal/config"
	"github.com/nibzard/tasklist-go/internal/document"
	"github.com/nibzard/tasklist-go/internal/logging"
	"github.com/nibzard/tasklist-go/internal/render"
	"github.com/nibzard/tasklist-go/internal/session"
	"github.com/nibzard/tasklist-go/internal/taskfile"
	"github.com/nibzard/tasklist-go/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

var stdoutIsTTY = func() bool { return ui.IsTTY(os.Stdout) }

// Run executes the tasklist CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tasklist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand(stdout)
	}

	// No args or a leading flag means "edit".
	subcommand := "edit"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "edit":
		return editCommand(ctx, cfg, remainingArgs, stderr)
	case "show":
		return showCommand(cfg, remainingArgs, stdout)
	case "validate":
		return validateCommand(cfg, remainingArgs, stdout)
	case "logs":
		return logsCommand(ctx, cfg, remainingArgs, stdout)
	case "init-config":
		fmt.Fprint(stdout, config.ExampleConfig())
		return nil
	case "version":
		return versionCommand(stdout)
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		// A bare file path opens it in the editor.
		if fi, err := os.Stat(subcommand); err == nil && !fi.IsDir() {
			cfg.File = subcommand
			return editCommand(ctx, cfg, remainingArgs, stderr)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// fileArg returns the single optional file argument, falling back to cfg.File.
func fileArg(cfg *config.Config, args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("unexpected arguments: %v", args[1:])
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return cfg.File, nil
}

func loggingOptions(cfg *config.Config) logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	opts.Format = cfg.LogFormat
	opts.Timestamps = cfg.LogTimestamps
	opts.Caller = cfg.LogCaller
	return opts
}

func newValidator(cfg *config.Config, logger *log.Logger) *taskfile.Validator {
	if cfg.SchemaFile == "" {
		return taskfile.DefaultValidator()
	}
	v := taskfile.NewValidator(cfg.SchemaFile)
	for _, w := range v.Warnings() {
		logger.Warn(w)
	}
	return v
}

// editCommand opens the interactive editor.
func editCommand(ctx context.Context, cfg *config.Config, args []string, stderr io.Writer) error {
	path, err := fileArg(cfg, args)
	if err != nil {
		return err
	}

	var logger *log.Logger
	sessionLog, err := logging.OpenSessionLog(cfg.LogDir, cfg.WorkDir, loggingOptions(cfg))
	if err != nil {
		fmt.Fprintf(stderr, "Warning: session log disabled: %v\n", err)
		logger = log.New(io.Discard)
	} else {
		defer sessionLog.Close()
		logger = sessionLog.Logger
		logger.Info("session started", "version", Version, "workdir", cfg.WorkDir)
	}

	sess := session.New(
		session.WithValidator(newValidator(cfg, logger)),
		session.WithLogger(logger),
		session.WithDefaultName(cfg.DefaultName),
	)
	if err := openFile(sess, path); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	if !stdoutIsTTY() {
		return fmt.Errorf("edit requires a TTY; use show to print a file")
	}
	err = ui.RunTUI(ctx, sess, ui.OptionsFromConfig(cfg, logger))
	if errors.Is(err, context.Canceled) {
		logger.Info("session interrupted")
		return err
	}
	if err != nil {
		logger.Error("editor failed", "err", err)
		return err
	}
	logger.Info("session ended", "dirty", sess.Dirty())
	return nil
}

// openFile loads path into sess. A path that does not exist yet becomes the
// destination of an empty document so the first save creates it.
func openFile(sess *session.Session, path string) error {
	if path == "" {
		return nil
	}
	err := sess.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return sess.Create(path)
	}
	return err
}

// showCommand prints a task list the way the editor draws it.
func showCommand(cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("tasklist show", flag.ContinueOnError)
	plain := fs.Bool("plain", false, "Disable styling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := fileArg(cfg, fs.Args())
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("show: no file given")
	}

	sections, err := newValidator(cfg, log.New(io.Discard)).Load(path)
	if err != nil {
		return err
	}
	doc := document.New()
	doc.Replace(sections)

	if f, ok := w.(*os.File); !ok || !ui.IsTTY(f) {
		*plain = true
	}
	fmt.Fprint(w, render.Draw(render.Build(doc, render.NoEdit), render.Options{Cursor: -1, Plain: *plain}))

	c := doc.Counts()
	fmt.Fprintf(w, "\n%d sections, %d/%d tasks done\n", c.Sections, c.Completed, c.Tasks)
	return nil
}

// validateCommand checks a file against the interchange schema.
func validateCommand(cfg *config.Config, args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("validate: expected exactly one file, got %d", len(args))
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	v := newValidator(cfg, log.New(io.Discard))
	result := v.Validate(data)

	fmt.Fprintf(w, "File: %s\n", path)
	if result.SchemaPath != "" {
		fmt.Fprintf(w, "Schema: %s\n", result.SchemaPath)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  ⚠️  %s\n", warning)
	}
	if result.Valid {
		fmt.Fprintln(w, "  ✅ Valid")
		return nil
	}
	fmt.Fprintln(w, "  ❌ Validation failed:")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "     - %v\n", e)
	}
	return fmt.Errorf("validation failed")
}

// logsCommand prints the latest session log for the working directory.
func logsCommand(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("tasklist logs", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}
	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(w, "No log files found.")
		return nil
	}

	fmt.Fprintf(w, "Log: %s\n\n", logPath)
	return logging.TailLog(ctx, w, logPath, *n, *follow)
}

func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "tasklist version %s\n", Version)
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "tasklist - edit sectioned task lists stored as JSON")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tasklist [options] [command] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  edit [file]      Open the editor (default command)")
	fmt.Fprintln(w, "  show [file]      Print a task list")
	fmt.Fprintln(w, "  validate <file>  Check a file against the task list schema")
	fmt.Fprintln(w, "  logs             Print the latest session log")
	fmt.Fprintln(w, "  init-config      Print an example tasklist.toml")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w, "  help             Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Show Options:")
	fmt.Fprintln(w, "  -plain")
	fmt.Fprintln(w, "        Disable styling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logs Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
}
