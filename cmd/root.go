// Package cmd implements the CLI command structure for fanout.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/logging"
	"github.com/nibzard/fanout-go/internal/tasks"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the fanout CLI.
func Run(ctx context.Context, args []string) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("fanout", flag.ContinueOnError)
	fs.Usage = func() {
		printUsage(fs, os.Stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, os.Stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// No subcommand (or a flag first) means "run"
	subcommand := "run"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "run":
		return runCommand(ctx, cfg, remainingArgs)
	case "validate":
		return validateCommand(cfg, remainingArgs)
	case "plan":
		return planCommand(cfg, remainingArgs)
	case "status":
		return statusCommand(cfg, remainingArgs)
	case "tail":
		return tailCommand(ctx, cfg, remainingArgs)
	case "ls":
		return lsCommand(cfg, remainingArgs)
	case "doctor":
		return doctorCommand(cfg, remainingArgs)
	case "init":
		return initCommand(cfg, remainingArgs)
	case "version", "--version", "-v":
		return versionCommand()
	case "help", "--help", "-h":
		printUsage(fs, os.Stdout)
		return nil
	default:
		// An existing file is shorthand for `run <file>`
		if fi, err := os.Stat(subcommand); err == nil && !fi.IsDir() {
			cfg.TasksFile = subcommand
			return runCommand(ctx, cfg, remainingArgs)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, os.Stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// tasksPath resolves the task file from an optional positional argument.
func tasksPath(cfg *config.Config, remaining []string) (string, error) {
	if len(remaining) > 1 {
		return "", fmt.Errorf("unexpected arguments: %v", remaining[1:])
	}
	path := cfg.TasksFile
	if len(remaining) == 1 {
		path = remaining[0]
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectRoot, path)
	}
	return path, nil
}

// loadTasks loads and validates a task file.
func loadTasks(path string) (*tasks.File, error) {
	file, err := tasks.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading task file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task file %s: %w", path, err)
	}
	return file, nil
}

// logDir resolves the log directory for the current project.
func logDir(cfg *config.Config) (string, error) {
	workDir := cfg.ProjectRoot
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		workDir = wd
	}
	return logging.FindLogDir(cfg.LogDir, workDir)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Printf("fanout version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Fanout - Run a graph of agent tasks over a bounded worker pool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fanout [options] [command] [command options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run [file]       Run a task file (default command)")
	fmt.Fprintln(w, "  validate [file]  Check a task file without running it")
	fmt.Fprintln(w, "  plan [file]      Show strategy, levels and model per task")
	fmt.Fprintln(w, "  status           Show the result of the latest run")
	fmt.Fprintln(w, "  tail             Tail the latest run log")
	fmt.Fprintln(w, "  ls               List recorded runs")
	fmt.Fprintln(w, "  doctor [file]    Check agents, config and task file")
	fmt.Fprintln(w, "  init             Write an example task file and config")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w, "  help             Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run Options (use with 'run' command):")
	fmt.Fprintln(w, "  -strategy string")
	fmt.Fprintln(w, "        Scheduling strategy (adaptive|single_agent|sequential|parallel|breadth_first)")
	fmt.Fprintln(w, "  -ui string")
	fmt.Fprintln(w, "        UI mode (tui for terminal UI)")
	fmt.Fprintln(w, "  -dry-run")
	fmt.Fprintln(w, "        Echo tasks instead of starting agents")
	fmt.Fprintln(w, "  -dry-run-delay duration")
	fmt.Fprintln(w, "        Simulated work per task in a dry run")
	fmt.Fprintln(w, "  -json")
	fmt.Fprintln(w, "        Print the execution result as JSON")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tail Options (use with 'tail' command):")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Init Options (use with 'init' command):")
	fmt.Fprintln(w, "  -force")
	fmt.Fprintln(w, "        Overwrite existing files")
}
