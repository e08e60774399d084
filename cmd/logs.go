package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/logging"
)

// tailCommand tails the latest run log.
func tailCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout tail", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := logDir(cfg)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}
	logPath, err := logging.FindLatestLog(dir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Println("No log files found.")
		return nil
	}

	fmt.Printf("Tailing: %s\n", logPath)
	if *follow {
		fmt.Println("(Ctrl+C to stop)")
	}
	fmt.Println()

	return logging.TailLog(ctx, os.Stdout, logPath, *n, *follow)
}

// lsCommand lists recorded runs, newest first.
func lsCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout ls", flag.ContinueOnError)
	limit := fs.Int("n", 0, "Number of runs to show (0 = all)")
	verbose := fs.Bool("v", false, "Show file paths")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	dir, err := logDir(cfg)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Println("No runs found.")
		return nil
	}
	runs, err := logging.FindLogRuns(dir)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}
	if *limit > 0 && len(runs) > *limit {
		runs = runs[:*limit]
	}

	for _, run := range runs {
		fmt.Printf("  %s %s  %s\n", runIcon(run), run.RunID, run.ModTime.Local().Format(time.DateTime))
		if *verbose {
			if run.LogFile != "" {
				fmt.Printf("      log:    %s\n", run.LogFile)
			}
			if run.ResultFile != "" {
				fmt.Printf("      result: %s\n", run.ResultFile)
			}
		}
	}
	return nil
}

// runIcon summarizes a run from its result file. Runs without one are still
// in progress or were interrupted before saving.
func runIcon(run logging.LogRun) string {
	if run.ResultFile == "" {
		return "🔄"
	}
	result, err := logging.LoadResult(run.ResultFile)
	switch {
	case err != nil:
		return "❓"
	case result.Success:
		return "✅"
	case result.CancelledCount > 0:
		return "🚫"
	default:
		return "❌"
	}
}
