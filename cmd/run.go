package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nibzard/fanout-go/internal/agents"
	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/logging"
	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/ui"
)

// eventBuffer is the TUI channel size; progress events beyond it are dropped.
const eventBuffer = 64

// runCommand executes a task file.
func runCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout run", flag.ContinueOnError)
	strategyName := fs.String("strategy", "", "Scheduling strategy (adaptive|single_agent|sequential|parallel|breadth_first)")
	uiMode := fs.String("ui", "", "UI mode (tui for terminal UI)")
	dryRun := fs.Bool("dry-run", false, "Echo tasks instead of starting agents")
	dryRunDelay := fs.Duration("dry-run-delay", 0, "Simulated work per task in a dry run")
	stream := fs.Bool("stream", false, "Print agent output as it arrives")
	jsonOut := fs.Bool("json", false, "Print the execution result as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := tasksPath(cfg, fs.Args())
	if err != nil {
		return err
	}
	strategy, err := scheduler.ParseStrategy(*strategyName)
	if err != nil {
		return err
	}
	useTUI := false
	switch *uiMode {
	case "":
	case "tui":
		if !ui.IsTTY(os.Stdout) {
			return fmt.Errorf("tui requires a terminal")
		}
		useTUI = true
	default:
		return fmt.Errorf("unknown ui mode %q (expected tui)", *uiMode)
	}

	file, err := loadTasks(path)
	if err != nil {
		return err
	}
	taskList, err := file.ToTasks()
	if err != nil {
		return err
	}
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}

	runLog, err := logging.NewRunLogger(cfg.LogDir, cfg.ProjectRoot, "")
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer runLog.Close()

	console := agents.NewConsoleLogWriterFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller, "fanout")
	writers := []agents.LogWriter{agents.NewIOStreamLogWriter(runLog.Writer())}
	if !useTUI {
		writers = append(writers, console)
		if *stream {
			writers = append(writers, agents.NewMultiplexedLogWriter(os.Stdout))
		}
	}
	logWriter := agents.NewMultiLogWriter(writers...)

	exec, err := newExecutor(cfg, taskList, *dryRun, *dryRunDelay, logWriter)
	if err != nil {
		return err
	}

	eventLog := agents.NewEventLogWriter(logWriter)
	opts := []scheduler.Option{
		scheduler.WithRunID(runLog.RunID),
		scheduler.WithEventHandler(eventLog),
		scheduler.WithResultStore(runLog),
	}
	// Scheduler internals only show at debug level, and never under the TUI.
	if !useTUI && console.Logger().GetLevel() <= log.DebugLevel {
		opts = append(opts, scheduler.WithLogger(console.Logger().WithPrefix("scheduler")))
	}
	var events chan scheduler.Event
	if useTUI {
		events = make(chan scheduler.Event, eventBuffer)
		opts = append(opts, scheduler.WithEventHandler(scheduler.ChannelHandler(events)))
	}

	sched, err := scheduler.New(schedCfg, exec, opts...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result *scheduler.ExecutionResult
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if events != nil {
			defer close(events)
		}
		res, err := sched.RunWithStrategy(gctx, taskList, strategy)
		result = res
		return err
	})
	if useTUI {
		g.Go(func() error {
			return ui.Run(gctx, sched, events, cancel)
		})
	}
	runErr := g.Wait()

	if err := eventLog.Err(); err != nil {
		console.Logger().Warn("writing run log", "err", err)
	}

	if result != nil {
		if *jsonOut {
			if err := printResultJSON(os.Stdout, result); err != nil {
				return err
			}
		} else {
			printResult(os.Stdout, result)
			fmt.Printf("Workers: %d\n", sched.Pool().Status().TotalWorkers)
			fmt.Printf("Log: %s\n", runLog.LogPath)
			fmt.Printf("Result: %s\n", runLog.ResultPath())
		}
	}

	if runErr != nil {
		if errors.Is(runErr, scheduler.ErrCancelled) {
			return runErr
		}
		return fmt.Errorf("run: %w", runErr)
	}
	if result != nil && !result.Success {
		return fmt.Errorf("%d of %d task(s) did not succeed", result.FailedCount+result.SkippedCount, len(result.Results))
	}
	return nil
}

// newExecutor builds the executor for a run. Outside a dry run every task
// type must resolve to a configured agent before anything starts.
func newExecutor(cfg *config.Config, taskList []scheduler.Task, dryRun bool, delay time.Duration, logWriter agents.LogWriter) (scheduler.Executor, error) {
	if dryRun {
		return agents.NewEchoExecutor(delay, logWriter), nil
	}
	router, err := agents.FromConfig(cfg, logWriter)
	if err != nil {
		return nil, fmt.Errorf("configuring agents: %w", err)
	}
	for _, t := range taskList {
		if _, err := router.Lookup(t.Type); err != nil {
			return nil, fmt.Errorf("task %s: %w (set [agents.%s] or [agents.%s] in fanout.toml, or use --dry-run)",
				t.ID, err, t.Type, config.DefaultAgentKey)
		}
	}
	return router, nil
}

// printResult prints a human-readable run report.
func printResult(w io.Writer, result *scheduler.ExecutionResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s (%s)\n", result.RunID, result.Strategy)
	for _, r := range result.Results {
		icon := "✅"
		if !r.Success {
			icon = "❌"
		}
		fmt.Fprintf(w, "  %s %s (%s", icon, r.TaskID, r.Duration.Round(time.Millisecond))
		if r.Retries > 0 {
			fmt.Fprintf(w, ", %d retries", r.Retries)
		}
		fmt.Fprint(w, ")")
		if r.Error != "" {
			fmt.Fprintf(w, ": %s", r.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Succeeded: %d  Failed: %d  Skipped: %d  Cancelled: %d\n",
		result.SuccessfulCount, result.FailedCount, result.SkippedCount, result.CancelledCount)
	fmt.Fprintf(w, "Duration: %s\n", result.TotalDuration.Round(time.Millisecond))
	if u := result.TotalTokenUsage; u.TotalTokens > 0 {
		fmt.Fprintf(w, "Tokens: %d (in %d, out %d)\n", u.TotalTokens, u.InputTokens, u.OutputTokens)
	}
	if result.MergedSummary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, result.MergedSummary)
	}
	fmt.Fprintln(w)
}

func printResultJSON(w io.Writer, result *scheduler.ExecutionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
