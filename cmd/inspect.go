package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/logging"
	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/tasks"
)

// validateCommand checks a task file without running it.
func validateCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := tasksPath(cfg, fs.Args())
	if err != nil {
		return err
	}

	fmt.Printf("Task file: %s\n", path)
	file, err := tasks.Load(path)
	if err == nil {
		err = file.Validate()
	}
	if err != nil {
		var verrs tasks.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Println("  ❌ Validation failed:")
			for _, e := range verrs {
				fmt.Printf("     - %v\n", e)
			}
		} else {
			fmt.Printf("  ❌ %v\n", err)
		}
		return fmt.Errorf("task file is invalid")
	}

	taskList, err := file.ToTasks()
	if err != nil {
		return err
	}
	fmt.Printf("  ✅ Valid (%d tasks)\n", len(taskList))
	if cfg.MaxTasks > 0 && len(taskList) > cfg.MaxTasks {
		fmt.Printf("  ⚠️  %d tasks exceeds max_tasks %d\n", len(taskList), cfg.MaxTasks)
	}
	fmt.Printf("  Strategy: %s\n", scheduler.SelectStrategy(taskList))
	ready := scheduler.ReadyOrder(taskList)
	ids := make([]string, len(ready))
	for i, t := range ready {
		ids[i] = t.ID
	}
	fmt.Printf("  Ready order: %s\n", strings.Join(ids, ", "))
	return nil
}

// planCommand shows how a task file would be scheduled.
func planCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout plan", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := tasksPath(cfg, fs.Args())
	if err != nil {
		return err
	}
	file, err := loadTasks(path)
	if err != nil {
		return err
	}
	taskList, err := file.ToTasks()
	if err != nil {
		return err
	}

	strategy := scheduler.SelectStrategy(taskList)
	workers := 1
	if strategy == scheduler.StrategyParallel || strategy == scheduler.StrategyBreadthFirst {
		workers = cfg.MaxConcurrency
	}

	name := file.Name
	if name == "" {
		name = path
	}
	fmt.Printf("Plan: %s\n", name)
	fmt.Printf("Strategy: %s (%d workers)\n", strategy, workers)
	fmt.Println()

	fmt.Println("Tasks:")
	for _, t := range taskList {
		complexity := scheduler.EstimateComplexity(t)
		model, source := planModel(cfg, t, complexity)
		fmt.Printf("  - %s [%s] %s, model %s (%s), suggested concurrency %d\n",
			t.ID, t.Type, complexity, model, source, scheduler.RecommendedConcurrency(complexity))
		if len(t.Dependencies) > 0 {
			fmt.Printf("      after: %s\n", strings.Join(t.Dependencies, ", "))
		}
		if agent, ok := cfg.AgentFor(t.Type); ok {
			fmt.Printf("      agent: %s\n", agent.Binary)
		}
	}
	fmt.Println()

	fmt.Println("Levels:")
	for i, level := range scheduler.Levels(taskList) {
		fmt.Printf("  %d: %s\n", i+1, strings.Join(level, ", "))
	}
	return nil
}

// planModel reports the model a task will run with and where it comes from.
func planModel(cfg *config.Config, t scheduler.Task, c scheduler.Complexity) (string, string) {
	if model := cfg.GetAgentModel(t.Type); model != "" {
		return model, "agent"
	}
	if t.Model != "" {
		return t.Model, "task"
	}
	if cfg.DefaultModel != "" {
		return cfg.DefaultModel, "default"
	}
	return scheduler.RecommendedModel(c), "recommended"
}

// statusCommand prints the result of the latest run.
func statusCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout status", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Print the result as JSON")
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
	resultPath, err := logging.FindLatestResult(dir)
	if err != nil {
		return fmt.Errorf("finding latest result: %w", err)
	}
	if resultPath == "" {
		fmt.Println("No runs found.")
		return nil
	}
	result, err := logging.LoadResult(resultPath)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printResultJSON(os.Stdout, result)
	}
	state := "succeeded"
	if !result.Success {
		state = "failed"
	}
	if result.CancelledCount > 0 {
		state = "cancelled"
	}
	fmt.Printf("Result: %s\n", resultPath)
	printResult(os.Stdout, result)
	fmt.Printf("Status: %s\n", state)
	if len(result.Results) > 0 {
		last := result.Results[0].CompletedAt
		for _, r := range result.Results {
			if r.CompletedAt.After(last) {
				last = r.CompletedAt
			}
		}
		if !last.IsZero() {
			fmt.Printf("Finished: %s\n", last.Local().Format(time.DateTime))
		}
	}
	return nil
}
