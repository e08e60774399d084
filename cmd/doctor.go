package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/tasks"
	"github.com/nibzard/fanout-go/internal/utils"
)

// doctorCommand checks agents, config, and task file validity.
func doctorCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout doctor", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := tasksPath(cfg, fs.Args())
	if err != nil {
		return err
	}

	fmt.Println("Fanout Doctor")
	fmt.Println("=============")
	fmt.Println()

	allOK := true

	// Check project root
	fmt.Printf("Project root: %s\n", cfg.ProjectRoot)
	if _, err := os.Stat(cfg.ProjectRoot); err != nil {
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	// Check scheduler settings
	fmt.Println("Config:")
	if sc, err := cfg.SchedulerConfig(); err != nil {
		fmt.Printf("  ❌ Scheduler: %v\n", err)
		allOK = false
	} else {
		preset := cfg.Preset
		if preset == "" {
			preset = "default"
		}
		fmt.Printf("  ✅ Scheduler: preset %s, %d workers, timeout %s, %d retries\n",
			preset, sc.MaxConcurrency, sc.DefaultTimeout, sc.MaxRetries)
		if *verbose {
			fmt.Printf("     stop_on_first_error=%t auto_summarize=%t summary_max_tokens=%d max_tasks=%d\n",
				sc.StopOnFirstError, sc.AutoSummarize, sc.SummaryMaxTokens, sc.MaxTasks)
		}
	}
	fmt.Println()

	// Check agents
	fmt.Println("Agents:")
	agentTypes := cfg.AgentTypes()
	if len(agentTypes) == 0 {
		fmt.Println("  ⚠️  None configured (only --dry-run will work)")
	}
	for _, name := range agentTypes {
		if !checkBinary(name, cfg.Agents.GetAgent(name).Binary) {
			allOK = false
		}
	}
	fmt.Println()

	// Check task file
	fmt.Printf("Task file: %s\n", path)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("  ⚠️  Not found (run `fanout init` to create one)")
	case err != nil:
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	case info.IsDir():
		fmt.Println("  ❌ Error: path is a directory")
		allOK = false
	default:
		if !checkTaskFile(cfg, path, *verbose) {
			allOK = false
		}
	}
	fmt.Println()

	// Check log directory
	fmt.Printf("Log directory: %s\n", cfg.LogDir)
	if _, err := os.Stat(cfg.LogDir); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("  ⚠️  Not found (will be created on run)")
		} else {
			fmt.Printf("  ❌ Error: %v\n", err)
			allOK = false
		}
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	if allOK {
		fmt.Println("✅ All checks passed!")
		return nil
	}
	fmt.Println("⚠️  Some checks failed. Fanout may not function correctly.")
	return fmt.Errorf("doctor checks failed")
}

// checkBinary reports whether an agent binary resolves to an executable.
func checkBinary(name, binary string) bool {
	path, err := utils.ResolveExecutable(binary)
	if err != nil {
		fmt.Printf("  ❌ %s: %s (%v)\n", name, binary, err)
		return false
	}
	fmt.Printf("  ✅ %s: %s\n", name, path)
	return true
}

// checkTaskFile validates the task file and checks every task type has an agent.
func checkTaskFile(cfg *config.Config, path string, verbose bool) bool {
	file, err := tasks.Load(path)
	if err == nil {
		err = file.Validate()
	}
	if err != nil {
		fmt.Println("  ❌ Validation failed:")
		var verrs tasks.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				fmt.Printf("     - %v\n", e)
			}
		} else {
			fmt.Printf("     - %v\n", err)
		}
		return false
	}
	fmt.Printf("  ✅ Valid (%d tasks)\n", len(file.Tasks))

	ok := true
	missing := map[string]bool{}
	for _, t := range file.Tasks {
		if _, found := cfg.AgentFor(t.Type); !found && !missing[t.Type] {
			missing[t.Type] = true
			fmt.Printf("  ❌ No agent for task type %q\n", t.Type)
			ok = false
		}
		if verbose {
			fmt.Printf("    - %s [%s] P%d\n", t.ID, t.Type, t.Priority)
		}
	}
	return ok
}
