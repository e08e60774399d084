// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/tasks"
)

const testTasks = `{
  "schema_version": 1,
  "name": "cli",
  "tasks": [
    {"id": "scan", "type": "explore", "prompt": "List the packages."},
    {"id": "fix", "type": "code", "prompt": "Fix the bug.", "dependencies": ["scan"]}
  ]
}`

// isolate points config lookups at empty temp dirs, clears FANOUT_* variables
// and moves into a fresh project directory, which it returns.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "FANOUT_") {
			t.Setenv(key, "")
		}
	}
	project := t.TempDir()
	t.Chdir(project)
	return project
}

// loadConfig loads configuration the way Run does, with global flags in args.
func loadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cfg, err := config.Load(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func writeTasks(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()

	runErr := fn()
	_ = w.Close()

	output, readErr := io.ReadAll(r)
	_ = r.Close()
	if readErr != nil {
		t.Fatalf("ReadAll() error = %v", readErr)
	}

	return string(output), runErr
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	isolate(t)

	t.Run("shows help with --help flag", func(t *testing.T) {
		out, err := captureStdout(t, func() error { return Run(context.Background(), []string{"--help"}) })
		if err != nil {
			t.Errorf("expected no error with --help, got %v", err)
		}
		if !strings.Contains(out, "Commands:") {
			t.Errorf("help output missing commands: %q", out)
		}
	})

	t.Run("shows help with -h flag", func(t *testing.T) {
		_, err := captureStdout(t, func() error { return Run(context.Background(), []string{"-h"}) })
		if err != nil {
			t.Errorf("expected no error with -h, got %v", err)
		}
	})

	t.Run("shows version with --version flag", func(t *testing.T) {
		out, err := captureStdout(t, func() error { return Run(context.Background(), []string{"--version"}) })
		if err != nil {
			t.Errorf("expected no error with --version, got %v", err)
		}
		if !strings.Contains(out, "fanout version "+Version) {
			t.Errorf("version output = %q", out)
		}
	})

	t.Run("shows version with -v flag", func(t *testing.T) {
		_, err := captureStdout(t, func() error { return Run(context.Background(), []string{"-v"}) })
		if err != nil {
			t.Errorf("expected no error with -v, got %v", err)
		}
	})

	t.Run("shows help with help command", func(t *testing.T) {
		_, err := captureStdout(t, func() error { return Run(context.Background(), []string{"help"}) })
		if err != nil {
			t.Errorf("expected no error with help command, got %v", err)
		}
	})

	t.Run("unknown command returns error", func(t *testing.T) {
		err := Run(context.Background(), []string{"unknown-command"})
		if err == nil {
			t.Fatal("expected error for unknown command, got nil")
		}
		if !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", err)
		}
	})

	t.Run("invalid global flag value returns error", func(t *testing.T) {
		err := Run(context.Background(), []string{"-preset", "turbo", "version"})
		if err == nil || !strings.Contains(err.Error(), "loading config") {
			t.Errorf("expected config error, got %v", err)
		}
	})

	t.Run("doctor command executes", func(t *testing.T) {
		_, err := captureStdout(t, func() error { return Run(context.Background(), []string{"doctor"}) })
		if err != nil && !strings.Contains(err.Error(), "failed") {
			t.Errorf("doctor command failed: %v", err)
		}
	})

	t.Run("run without task file returns error", func(t *testing.T) {
		err := Run(context.Background(), []string{"run", "-dry-run"})
		if err == nil || !strings.Contains(err.Error(), "loading task file") {
			t.Errorf("expected task file error, got %v", err)
		}
	})
}

func TestRunDryRun(t *testing.T) {
	project := isolate(t)
	writeTasks(t, project, testTasks)
	logDir := filepath.Join(project, "logs")
	ctx := context.Background()

	out, err := captureStdout(t, func() error {
		return Run(ctx, []string{"-log-dir", logDir, "run", "-dry-run", "tasks.json"})
	})
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	for _, want := range []string{"✅ scan", "✅ fix", "Succeeded: 2", "Log: ", "Result: "} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}

	out, err = captureStdout(t, func() error { return Run(ctx, []string{"-log-dir", logDir, "status"}) })
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Status: succeeded") {
		t.Errorf("status output = %q", out)
	}

	out, err = captureStdout(t, func() error { return Run(ctx, []string{"-log-dir", logDir, "ls"}) })
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}
	if !strings.Contains(out, "✅") {
		t.Errorf("ls output = %q", out)
	}

	out, err = captureStdout(t, func() error { return Run(ctx, []string{"-log-dir", logDir, "tail", "-n", "1"}) })
	if err != nil {
		t.Fatalf("tail error = %v", err)
	}
	if !strings.Contains(out, `"type":"run_completed"`) {
		t.Errorf("tail output = %q", out)
	}
}

func TestRunFileShorthand(t *testing.T) {
	project := isolate(t)
	writeTasks(t, project, testTasks)

	out, err := captureStdout(t, func() error {
		return Run(context.Background(), []string{"-log-dir", filepath.Join(project, "logs"), "tasks.json", "-dry-run", "-json"})
	})
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, `"successful_count": 2`) {
		t.Errorf("json output = %q", out)
	}
}

func TestRunCommandErrors(t *testing.T) {
	project := isolate(t)
	writeTasks(t, project, testTasks)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad strategy", []string{"-strategy", "random", "-dry-run"}, "invalid strategy"},
		{"bad ui", []string{"-ui", "web", "-dry-run"}, "unknown ui mode"},
		{"too many args", []string{"-dry-run", "a.json", "b.json"}, "unexpected arguments"},
		{"no agent", nil, "use --dry-run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, "-log-dir", filepath.Join(project, "logs"))
			err := runCommand(context.Background(), cfg, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runCommand() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunCommandAgents(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses the true and false commands")
	}
	project := isolate(t)
	writeTasks(t, project, testTasks)
	logs := filepath.Join(project, "logs")

	t.Run("succeeding agent", func(t *testing.T) {
		cfg := loadConfig(t, "-log-dir", logs, "-agent", "default=true")
		out, err := captureStdout(t, func() error { return runCommand(context.Background(), cfg, nil) })
		if err != nil {
			t.Fatalf("runCommand() error = %v", err)
		}
		if !strings.Contains(out, "Succeeded: 2") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("failing agent skips dependents", func(t *testing.T) {
		cfg := loadConfig(t, "-log-dir", logs, "-agent", "default=false", "-retry=false")
		out, err := captureStdout(t, func() error { return runCommand(context.Background(), cfg, nil) })
		if err == nil || !strings.Contains(err.Error(), "did not succeed") {
			t.Fatalf("runCommand() error = %v", err)
		}
		if !strings.Contains(out, "❌ scan") || !strings.Contains(out, "Skipped: 1") {
			t.Errorf("output = %q", out)
		}
	})
}

func TestRunCommandCancelled(t *testing.T) {
	project := isolate(t)
	writeTasks(t, project, testTasks)
	cfg := loadConfig(t, "-log-dir", filepath.Join(project, "logs"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := captureStdout(t, func() error {
		return runCommand(ctx, cfg, []string{"-dry-run", "-dry-run-delay", "10s"})
	})
	if err == nil {
		t.Fatal("expected an error from a cancelled run")
	}
	if scheduler.Kind(err) != scheduler.TierRun {
		t.Errorf("Kind(%v) = %v, want run", err, scheduler.Kind(err))
	}
}

func TestValidateCommand(t *testing.T) {
	project := isolate(t)

	t.Run("valid file", func(t *testing.T) {
		path := writeTasks(t, project, testTasks)
		out, err := captureStdout(t, func() error { return validateCommand(loadConfig(t), []string{path}) })
		if err != nil {
			t.Fatalf("validateCommand() error = %v", err)
		}
		if !strings.Contains(out, "Valid (2 tasks)") || !strings.Contains(out, "Ready order: scan, fix") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		path := writeTasks(t, project, `{"tasks": [
			{"id": "a", "type": "code", "prompt": "x", "dependencies": ["b"]},
			{"id": "b", "type": "code", "prompt": "y", "dependencies": ["a"]}
		]}`)
		out, err := captureStdout(t, func() error { return validateCommand(loadConfig(t), []string{path}) })
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(out, "circular dependency") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeTasks(t, project, `{"tasks": [{"id": "a", "type": "code"}]}`)
		out, err := captureStdout(t, func() error { return validateCommand(loadConfig(t), []string{path}) })
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(out, "Validation failed") {
			t.Errorf("output = %q", out)
		}
	})
}

func TestPlanCommand(t *testing.T) {
	project := isolate(t)
	path := writeTasks(t, project, testTasks)

	out, err := captureStdout(t, func() error { return planCommand(loadConfig(t), []string{path}) })
	if err != nil {
		t.Fatalf("planCommand() error = %v", err)
	}
	for _, want := range []string{
		"Plan: cli",
		"Strategy: sequential (1 workers)",
		"scan [explore] simple, model haiku (recommended)",
		"fix [code] complex, model opus (recommended)",
		"after: scan",
		"1: scan",
		"2: fix",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanModel(t *testing.T) {
	isolate(t)
	task := scheduler.Task{ID: "a", Type: "code", Model: "task-model"}

	tests := []struct {
		name       string
		args       []string
		task       scheduler.Task
		wantModel  string
		wantSource string
	}{
		{"recommended", nil, scheduler.Task{ID: "a", Type: "code"}, "opus", "recommended"},
		{"default model", []string{"-model", "m1"}, scheduler.Task{ID: "a", Type: "code"}, "m1", "default"},
		{"task model wins over default", []string{"-model", "m1"}, task, "task-model", "task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.args...)
			model, source := planModel(cfg, tt.task, scheduler.EstimateComplexity(tt.task))
			if model != tt.wantModel || source != tt.wantSource {
				t.Errorf("planModel() = %s (%s), want %s (%s)", model, source, tt.wantModel, tt.wantSource)
			}
		})
	}

	cfg := loadConfig(t)
	cfg.Agents.SetAgent("code", config.Agent{Binary: "agent", Model: "agent-model"})
	if model, source := planModel(cfg, task, scheduler.ComplexityComplex); model != "agent-model" || source != "agent" {
		t.Errorf("planModel() = %s (%s), want agent-model (agent)", model, source)
	}
}

func TestStatusAndLsWithoutRuns(t *testing.T) {
	project := isolate(t)
	cfg := loadConfig(t, "-log-dir", filepath.Join(project, "logs"))

	out, err := captureStdout(t, func() error { return statusCommand(cfg, nil) })
	if err != nil || !strings.Contains(out, "No runs found.") {
		t.Errorf("statusCommand() = %q, %v", out, err)
	}
	out, err = captureStdout(t, func() error { return lsCommand(cfg, nil) })
	if err != nil || !strings.Contains(out, "No runs found.") {
		t.Errorf("lsCommand() = %q, %v", out, err)
	}
	out, err = captureStdout(t, func() error { return tailCommand(context.Background(), cfg, nil) })
	if err != nil || !strings.Contains(out, "No log files found.") {
		t.Errorf("tailCommand() = %q, %v", out, err)
	}
}

func TestDoctorCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses the true command")
	}
	project := isolate(t)
	writeTasks(t, project, testTasks)

	t.Run("agents resolve", func(t *testing.T) {
		cfg := loadConfig(t, "-agent", "default=true")
		out, err := captureStdout(t, func() error { return doctorCommand(cfg, nil) })
		if err != nil {
			t.Fatalf("doctorCommand() error = %v\n%s", err, out)
		}
		if !strings.Contains(out, "All checks passed") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		cfg := loadConfig(t, "-agent", "code=definitely-not-a-real-binary-xyz")
		out, err := captureStdout(t, func() error { return doctorCommand(cfg, nil) })
		if err == nil {
			t.Fatal("expected doctor to fail")
		}
		if !strings.Contains(out, "definitely-not-a-real-binary-xyz") || !strings.Contains(out, `No agent for task type "explore"`) {
			t.Errorf("output = %q", out)
		}
	})
}

func TestInitCommandCreatesFiles(t *testing.T) {
	project := isolate(t)
	cfg := loadConfig(t)

	if _, err := captureStdout(t, func() error { return initCommand(cfg, nil) }); err != nil {
		t.Fatalf("initCommand() error = %v", err)
	}

	tasksFile, err := tasks.Load(filepath.Join(project, "tasks.json"))
	if err != nil {
		t.Fatalf("tasks.Load() error = %v", err)
	}
	if len(tasksFile.Tasks) != len(tasks.Example().Tasks) {
		t.Errorf("Tasks = %d, want %d", len(tasksFile.Tasks), len(tasks.Example().Tasks))
	}

	configData, err := os.ReadFile(filepath.Join(project, projectConfigName))
	if err != nil {
		t.Fatalf("ReadFile(config) error = %v", err)
	}
	if string(configData) != config.ExampleConfig() {
		t.Error("config file does not match example config")
	}

	// The written config must load cleanly.
	loadConfig(t)
}

func TestInitCommandSkipsExistingFiles(t *testing.T) {
	project := isolate(t)
	cfg := loadConfig(t)
	tasksPath := filepath.Join(project, "tasks.json")
	if err := os.WriteFile(tasksPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := captureStdout(t, func() error { return initCommand(cfg, []string{"-skip-config"}) }); err != nil {
		t.Fatalf("initCommand() error = %v", err)
	}

	data, err := os.ReadFile(tasksPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "existing" {
		t.Error("task file was overwritten without -force")
	}
	if _, err := os.Stat(filepath.Join(project, projectConfigName)); !os.IsNotExist(err) {
		t.Errorf("config written despite -skip-config: %v", err)
	}

	if _, err := captureStdout(t, func() error { return initCommand(cfg, []string{"-force", "-skip-config"}) }); err != nil {
		t.Fatalf("initCommand(-force) error = %v", err)
	}
	if _, err := tasks.Load(tasksPath); err != nil {
		t.Errorf("task file not replaced with -force: %v", err)
	}
}

func TestTasksPath(t *testing.T) {
	cfg := &config.Config{TasksFile: "/abs/tasks.json", ProjectRoot: "/project"}

	got, err := tasksPath(cfg, nil)
	if err != nil || got != "/abs/tasks.json" {
		t.Errorf("tasksPath() = %q, %v", got, err)
	}
	got, err = tasksPath(cfg, []string{"other.yaml"})
	if err != nil || got != filepath.Join("/project", "other.yaml") {
		t.Errorf("tasksPath(other.yaml) = %q, %v", got, err)
	}
	if _, err := tasksPath(cfg, []string{"a", "b"}); err == nil {
		t.Error("expected error for two positional arguments")
	}
}

func TestPrintResult(t *testing.T) {
	result := &scheduler.ExecutionResult{
		RunID:    "r1",
		Strategy: scheduler.StrategyParallel,
		Results: []scheduler.Result{
			{TaskID: "a", Success: true, Duration: 1500 * time.Millisecond},
			{TaskID: "b", Error: "provider error: boom", Retries: 2},
		},
		SuccessfulCount: 1,
		FailedCount:     1,
		TotalTokenUsage: scheduler.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		MergedSummary:   "## Summary",
	}

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()
	for _, want := range []string{
		"Run r1 (parallel)",
		"✅ a (1.5s)",
		"❌ b (0s, 2 retries): provider error: boom",
		"Succeeded: 1  Failed: 1  Skipped: 0  Cancelled: 0",
		"Tokens: 15 (in 10, out 5)",
		"## Summary",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printResult missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := captureStdout(t, versionCommand)
	if err != nil {
		t.Errorf("versionCommand() returned error: %v", err)
	}
	if strings.TrimSpace(out) != "fanout version "+Version {
		t.Errorf("versionCommand() output = %q", out)
	}
}
