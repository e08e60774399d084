package agents

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/summary"
)

// waitDelay bounds how long a killed agent may keep its output pipes open.
const waitDelay = 5 * time.Second

// CommandExecutor runs each task as an external agent process.
type CommandExecutor struct {
	cfg       Config
	logWriter LogWriter
}

var _ scheduler.Executor = (*CommandExecutor)(nil)

// NewCommandExecutor creates an executor for cfg. Output is streamed to
// logWriter, which may be nil.
func NewCommandExecutor(cfg Config, logWriter LogWriter) (*CommandExecutor, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, fmt.Errorf("agent %s: no binary configured", cfg.Name)
	}
	switch cfg.PromptFormat {
	case "":
		cfg.PromptFormat = config.PromptFormatStdin
	case config.PromptFormatStdin, config.PromptFormatArg:
	default:
		return nil, fmt.Errorf("agent %s: unknown prompt format %q", cfg.Name, cfg.PromptFormat)
	}
	return &CommandExecutor{cfg: cfg, logWriter: normalizeLogWriter(logWriter)}, nil
}

// Config returns the executor configuration.
func (e *CommandExecutor) Config() Config {
	return e.cfg
}

// Args returns the command line arguments used for task.
func (e *CommandExecutor) Args(task scheduler.Task) []string {
	args := append([]string(nil), e.cfg.Args...)
	model := e.cfg.Model
	if model == "" {
		model = task.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if e.cfg.PromptFormat == config.PromptFormatArg {
		args = append(args, task.Prompt)
	}
	return args
}

// Env returns the extra environment variables set for task.
func Env(task scheduler.Task) []string {
	env := []string{
		"FANOUT_TASK_ID=" + task.ID,
		"FANOUT_TASK_TYPE=" + task.Type,
	}
	if len(task.AllowedTools) > 0 {
		env = append(env, "FANOUT_ALLOWED_TOOLS="+strings.Join(task.AllowedTools, ","))
	}
	if len(task.DeniedTools) > 0 {
		env = append(env, "FANOUT_DENIED_TOOLS="+strings.Join(task.DeniedTools, ","))
	}
	if task.MaxTokens > 0 {
		env = append(env, "FANOUT_MAX_TOKENS="+strconv.Itoa(task.MaxTokens))
	}
	return env
}

// Execute runs the agent for task. A non-zero exit is reported as an error
// wrapping scheduler.ErrProvider; an expired deadline as
// scheduler.ErrTaskTimeout.
func (e *CommandExecutor) Execute(ctx context.Context, task scheduler.Task) (*scheduler.Result, error) {
	started := time.Now()

	cmd := exec.CommandContext(ctx, e.cfg.Binary, e.Args(task)...)
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), Env(task)...)
	if e.cfg.WorkDir != "" {
		cmd.Dir = e.cfg.WorkDir
	}
	if e.cfg.PromptFormat == config.PromptFormatStdin {
		cmd.Stdin = strings.NewReader(ensurePromptTerminator(task.Prompt))
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = e.write(task, LogEvent{Type: EventError, Content: err.Error()})
		return nil, fmt.Errorf("%w: start %s: %v", scheduler.ErrProvider, e.cfg.Binary, err)
	}
	// Log failures never abandon a started process; it must still be waited on.
	_ = e.write(task, LogEvent{Type: EventCommand, Command: cmd.Args})

	var (
		wg  sync.WaitGroup
		out streamResult
		se  stderrResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out = e.streamStdout(task, stdoutR)
	}()
	go func() {
		defer wg.Done()
		se = e.streamStderr(task, stderrR)
	}()

	runErr := cmd.Wait()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()

	exitCode := exitCodeFromError(runErr)
	_ = e.write(task, LogEvent{Type: EventCommand, Command: cmd.Args, ExitCode: exitCode})

	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s killed at deadline", scheduler.ErrTaskTimeout, e.cfg.Binary)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		msg := fmt.Sprintf("%s exited with code %d", e.cfg.Binary, exitCode)
		if se.lastLine != "" {
			msg += ": " + se.lastLine
		}
		_ = e.write(task, LogEvent{Type: EventError, Content: msg})
		return nil, fmt.Errorf("%w: %s", scheduler.ErrProvider, msg)
	}
	if out.err != nil {
		return nil, fmt.Errorf("%w: read output: %v", scheduler.ErrProvider, out.err)
	}

	res := &scheduler.Result{
		TaskID:   task.ID,
		Success:  true,
		Output:   out.output,
		Duration: time.Since(started),
		Metadata: map[string]any{"agent": e.cfg.Name, "exit_code": exitCode},
	}
	if r := out.report; r != nil {
		res.Summary = r.Summary
		if r.Usage != nil {
			res.TokenUsage = &scheduler.TokenUsage{
				InputTokens:  r.Usage.InputTokens,
				OutputTokens: r.Usage.OutputTokens,
				TotalTokens:  r.Usage.InputTokens + r.Usage.OutputTokens,
			}
		}
	}
	if res.Summary == "" && task.ReturnSummary {
		res.Summary = summary.New(task.MaxTokens).SummarizeResult(summary.Input{
			TaskID:   task.ID,
			Success:  true,
			Output:   res.Output,
			Duration: res.Duration,
		})
	}
	return res, nil
}

type streamResult struct {
	output string
	report *Report
	err    error
}

type stderrResult struct {
	lastLine string
}

// streamStdout logs each line and collects output. Report lines are kept
// out of the output; the last one wins.
func (e *CommandExecutor) streamStdout(task scheduler.Task, r io.Reader) streamResult {
	var (
		res   streamResult
		lines []string
	)
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if report, ok := parseReport(line); ok {
			res.report = report
			_ = e.write(task, LogEvent{Type: EventReport, Report: report})
			continue
		}
		lines = append(lines, line)
		_ = e.write(task, LogEvent{Type: EventAgentOutput, Content: line})
	}
	if err := scanner.Err(); err != nil {
		res.err = err
		_, _ = io.Copy(io.Discard, r)
	}
	res.output = strings.TrimRight(strings.Join(lines, "\n"), "\n")
	return res
}

func (e *CommandExecutor) streamStderr(task scheduler.Task, r io.Reader) stderrResult {
	var res stderrResult
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.lastLine = strings.TrimSpace(line)
		_ = e.write(task, LogEvent{Type: EventStderr, Content: line})
	}
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return res
}

func (e *CommandExecutor) write(task scheduler.Task, event LogEvent) error {
	event.Timestamp = time.Now().UTC()
	event.TaskID = task.ID
	event.TaskType = task.Type
	return e.logWriter.Write(event)
}

// parseReport recognizes a JSON object line carrying a "summary" key.
func parseReport(line string) (*Report, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return nil, false
	}
	var raw struct {
		Summary *string `json:"summary"`
		Usage   *Usage  `json:"usage"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil || raw.Summary == nil {
		return nil, false
	}
	return &Report{Summary: *raw.Summary, Usage: raw.Usage}, true
}

// newScanner creates a buffered scanner with consistent settings.
func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, ScanBufferSize), MaxScanTokenSize)
	return scanner
}

func ensurePromptTerminator(prompt string) string {
	if strings.HasSuffix(prompt, "\n") {
		return prompt
	}
	return prompt + "\n"
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
