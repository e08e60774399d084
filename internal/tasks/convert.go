package tasks

import (
	"fmt"

	"github.com/nibzard/fanout-go/internal/scheduler"
)

// Validate runs the checks the schema cannot express: timeouts must parse and
// the dependency graph must be well formed.
func (f *File) Validate() error {
	var errs ValidationErrors
	for i, spec := range f.Tasks {
		if _, err := spec.Timeout.Duration(); err != nil {
			errs = append(errs, &ValidationError{
				Path: fmt.Sprintf("tasks[%d].timeout", i),
				Err:  err,
			})
		}
	}
	if err := scheduler.ValidateDependencies(f.toTasks()); err != nil {
		errs = append(errs, &ValidationError{Path: "tasks", Err: err})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToTasks validates the set and converts it into scheduler tasks, preserving
// file order.
func (f *File) ToTasks() ([]scheduler.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.toTasks(), nil
}

// GetTask returns a task by ID, or nil if not found.
func (f *File) GetTask(id string) *TaskSpec {
	for i := range f.Tasks {
		if f.Tasks[i].ID == id {
			return &f.Tasks[i]
		}
	}
	return nil
}

// toTasks converts without validation. Unparseable timeouts become zero.
func (f *File) toTasks() []scheduler.Task {
	out := make([]scheduler.Task, 0, len(f.Tasks))
	for _, spec := range f.Tasks {
		timeout, _ := spec.Timeout.Duration()
		out = append(out, scheduler.Task{
			ID:            spec.ID,
			Type:          spec.Type,
			Prompt:        spec.Prompt,
			Description:   spec.Description,
			Dependencies:  append([]string(nil), spec.Dependencies...),
			Priority:      spec.Priority,
			Timeout:       timeout,
			Model:         spec.Model,
			ReturnSummary: spec.ReturnSummary,
			AllowedTools:  append([]string(nil), spec.AllowedTools...),
			DeniedTools:   append([]string(nil), spec.DeniedTools...),
			MaxTokens:     spec.MaxTokens,
		})
	}
	return out
}

// Example returns a small task set used by `fanout init`.
func Example() *File {
	return &File{
		SchemaVersion: SchemaVersion,
		Name:          "example",
		Tasks: []TaskSpec{
			{ID: "explore", Type: "explore", Prompt: "Map the repository layout and list the main packages."},
			{ID: "search", Type: "search", Prompt: "Find every place that reads configuration from the environment."},
			{
				ID:           "review",
				Type:         "review",
				Prompt:       "Review the configuration handling found by the earlier tasks and list risks.",
				Dependencies: []string{"explore", "search"},
				Priority:     1,
				Timeout:      "10m",
			},
		},
	}
}
