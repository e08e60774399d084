package scheduler

import (
	"sort"
)

// ValidateDependencies checks that task ids are unique, that every dependency
// names a task in the set, and that the dependency graph is acyclic.
func ValidateDependencies(tasks []Task) error {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, ok := index[t.ID]; ok {
			return &DuplicateTaskError{TaskID: t.ID}
		}
		index[t.ID] = i
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := index[dep]; !ok {
				return &InvalidDependencyError{TaskID: t.ID, Dependency: dep}
			}
		}
	}

	if cycle := findCycle(tasks, index); cycle != nil {
		return &CircularDependencyError{Cycle: cycle}
	}
	return nil
}

// findCycle runs a DFS over dependency edges and returns the first cycle it
// finds as a path that starts and ends with the same id.
func findCycle(tasks []Task, index map[string]int) []string {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		visiting[id] = true
		stack = append(stack, id)
		for _, dep := range tasks[index[id]].Dependencies {
			if visiting[dep] {
				for i, s := range stack {
					if s == dep {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, dep)
					}
				}
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(visiting, id)
		visited[id] = true
		return nil
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			if cycle := visit(t.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ReadyOrder returns the tasks sorted by descending priority. Ties keep
// submission order.
func ReadyOrder(tasks []Task) []Task {
	out := append([]Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Dependents maps each task id to the ids of tasks that depend on it directly,
// in submission order.
func Dependents(tasks []Task) map[string][]string {
	out := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			out[dep] = append(out[dep], t.ID)
		}
	}
	return out
}

// Levels groups a validated task set into dependency levels: level 0 holds
// tasks without dependencies, level n holds tasks whose deepest dependency is
// at level n-1. Each level is in ready order.
func Levels(tasks []Task) [][]string {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	depth := make(map[string]int, len(tasks))
	var level func(id string) int
	level = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range byID[id].Dependencies {
			if l := level(dep) + 1; l > d {
				d = l
			}
		}
		depth[id] = d
		return d
	}

	var levels [][]string
	for _, t := range ReadyOrder(tasks) {
		d := level(t.ID)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], t.ID)
	}
	return levels
}
