package scheduler

import "fmt"

// Strategy is how a run spreads tasks over the pool.
type Strategy string

const (
	// StrategySingleAgent runs one task at a time; used for trivial sets.
	StrategySingleAgent Strategy = "single_agent"
	// StrategySequential runs one task at a time in ready order.
	StrategySequential Strategy = "sequential"
	// StrategyParallel runs independent tasks concurrently.
	StrategyParallel Strategy = "parallel"
	// StrategyBreadthFirst fans research tasks out as wide as the pool allows.
	StrategyBreadthFirst Strategy = "breadth_first"
	// StrategyAdaptive picks one of the above from the task set.
	StrategyAdaptive Strategy = "adaptive"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySingleAgent, StrategySequential, StrategyParallel, StrategyBreadthFirst, StrategyAdaptive:
		return Strategy(s), nil
	case "":
		return StrategyAdaptive, nil
	default:
		return "", fmt.Errorf("invalid strategy %q (valid: single_agent, sequential, parallel, breadth_first, adaptive)", s)
	}
}

// concurrent reports whether the strategy runs more than one task at a time.
func (s Strategy) concurrent() bool {
	return s == StrategyParallel || s == StrategyBreadthFirst
}

// Complexity is a coarse estimate of how demanding a task is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityMedium   Complexity = "medium"
	ComplexityComplex  Complexity = "complex"
	ComplexityResearch Complexity = "research"
)

// longPrompt is the prompt size above which a task is bumped one complexity
// level.
const longPrompt = 1000

var researchTypes = map[string]bool{
	"research": true,
	"explore":  true,
	"search":   true,
	"analyze":  true,
}

// SelectStrategy picks a strategy from the shape of the task set.
func SelectStrategy(tasks []Task) Strategy {
	if len(tasks) <= 1 {
		return StrategySingleAgent
	}

	hasDeps := false
	research := false
	independent := 0
	for _, t := range tasks {
		if t.HasDependencies() {
			hasDeps = true
		} else {
			independent++
		}
		if researchTypes[t.Type] {
			research = true
		}
	}

	ratio := 1.0
	if hasDeps {
		ratio = float64(independent) / float64(len(tasks))
	}

	switch {
	case research && ratio > 0.7:
		return StrategyBreadthFirst
	case hasDeps && ratio < 0.3:
		return StrategySequential
	case ratio > 0.5:
		return StrategyParallel
	default:
		return StrategySequential
	}
}

// EstimateComplexity estimates a task's complexity from its type and prompt size.
func EstimateComplexity(task Task) Complexity {
	var c Complexity
	switch task.Type {
	case "explore", "search":
		c = ComplexitySimple
	case "analyze", "review":
		c = ComplexityMedium
	case "code", "implement":
		c = ComplexityComplex
	case "research", "investigate":
		c = ComplexityResearch
	default:
		c = ComplexityMedium
	}

	if len(task.Prompt) > longPrompt {
		switch c {
		case ComplexitySimple:
			return ComplexityMedium
		case ComplexityMedium:
			return ComplexityComplex
		}
	}
	return c
}

// RecommendedConcurrency returns the suggested pool size for a complexity.
func RecommendedConcurrency(c Complexity) int {
	switch c {
	case ComplexitySimple:
		return 10
	case ComplexityComplex:
		return 3
	case ComplexityResearch:
		return 8
	default:
		return 5
	}
}

// RecommendedModel returns the suggested model for a complexity.
func RecommendedModel(c Complexity) string {
	switch c {
	case ComplexitySimple:
		return "haiku"
	case ComplexityComplex:
		return "opus"
	default:
		return "sonnet"
	}
}

// poolSizeFor returns the pool size a run uses under strategy s.
func poolSizeFor(s Strategy, cfg Config) int {
	if s.concurrent() {
		return cfg.MaxConcurrency
	}
	return 1
}
