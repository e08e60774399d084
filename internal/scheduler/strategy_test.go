package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typed(id, typ string, deps ...string) Task {
	return Task{ID: id, Type: typ, Prompt: "prompt", Dependencies: deps}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  Strategy
	}{
		{
			name: "empty",
			want: StrategySingleAgent,
		},
		{
			name:  "single task",
			tasks: []Task{typed("t1", "explore")},
			want:  StrategySingleAgent,
		},
		{
			name:  "independent code tasks",
			tasks: []Task{typed("t1", "code"), typed("t2", "code"), typed("t3", "code")},
			want:  StrategyParallel,
		},
		{
			name:  "chain",
			tasks: []Task{typed("t1", "code"), typed("t2", "code", "t1"), typed("t3", "code", "t2")},
			want:  StrategySequential,
		},
		{
			name:  "research fan out",
			tasks: []Task{typed("t1", "research"), typed("t2", "research"), typed("t3", "research")},
			want:  StrategyBreadthFirst,
		},
		{
			name: "research with mostly independent tasks",
			tasks: []Task{
				typed("t1", "search"), typed("t2", "search"), typed("t3", "search"),
				typed("t4", "search"), typed("t5", "code", "t1"),
			},
			want: StrategyBreadthFirst,
		},
		{
			name: "research with too many dependencies",
			tasks: []Task{
				typed("t1", "analyze"), typed("t2", "analyze", "t1"), typed("t3", "analyze", "t1"),
			},
			// ratio 1/3 is neither below 0.3 nor above 0.5
			want: StrategySequential,
		},
		{
			name: "mostly independent with dependencies",
			tasks: []Task{
				typed("t1", "code"), typed("t2", "code"), typed("t3", "code", "t1"),
			},
			want: StrategyParallel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.tasks))
		})
	}
}

func TestEstimateComplexity(t *testing.T) {
	long := strings.Repeat("x", 1001)

	tests := []struct {
		typ    string
		prompt string
		want   Complexity
	}{
		{"explore", "short", ComplexitySimple},
		{"search", "short", ComplexitySimple},
		{"analyze", "short", ComplexityMedium},
		{"review", "short", ComplexityMedium},
		{"code", "short", ComplexityComplex},
		{"implement", "short", ComplexityComplex},
		{"research", "short", ComplexityResearch},
		{"investigate", "short", ComplexityResearch},
		{"unknown", "short", ComplexityMedium},
		{"explore", long, ComplexityMedium},
		{"review", long, ComplexityComplex},
		{"code", long, ComplexityComplex},
		{"research", long, ComplexityResearch},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateComplexity(Task{Type: tt.typ, Prompt: tt.prompt}))
		})
	}
}

func TestRecommendations(t *testing.T) {
	assert.Equal(t, 10, RecommendedConcurrency(ComplexitySimple))
	assert.Equal(t, 5, RecommendedConcurrency(ComplexityMedium))
	assert.Equal(t, 3, RecommendedConcurrency(ComplexityComplex))
	assert.Equal(t, 8, RecommendedConcurrency(ComplexityResearch))

	assert.Equal(t, "haiku", RecommendedModel(ComplexitySimple))
	assert.Equal(t, "sonnet", RecommendedModel(ComplexityMedium))
	assert.Equal(t, "opus", RecommendedModel(ComplexityComplex))
	assert.Equal(t, "sonnet", RecommendedModel(ComplexityResearch))
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy("breadth_first")
	require.NoError(t, err)
	assert.Equal(t, StrategyBreadthFirst, got)

	got, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyAdaptive, got)

	_, err = ParseStrategy("random")
	assert.Error(t, err)
}

func TestPoolSizeFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, poolSizeFor(StrategySingleAgent, cfg))
	assert.Equal(t, 1, poolSizeFor(StrategySequential, cfg))
	assert.Equal(t, cfg.MaxConcurrency, poolSizeFor(StrategyParallel, cfg))
	assert.Equal(t, cfg.MaxConcurrency, poolSizeFor(StrategyBreadthFirst, cfg))
}
