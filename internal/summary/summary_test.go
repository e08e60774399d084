package summary

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(id string, success bool, output string) Input {
	r := Input{
		TaskID:   id,
		Success:  success,
		Output:   output,
		Duration: time.Second,
		TokenUsage: &TokenUsage{
			InputTokens:  100,
			OutputTokens: 50,
			TotalTokens:  150,
		},
	}
	if !success {
		r.Error = "boom"
	}
	return r
}

func TestSummarizeResult(t *testing.T) {
	g := New(1000)

	t.Run("precomputed summary wins", func(t *testing.T) {
		r := result("task-1", true, "- ignored")
		r.Summary = "already summarized"
		assert.Equal(t, "already summarized", g.SummarizeResult(r))
	})

	t.Run("precomputed summary is truncated", func(t *testing.T) {
		small := New(5)
		r := Input{TaskID: "t", Summary: strings.Repeat("a", 100)}
		got := small.SummarizeResult(r)
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, EstimateTokens(got), 5)
	})

	t.Run("output with key points", func(t *testing.T) {
		r := result("task-1", true, "概述\n- 发现1\n- 发现2")
		got := g.SummarizeResult(r)

		assert.Contains(t, got, "Task task-1 succeeded (took 1.00s)")
		assert.Contains(t, got, "Key findings:")
		assert.Contains(t, got, "- 发现1")
		assert.Contains(t, got, "- 发现2")
		assert.Len(t, ExtractKeyPoints("概述\n- 发现1\n- 发现2"), 2)
	})

	t.Run("failed output", func(t *testing.T) {
		r := result("task-2", false, "partial output")
		assert.Contains(t, g.SummarizeResult(r), "Task task-2 failed (took 1.00s)")
	})

	t.Run("caps key points at five", func(t *testing.T) {
		var lines []string
		for i := 0; i < 8; i++ {
			lines = append(lines, fmt.Sprintf("* point %d", i))
		}
		got := g.SummarizeResult(result("t", true, strings.Join(lines, "\n")))
		assert.Contains(t, got, "point 4")
		assert.NotContains(t, got, "point 5")
	})

	t.Run("error only", func(t *testing.T) {
		r := Input{TaskID: "task-3", Error: "provider unavailable"}
		assert.Equal(t, "Task task-3 failed: provider unavailable", g.SummarizeResult(r))
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Equal(t, "Task task-4 completed with no output", g.SummarizeResult(Input{TaskID: "task-4", Success: true}))
	})
}

func TestExtractKeyPoints(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "bullet markers",
			text: "intro\n- dash\n* star\n• dot\n✓ check\n✅ done",
			want: []string{"dash", "star", "dot", "check", "done"},
		},
		{
			name: "numbered items",
			text: "1. first\n2. second\n3. third\n4. fourth",
			want: []string{"first", "second", "third"},
		},
		{
			name: "indented bullets",
			text: "   - nested item",
			want: []string{"nested item"},
		},
		{
			name: "single paragraph fallback",
			text: "just a sentence",
			want: []string{"just a sentence"},
		},
		{
			name: "first and last paragraph fallback",
			text: "first para\n\nmiddle\n\nlast para",
			want: []string{"first para", "last para"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeyPoints(tt.text))
		})
	}

	t.Run("long paragraphs are capped", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		points := ExtractKeyPoints(long)
		require.Len(t, points, 1)
		assert.Equal(t, 200, len([]rune(points[0])))
		assert.True(t, strings.HasSuffix(points[0], "..."))
	})
}

func TestMergeSummaries(t *testing.T) {
	t.Run("sections and stats", func(t *testing.T) {
		g := New(2000)
		merged := g.MergeSummaries([]Input{
			result("task-1", true, "result 1"),
			result("task-2", true, "result 2"),
			result("task-3", false, ""),
		})

		assert.Contains(t, merged, "✅ task-1:")
		assert.Contains(t, merged, "✅ task-2:")
		assert.Contains(t, merged, "❌ task-3: Task task-3 failed: boom")
		assert.Contains(t, merged, "📊 Stats: 2 succeeded, 1 failed, total duration 3.00s")
		assert.NotContains(t, merged, OmittedMarker)
	})

	t.Run("empty input", func(t *testing.T) {
		merged := New(100).MergeSummaries(nil)
		assert.Contains(t, merged, "0 succeeded, 0 failed")
	})

	t.Run("respects budget", func(t *testing.T) {
		const budget = 60
		g := New(budget)
		var results []Input
		for i := 0; i < 20; i++ {
			results = append(results, result(fmt.Sprintf("task-%02d", i), i%3 != 0,
				strings.Repeat("- a finding that is fairly long\n", 4)))
		}

		merged := g.MergeSummaries(results)
		assert.Contains(t, merged, OmittedMarker)
		assert.LessOrEqual(t, EstimateTokens(merged), budget)

		succeeded, failed := 0, 0
		for _, r := range results {
			if r.Success {
				succeeded++
			} else {
				failed++
			}
		}
		assert.Equal(t, len(results), succeeded+failed)
		assert.Contains(t, merged, fmt.Sprintf("%d succeeded, %d failed", succeeded, failed))
	})

	t.Run("budget smaller than stats line", func(t *testing.T) {
		merged := New(10).MergeSummaries([]Input{result("task-1", true, "- finding")})
		assert.LessOrEqual(t, EstimateTokens(merged), 10)
		assert.True(t, strings.HasSuffix(merged, "..."))
		assert.True(t, strings.HasPrefix(merged, OmittedMarker[:10]))
	})
}

func TestTruncateToTokens(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", TruncateToTokens("hello", 10))
	})

	t.Run("ascii", func(t *testing.T) {
		got := TruncateToTokens(strings.Repeat("a", 100), 10)
		assert.Equal(t, strings.Repeat("a", 37)+"...", got)
		assert.LessOrEqual(t, EstimateTokens(got), 10)
	})

	t.Run("multibyte stays valid", func(t *testing.T) {
		got := TruncateToTokens(strings.Repeat("发现", 50), 10)
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, EstimateTokens(got), 10)
		assert.NotContains(t, got, "�")
	})
}

func TestTotalTokenUsage(t *testing.T) {
	results := []Input{
		result("a", true, ""),
		result("b", true, ""),
		{TaskID: "c"},
	}
	assert.Equal(t, TokenUsage{InputTokens: 200, OutputTokens: 100, TotalTokens: 300}, TotalTokenUsage(results))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}
