// Package summary compresses subagent results into token-bounded text.
package summary

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxTokens is the default summary budget.
	DefaultMaxTokens = 2000

	// CharsPerToken is the fixed estimation ratio.
	CharsPerToken = 4

	// OmittedMarker is appended when merged results exceed the budget.
	OmittedMarker = "... (more results omitted)"

	maxKeyPoints      = 5
	maxParagraphChars = 200
	ellipsis          = "..."
)

// TokenUsage counts tokens consumed by one or more tasks.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Input is the part of a task result the generator reads.
type Input struct {
	TaskID     string
	Success    bool
	Output     string
	Summary    string
	Error      string
	Duration   time.Duration
	TokenUsage *TokenUsage
}

// Generator renders and merges result summaries within a token budget.
type Generator struct {
	maxTokens int
}

// New creates a generator. A non-positive budget uses DefaultMaxTokens.
func New(maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Generator{maxTokens: maxTokens}
}

// MaxTokens returns the configured budget.
func (g *Generator) MaxTokens() int {
	return g.maxTokens
}

// SummarizeResult renders one result.
func (g *Generator) SummarizeResult(r Input) string {
	if r.Summary != "" {
		return TruncateToTokens(r.Summary, g.maxTokens)
	}
	if r.Output != "" {
		return g.fromOutput(r)
	}
	if r.Error != "" {
		return fmt.Sprintf("Task %s failed: %s", r.TaskID, r.Error)
	}
	return fmt.Sprintf("Task %s completed with no output", r.TaskID)
}

func (g *Generator) fromOutput(r Input) string {
	status := "succeeded"
	if !r.Success {
		status = "failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task %s %s (took %.2fs)\n", r.TaskID, status, r.Duration.Seconds())

	points := ExtractKeyPoints(r.Output)
	if len(points) > 0 {
		b.WriteString("Key findings:\n")
		for i, p := range points {
			if i == maxKeyPoints {
				break
			}
			b.WriteString("- " + p + "\n")
		}
	}
	return TruncateToTokens(b.String(), g.maxTokens)
}

// MergeSummaries renders every result into one report followed by a stats
// line. Sections stop, with OmittedMarker appended, once the report would no
// longer fit the budget. A budget too small for the stats line truncates the
// whole report.
func (g *Generator) MergeSummaries(results []Input) string {
	n := len(results)
	if n == 0 {
		n = 1
	}
	perResult := g.maxTokens / n

	var succeeded int
	var duration time.Duration
	for _, r := range results {
		if r.Success {
			succeeded++
		}
		duration += r.Duration
	}
	stats := fmt.Sprintf("\n---\n📊 Stats: %d succeeded, %d failed, total duration %.2fs",
		succeeded, len(results)-succeeded, duration.Seconds())

	// used counts the bytes of the final report: sections, separators and
	// the stats line.
	used := len(stats) + 1
	limit := g.maxTokens * CharsPerToken
	var sections []string
	for _, r := range results {
		text := TruncateToTokens(g.SummarizeResult(r), perResult)
		marker := "✅"
		if !r.Success {
			marker = "❌"
		}
		section := fmt.Sprintf("%s %s: %s", marker, r.TaskID, text)

		cost := len(section)
		if len(sections) > 0 {
			cost += 2
		}
		// Keep room for the omitted marker and its separator.
		if used+cost+2+len(OmittedMarker) > limit {
			sections = append(sections, OmittedMarker)
			break
		}
		used += cost
		sections = append(sections, section)
	}

	report := strings.Join(sections, "\n\n") + "\n" + stats
	return TruncateToTokens(report, g.maxTokens)
}

// TotalTokenUsage sums the token usage of every result that reported one.
func TotalTokenUsage(results []Input) TokenUsage {
	var total TokenUsage
	for _, r := range results {
		if r.TokenUsage != nil {
			total = total.Add(*r.TokenUsage)
		}
	}
	return total
}

var bulletMarkers = []string{"- ", "* ", "• ", "✓ ", "✅ "}

// ExtractKeyPoints returns list items from text. Without any list items it
// returns the first and last paragraphs, each capped at 200 characters.
func ExtractKeyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if point, ok := bulletContent(trimmed); ok {
			points = append(points, point)
			continue
		}
		if strings.HasPrefix(trimmed, "1.") || strings.HasPrefix(trimmed, "2.") || strings.HasPrefix(trimmed, "3.") {
			_, rest, _ := strings.Cut(trimmed, ".")
			points = append(points, strings.TrimSpace(rest))
		}
	}
	if len(points) > 0 {
		return points
	}

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) > 0 {
		points = append(points, truncateChars(paragraphs[0], maxParagraphChars))
	}
	if len(paragraphs) > 1 {
		points = append(points, truncateChars(paragraphs[len(paragraphs)-1], maxParagraphChars))
	}
	return points
}

func bulletContent(line string) (string, bool) {
	for _, m := range bulletMarkers {
		if strings.HasPrefix(line, m) {
			// Markers count as two characters regardless of their byte width.
			runes := []rune(line)
			return string(runes[2:]), true
		}
	}
	return "", false
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// TruncateToTokens cuts text so that its estimate fits maxTokens, ending
// with "...". Cuts fall on rune boundaries.
func TruncateToTokens(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}
	limit := maxTokens*CharsPerToken - len(ellipsis)
	if limit <= 0 {
		return ellipsis
	}
	cut := 0
	for i := range text {
		if i > limit {
			break
		}
		cut = i
	}
	return text[:cut] + ellipsis
}

func truncateChars(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	keep := maxChars - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + ellipsis
}
