// Package contextopt implements the Context Optimizer: per-tool result
// condensation, history compaction, compact-mode tracking, and checkpoint
// creation. Condensation rules operate on the unified-tool-result JSON
// shapes produced by pkg/tools/builtin.
package contextopt

import (
	"fmt"

	"github.com/vtcode/vtcode/pkg/checkpoint"
	"github.com/vtcode/vtcode/pkg/tokenbudget"
)

// maxReadLines and maxGrepMatches are the hard caps on condensed output.
const (
	maxGrepMatches  = 5
	maxListedFiles  = 50
	listSampleSize  = 5
	maxReadLines    = 2000
	stderrTruncate  = 200
)

// Entry is one condensed tool-call record in the running history.
type Entry struct {
	ToolName     string         `json:"tool_name"`
	ResultJSON   map[string]any `json:"result_json"`
	ApproxTokens int            `json:"approx_tokens"`
	Compacted    bool           `json:"compacted"`
}

// Optimizer condenses tool outputs and maintains a compacting history.
type Optimizer struct {
	budget  *tokenbudget.Manager
	history []*Entry
}

// New builds an Optimizer backed by budget for usage-ratio thresholds.
func New(budget *tokenbudget.Manager) *Optimizer {
	return &Optimizer{budget: budget}
}

// OptimizeResult dispatches per tool name, returning a possibly-rewritten
// result_json. Unknown tools pass through unchanged.
func OptimizeResult(toolName string, result map[string]any) map[string]any {
	switch toolName {
	case "grep_file":
		return optimizeGrep(result)
	case "list_files":
		return optimizeListFiles(result)
	case "read_file":
		return optimizeRead(result)
	case "shell", "run_pty_cmd":
		return optimizeShell(result)
	default:
		return result
	}
}

func optimizeGrep(result map[string]any) map[string]any {
	rawMatches, ok := result["matches"].([]any)
	if !ok {
		return result
	}

	type match struct {
		path string
		line int
		raw  any
	}

	seen := make(map[string]bool)
	var unique []match
	for _, m := range rawMatches {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}
		path, _ := mm["path"].(string)
		line := intOf(mm["line"])
		key := fmt.Sprintf("%s:%d", path, line)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, match{path: path, line: line, raw: mm})
	}

	total := len(unique)
	out := make(map[string]any, len(result)+1)
	for k, v := range result {
		out[k] = v
	}

	if total <= maxGrepMatches {
		kept := make([]any, 0, total)
		for _, m := range unique {
			kept = append(kept, m.raw)
		}
		out["matches"] = kept
		out["total"] = total
		return out
	}

	kept := make([]any, 0, maxGrepMatches)
	for _, m := range unique[:maxGrepMatches] {
		kept = append(kept, m.raw)
	}
	out["matches"] = kept
	out["total"] = total
	out["overflow"] = fmt.Sprintf("[+%d more matches]", total-maxGrepMatches)
	return out
}

func optimizeListFiles(result map[string]any) map[string]any {
	files, ok := result["files"].([]any)
	if !ok || len(files) <= maxListedFiles {
		return result
	}

	sample := files
	if len(sample) > listSampleSize {
		sample = sample[:listSampleSize]
	}
	return map[string]any{
		"total_files": len(files),
		"sample":      sample,
		"note":        fmt.Sprintf("showing %d of %d files", len(sample), len(files)),
	}
}

func optimizeRead(result map[string]any) map[string]any {
	content, ok := result["content"].(string)
	if !ok {
		return result
	}

	var maxTokens int
	hasMaxTokens := false
	if v, ok := result["max_tokens"]; ok {
		maxTokens = intOf(v)
		hasMaxTokens = maxTokens > 0
	}

	lines := splitLines(content)
	charBudget := -1
	if hasMaxTokens {
		charBudget = maxTokens * 4
	}

	exceedsLines := len(lines) > maxReadLines
	exceedsChars := charBudget >= 0 && len(content) > charBudget
	if !exceedsLines && !exceedsChars {
		return result
	}

	limit := len(content)
	if exceedsChars && charBudget < limit {
		limit = charBudget
	}
	truncatedContent := content
	omittedLines := 0
	if limit < len(content) {
		truncatedContent = truncateAtLastNewline(content, limit)
		omittedLines = len(lines) - len(splitLines(truncatedContent))
	} else if exceedsLines {
		truncatedContent = joinLines(lines[:maxReadLines])
		omittedLines = len(lines) - maxReadLines
	}

	out := copyMap(result)
	out["content"] = truncatedContent
	out["is_truncated"] = true
	out["original_tokens"] = tokenbudget.EstimateTokens(content)
	out["omitted_line_count"] = omittedLines
	return out
}

func optimizeShell(result map[string]any) map[string]any {
	stdout, ok := result["stdout"].(string)
	if !ok {
		return result
	}

	lines := splitLines(stdout)
	if len(lines) <= maxReadLines && tokenbudget.EstimateTokens(stdout) <= maxReadLines*4 {
		return result
	}

	out := copyMap(result)
	truncated := stdout
	if len(lines) > maxReadLines {
		truncated = joinLines(lines[:maxReadLines])
	}
	out["stdout"] = truncated
	out["is_truncated"] = true
	out["original_lines"] = len(lines)
	out["original_tokens"] = tokenbudget.EstimateTokens(stdout)
	return out
}

// CompactHistory rewrites every non-compacted entry into a per-tool
// skeleton preserving paths, line numbers, error messages, exit codes
// (stderr truncated to 200 chars), and total counts.
func (o *Optimizer) CompactHistory() {
	for _, entry := range o.history {
		if entry.Compacted {
			continue
		}
		entry.ResultJSON = compactSkeleton(entry.ResultJSON)
		entry.Compacted = true
	}
}

func compactSkeleton(result map[string]any) map[string]any {
	skeleton := make(map[string]any)
	for _, key := range []string{"path", "paths", "line", "matches", "total", "exit_code", "status", "message", "metadata"} {
		if v, ok := result[key]; ok {
			skeleton[key] = v
		}
	}
	if stderr, ok := result["stderr"].(string); ok {
		skeleton["stderr"] = truncateString(stderr, stderrTruncate)
	}
	skeleton["note"] = "compacted"
	return skeleton
}

// AppendEntry records a freshly optimized tool result in the running
// history.
func (o *Optimizer) AppendEntry(toolName string, result map[string]any) *Entry {
	entry := &Entry{
		ToolName:     toolName,
		ResultJSON:   result,
		ApproxTokens: tokenbudget.EstimateTokens(fmt.Sprint(result)),
	}
	o.history = append(o.history, entry)
	return entry
}

// History returns the current entries, oldest first.
func (o *Optimizer) History() []*Entry {
	return o.history
}

// UpdateCompactMode derives the current CompactMode from the token
// budget's usage ratio and triggers CompactHistory once utilization
// reaches the compact threshold.
func (o *Optimizer) UpdateCompactMode() tokenbudget.CompactMode {
	if o.budget == nil {
		return tokenbudget.ModeNormal
	}
	stats := o.budget.GetStats()
	mode := stats.CompactMode()
	if mode != tokenbudget.ModeNormal {
		o.CompactHistory()
	}
	return mode
}

// CreateCheckpoint builds a checkpoint.State from the optimizer's current
// token usage snapshot.
func (o *Optimizer) CreateCheckpoint(task, currentWork string, completedSteps, nextSteps, keyFiles []string) *checkpoint.State {
	var stats tokenbudget.Stats
	if o.budget != nil {
		stats = o.budget.GetStats()
	}
	return checkpoint.Create(task, currentWork, completedSteps, nextSteps, keyFiles, stats)
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func truncateAtLastNewline(content string, limit int) string {
	if limit >= len(content) {
		return content
	}
	slice := content[:limit]
	for i := len(slice) - 1; i >= 0; i-- {
		if slice[i] == '\n' {
			return slice[:i]
		}
	}
	return slice
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
