package contextopt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtcode/vtcode/pkg/tokenbudget"
)

func TestOptimizeGrepCondensesOverflow(t *testing.T) {
	matches := make([]any, 0, 20)
	for i := 1; i <= 20; i++ {
		matches = append(matches, map[string]any{"path": "a", "line": i, "text": "t"})
	}
	result := map[string]any{"matches": matches}

	out := OptimizeResult("grep_file", result)

	gotMatches, ok := out["matches"].([]any)
	require.True(t, ok)
	assert.Len(t, gotMatches, 5)
	assert.Equal(t, "[+15 more matches]", out["overflow"])
	assert.Equal(t, 20, out["total"])
}

func TestOptimizeGrepDeduplicatesByPathAndLine(t *testing.T) {
	result := map[string]any{"matches": []any{
		map[string]any{"path": "a", "line": 1, "text": "x"},
		map[string]any{"path": "a", "line": 1, "text": "x-dup"},
		map[string]any{"path": "b", "line": 1, "text": "y"},
	}}
	out := OptimizeResult("grep_file", result)
	assert.Equal(t, 2, out["total"])
}

func TestOptimizeListFilesSamples(t *testing.T) {
	files := make([]any, 0, 60)
	for i := 0; i < 60; i++ {
		files = append(files, fmt.Sprintf("file%d.go", i))
	}
	out := OptimizeResult("list_files", map[string]any{"files": files})

	assert.Equal(t, 60, out["total_files"])
	sample, ok := out["sample"].([]any)
	require.True(t, ok)
	assert.Len(t, sample, 5)
}

func TestOptimizeListFilesPassesThroughUnderThreshold(t *testing.T) {
	files := []any{"a.go", "b.go"}
	out := OptimizeResult("list_files", map[string]any{"files": files})
	_, ok := out["total_files"]
	assert.False(t, ok, "expected no condensation under threshold")
}

func TestOptimizeReadTruncatesByMaxTokens(t *testing.T) {
	content := ""
	for i := 0; i < 500; i++ {
		content += "0123456789\n"
	}
	result := map[string]any{
		"content":    content,
		"max_tokens": 10, // 40-char budget
		"status":     "ok",
		"path":       "/tmp/file.txt",
	}
	out := OptimizeResult("read_file", result)

	require.Equal(t, true, out["is_truncated"])
	assert.Equal(t, "/tmp/file.txt", out["path"])
	assert.Equal(t, "ok", out["status"])
	truncated := out["content"].(string)
	assert.LessOrEqual(t, len(truncated), 40)
}

func TestOptimizeReadPassesThroughShortContent(t *testing.T) {
	out := OptimizeResult("read_file", map[string]any{"content": "short"})
	_, ok := out["is_truncated"]
	assert.False(t, ok, "expected no truncation for short content")
}

func TestOptimizeShellTruncatesLongStdout(t *testing.T) {
	stdout := ""
	for i := 0; i < 3000; i++ {
		stdout += "line\n"
	}
	out := OptimizeResult("shell", map[string]any{"stdout": stdout})
	require.Equal(t, true, out["is_truncated"])
	assert.GreaterOrEqual(t, out["original_lines"].(int), 3000)
}

func TestCompactHistoryPreservesPathsAndCounts(t *testing.T) {
	opt := New(tokenbudget.NewManager(1000))
	opt.AppendEntry("grep_file", map[string]any{
		"matches": []any{map[string]any{"path": "a", "line": 5}},
		"total":   1,
		"path":    "a",
	})

	opt.CompactHistory()

	entry := opt.History()[0]
	require.True(t, entry.Compacted)
	assert.Equal(t, "a", entry.ResultJSON["path"])
	assert.Equal(t, 1, entry.ResultJSON["total"])
}

func TestCompactHistoryTruncatesStderr(t *testing.T) {
	opt := New(tokenbudget.NewManager(1000))
	longStderr := ""
	for i := 0; i < 50; i++ {
		longStderr += "error line\n"
	}
	opt.AppendEntry("shell", map[string]any{"stderr": longStderr, "exit_code": 1})
	opt.CompactHistory()

	entry := opt.History()[0]
	assert.LessOrEqual(t, len(entry.ResultJSON["stderr"].(string)), 200)
	assert.Equal(t, 1, entry.ResultJSON["exit_code"])
}

func TestCompactHistoryIsIdempotent(t *testing.T) {
	opt := New(tokenbudget.NewManager(1000))
	opt.AppendEntry("grep_file", map[string]any{"total": 3, "path": "x"})
	opt.CompactHistory()
	first := opt.History()[0].ResultJSON["total"]
	opt.CompactHistory()
	second := opt.History()[0].ResultJSON["total"]
	assert.Equal(t, first, second, "expected idempotent compaction")
}

func TestUpdateCompactModeTriggersCompactionAtThreshold(t *testing.T) {
	budget := tokenbudget.NewManager(100)
	opt := New(budget)
	opt.AppendEntry("grep_file", map[string]any{"total": 1, "path": "x"})

	budget.RecordTokensForComponent(tokenbudget.ComponentToolOutput, 91, "")
	mode := opt.UpdateCompactMode()
	assert.Equal(t, tokenbudget.ModeCompact, mode)
	assert.True(t, opt.History()[0].Compacted, "expected history compacted once threshold reached")
}

func TestCreateCheckpointCapturesTokenUsage(t *testing.T) {
	budget := tokenbudget.NewManager(100)
	budget.RecordTokensForComponent(tokenbudget.ComponentUserMessage, 20, "")
	opt := New(budget)

	state := opt.CreateCheckpoint("task", "work", []string{"a"}, []string{"b"}, []string{"c.go"})
	assert.Equal(t, 20, state.TokenUsage.Total)
}
