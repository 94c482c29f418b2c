// Package builtin implements the fine-grained executors behind VTCode's three
// unified verbs (unified_exec, unified_file, unified_search). The
// LLM-visible surface stays narrow — only the three verbs are registered in
// the default tool registry — while every executor here remains addressable
// by name for internal composition and tests.
//
// Follows workDir-relative path resolution conventions, a read_file
// abridgement idiom, and ripgrep-backed search.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolvePath joins path to workDir when it is relative.
func resolvePath(workDir, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if strings.TrimSpace(workDir) == "" {
		return filepath.Clean(path), nil
	}
	return filepath.Clean(filepath.Join(workDir, path)), nil
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func boolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// effectiveIndent returns the indentation width of line in columns, counting
// each tab as 4 columns, per §4.F's Indentation mode definition.
func effectiveIndent(line string) int {
	indent := 0
	for _, r := range line {
		switch r {
		case ' ':
			indent++
		case '\t':
			indent += 4
		default:
			return indent
		}
	}
	return indent
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//")
}

const maxSliceLineBytes = 500

// truncateLineBytes truncates a line to maxSliceLineBytes at a rune boundary.
func truncateLineBytes(line string, max int) string {
	if len(line) <= max {
		return line
	}
	b := []byte(line)[:max]
	for len(b) > 0 && !isRuneBoundaryByte(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return string(b) + "...(truncated)"
}

// isRuneBoundaryByte reports whether b is not a UTF-8 continuation byte.
func isRuneBoundaryByte(b byte) bool {
	return b&0xC0 != 0x80
}

func numberedLine(n int, text string) string {
	return fmt.Sprintf("L%d: %s", n, truncateLineBytes(text, maxSliceLineBytes))
}

const (
	condenseHead = 20
	condenseTail = 10
)

// looksLikeDiff reports whether content resembles unified-diff output, which
// §4.F exempts from head/tail condensation.
func looksLikeDiff(lines []string) bool {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "diff ") || strings.HasPrefix(t, "---") ||
			strings.HasPrefix(t, "+++") || strings.HasPrefix(t, "@@") {
			return true
		}
	}
	return false
}

// condenseLines reduces lines to a head(20)+tail(10) window with an explicit
// omitted-lines marker, unless the content looks like a diff.
func condenseLines(lines []string) []string {
	if len(lines) <= condenseHead+condenseTail || looksLikeDiff(lines) {
		return lines
	}
	out := make([]string, 0, condenseHead+condenseTail+1)
	out = append(out, lines[:condenseHead]...)
	omitted := len(lines) - condenseHead - condenseTail
	out = append(out, fmt.Sprintf("... (%d lines omitted) ...", omitted))
	out = append(out, lines[len(lines)-condenseTail:]...)
	return out
}
