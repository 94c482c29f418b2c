package tui

import "strings"

// MessageKind classifies a transcript line for styling and for the
// same-kind streaming-append rule.
type MessageKind string

const (
	KindUser      MessageKind = "user"
	KindAssistant MessageKind = "assistant"
	KindSystem    MessageKind = "system"
	KindTool      MessageKind = "tool"
	KindThinking  MessageKind = "thinking"
)

// MessageLine is one entry in the transcript buffer.
type MessageLine struct {
	Kind    MessageKind
	Content string
}

// TranscriptBuffer is the append-only conversation log the Inline TUI
// Session renders. Streaming appends extend the last line in place when it
// shares the incoming kind, so a token-by-token assistant reply stays one
// logical line instead of fragmenting into hundreds.
type TranscriptBuffer struct {
	lines []MessageLine
	cache *reflowCache
}

// NewTranscriptBuffer returns an empty transcript.
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{cache: newReflowCache()}
}

// Append adds a new line, always starting a fresh entry regardless of kind.
// It does not invalidate the wrap cache: new content is automatically a new
// cache key, and unrelated unchanged lines keep their memoized wraps.
func (t *TranscriptBuffer) Append(kind MessageKind, content string) {
	t.lines = append(t.lines, MessageLine{Kind: kind, Content: content})
}

// AppendDelta extends the transcript with a streaming delta. If the last
// line shares kind, the delta is folded into it in place; otherwise a new
// line starts.
func (t *TranscriptBuffer) AppendDelta(kind MessageKind, delta string) {
	if n := len(t.lines); n > 0 && t.lines[n-1].Kind == kind {
		t.lines[n-1].Content += delta
		return
	}
	t.Append(kind, delta)
}

// Lines returns the raw, unwrapped transcript lines.
func (t *TranscriptBuffer) Lines() []MessageLine {
	return t.lines
}

// Len reports how many logical lines (not wrapped rows) are in the
// transcript.
func (t *TranscriptBuffer) Len() int {
	return len(t.lines)
}

// InvalidateCache drops all memoized wraps. Callers invoke this on a
// terminal resize, since every cached entry's width is now stale.
func (t *TranscriptBuffer) InvalidateCache() {
	t.cache.invalidate()
}

// Reflow rewraps the transcript to the given width, using a memoized cache
// keyed by (content, width) so an unchanged line is not re-wrapped on every
// frame.
func (t *TranscriptBuffer) Reflow(width int) []string {
	var rows []string
	for _, line := range t.lines {
		wrapped := t.cache.wrap(line.Content, width, func() []string {
			return wrapRendered(line, width)
		})
		rows = append(rows, wrapped...)
	}
	return rows
}

// wrapRendered applies the per-kind presentation rules (agent left-padding,
// user dividers, CRLF/blank-row normalization) and then word-wraps to
// width.
func wrapRendered(line MessageLine, width int) []string {
	normalized := normalizeNewlines(line.Content)
	paragraphs := strings.Split(normalized, "\n")

	var out []string
	prefix := ""
	switch line.Kind {
	case KindAssistant, KindThinking, KindTool, KindSystem:
		prefix = "  "
	}

	if line.Kind == KindUser {
		out = append(out, strings.Repeat("─", maxInt(1, width)))
	}

	for _, p := range paragraphs {
		if p == "" {
			out = append(out, "")
			continue
		}
		for _, row := range wrapWidth(p, maxInt(1, width-len(prefix))) {
			out = append(out, prefix+row)
		}
	}
	return out
}

// normalizeNewlines collapses CRLF/CR into LF and drops fully-blank rows
// that would otherwise render as double gaps.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
