package tui

import "testing"

func TestTranscriptAppendDeltaMergesSameKind(t *testing.T) {
	tr := NewTranscriptBuffer()
	tr.AppendDelta(KindAssistant, "Hello")
	tr.AppendDelta(KindAssistant, " world")

	if tr.Len() != 1 {
		t.Fatalf("expected a single merged line, got %d", tr.Len())
	}
	if tr.Lines()[0].Content != "Hello world" {
		t.Errorf("unexpected merged content: %q", tr.Lines()[0].Content)
	}
}

func TestTranscriptAppendDeltaStartsNewLineOnKindChange(t *testing.T) {
	tr := NewTranscriptBuffer()
	tr.AppendDelta(KindThinking, "pondering")
	tr.AppendDelta(KindAssistant, "answer")

	if tr.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", tr.Len())
	}
}

func TestTranscriptReflowWrapsToWidth(t *testing.T) {
	tr := NewTranscriptBuffer()
	tr.Append(KindAssistant, "one two three four five six seven eight")

	rows := tr.Reflow(10)
	for _, row := range rows {
		if len(row) > 10+2 { // +2 for the assistant left-padding prefix
			t.Errorf("row exceeds width budget: %q", row)
		}
	}
	if len(rows) < 2 {
		t.Fatalf("expected wrapping to produce multiple rows, got %v", rows)
	}
}

func TestTranscriptReflowCacheReusesUnchangedLines(t *testing.T) {
	tr := NewTranscriptBuffer()
	tr.Append(KindAssistant, "stable content")
	tr.Append(KindUser, "another line")

	first := tr.Reflow(20)
	second := tr.Reflow(20)
	if len(first) != len(second) {
		t.Fatalf("expected stable reflow output across calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs between reflow calls: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestWrapWidthHardBreaksOverlongWord(t *testing.T) {
	rows := wrapWidth("supercalifragilisticexpialidocious", 10)
	for _, row := range rows {
		if len([]rune(row)) > 10 {
			t.Errorf("hard-break row exceeds width: %q", row)
		}
	}
}

func TestNormalizeNewlinesCollapsesCRLFAndBlankRuns(t *testing.T) {
	got := normalizeNewlines("a\r\nb\r\n\n\n\nc")
	want := "a\nb\n\nc"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
