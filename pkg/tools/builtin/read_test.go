package builtin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSliceNumbersLinesFromOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644)

	h := NewReadFileHandler(dir, 0)
	out := h.ReadOne(ReadRequest{Path: "a.txt", Mode: ModeSlice, Slice: SliceOptions{Offset: 2, Limit: 2}})
	if out.Err != nil {
		t.Fatalf("ReadOne: %v", out.Err)
	}
	if len(out.Lines) != 2 || out.Lines[0] != "L2: two" || out.Lines[1] != "L3: three" {
		t.Fatalf("unexpected lines: %v", out.Lines)
	}
}

func TestReadSliceTruncatesLongLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.txt")
	long := strings.Repeat("x", 600)
	os.WriteFile(path, []byte(long+"\n"), 0o644)

	h := NewReadFileHandler(dir, 0)
	out := h.ReadOne(ReadRequest{Path: "long.txt", Mode: ModeSlice, Slice: SliceOptions{Offset: 1}})
	if out.Err != nil {
		t.Fatalf("ReadOne: %v", out.Err)
	}
	if len(out.Lines[0]) >= len(long) {
		t.Errorf("expected truncation, got length %d", len(out.Lines[0]))
	}
}

// TestReadIndentationStopsBeforeNextSibling is end-to-end scenario 2 from §8:
// a Python-like block, anchor_line at the def, max_levels=1,
// include_siblings=false, include_header=true.
func TestReadIndentationStopsBeforeNextSibling(t *testing.T) {
	src := strings.Join([]string{
		"# header comment",
		"def foo():",
		"    x = 1",
		"    if x:",
		"        y = 2",
		"",
		"def bar():",
		"    z = 3",
	}, "\n") + "\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "block.py")
	os.WriteFile(path, []byte(src), 0o644)

	h := NewReadFileHandler(dir, 0)
	out := h.ReadOne(ReadRequest{
		Path: "block.py",
		Mode: ModeIndentation,
		Indent: IndentationOptions{
			AnchorLine:      2, // "def foo():"
			MaxLevels:       1,
			IncludeSiblings: false,
			IncludeHeader:   true,
		},
	})
	if out.Err != nil {
		t.Fatalf("ReadOne: %v", out.Err)
	}
	if !strings.HasPrefix(out.Lines[0], "L1: ") {
		t.Fatalf("expected first output line prefixed L<n>:, got %q", out.Lines[0])
	}
	joined := strings.Join(out.Lines, "\n")
	if !strings.Contains(joined, "def foo():") {
		t.Error("expected def line included")
	}
	if !strings.Contains(joined, "if x:") || !strings.Contains(joined, "y = 2") {
		t.Error("expected body lines included")
	}
	if strings.Contains(joined, "def bar():") {
		t.Error("expected expansion to stop before the next sibling")
	}
}

// TestReadBatchConcatenatesWithSeparators is end-to-end scenario 6 from §8.
func TestReadBatchConcatenatesWithSeparators(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	os.WriteFile(pathA, []byte("a1\na2\n"), 0o644)
	os.WriteFile(pathB, []byte("b1\nb2\n"), 0o644)

	h := NewReadFileHandler(dir, 8)
	content, outcomes, succeeded := h.Batch([]ReadRequest{
		{Path: "a.txt", Mode: ModeSlice},
		{Path: "b.txt", Mode: ModeSlice},
	})

	if succeeded != 2 {
		t.Fatalf("expected 2 files succeeded, got %d", succeeded)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !strings.Contains(content, "== "+pathA+" (L1..L2)") {
		t.Errorf("missing separator for a.txt, got: %s", content)
	}
	if !strings.Contains(content, "== "+pathB+" (L1..L2)") {
		t.Errorf("missing separator for b.txt, got: %s", content)
	}
}

func TestReadBatchPreservesPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("fine\n"), 0o644)

	h := NewReadFileHandler(dir, 8)
	_, outcomes, succeeded := h.Batch([]ReadRequest{
		{Path: "ok.txt", Mode: ModeSlice},
		{Path: "missing.txt", Mode: ModeSlice},
	})
	if succeeded != 1 {
		t.Fatalf("expected 1 success, got %d", succeeded)
	}
	if outcomes[1].Err == nil {
		t.Error("expected an error for the missing file")
	}
}

func TestCondenseLinesKeepsDiffsUncondensed(t *testing.T) {
	lines := []string{"diff --git a b", "--- a", "+++ b", "@@ -1 +1 @@"}
	for i := 0; i < 40; i++ {
		lines = append(lines, "+added line")
	}
	out := condenseLines(lines)
	if len(out) != len(lines) {
		t.Errorf("expected diff output left uncondensed, got %d of %d lines", len(out), len(lines))
	}
}

func TestCondenseLinesHeadTailWithMarker(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "line"
	}
	out := condenseLines(lines)
	if len(out) != condenseHead+condenseTail+1 {
		t.Fatalf("expected %d lines, got %d", condenseHead+condenseTail+1, len(out))
	}
	if !strings.Contains(out[condenseHead], "omitted") {
		t.Errorf("expected omitted-lines marker, got %q", out[condenseHead])
	}
}
