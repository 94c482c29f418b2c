package tui

import "unicode"

// InputBuffer is the multi-line text editor backing the input box: cursor
// position, word-wise motion (Alt/Cmd+Left/Right), and insert/delete.
type InputBuffer struct {
	runes  []rune
	cursor int
}

// NewInputBuffer returns an empty input buffer.
func NewInputBuffer() *InputBuffer {
	return &InputBuffer{}
}

// Insert inserts text at the cursor and advances it.
func (b *InputBuffer) Insert(text string) {
	r := []rune(text)
	b.runes = append(b.runes[:b.cursor:b.cursor], append(r, b.runes[b.cursor:]...)...)
	b.cursor += len(r)
}

// InsertNewline inserts a literal newline at the cursor, used for
// Shift+Enter instead of submitting.
func (b *InputBuffer) InsertNewline() {
	b.Insert("\n")
}

// Backspace deletes the rune before the cursor.
func (b *InputBuffer) Backspace() {
	if b.cursor == 0 {
		return
	}
	b.runes = append(b.runes[:b.cursor-1], b.runes[b.cursor:]...)
	b.cursor--
}

// Delete deletes the rune at the cursor.
func (b *InputBuffer) Delete() {
	if b.cursor >= len(b.runes) {
		return
	}
	b.runes = append(b.runes[:b.cursor], b.runes[b.cursor+1:]...)
}

// MoveLeft/MoveRight move the cursor by one rune.
func (b *InputBuffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *InputBuffer) MoveRight() {
	if b.cursor < len(b.runes) {
		b.cursor++
	}
}

// Home/End move to the start/end of the buffer.
func (b *InputBuffer) Home() { b.cursor = 0 }
func (b *InputBuffer) End()  { b.cursor = len(b.runes) }

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// WordLeft moves the cursor to the start of the previous word, the Alt-B /
// Cmd+Left motion.
func (b *InputBuffer) WordLeft() {
	i := b.cursor
	for i > 0 && !isWordRune(b.runes[i-1]) {
		i--
	}
	for i > 0 && isWordRune(b.runes[i-1]) {
		i--
	}
	b.cursor = i
}

// WordRight moves the cursor to the start of the next word, the Alt-F /
// Cmd+Right motion.
func (b *InputBuffer) WordRight() {
	i := b.cursor
	n := len(b.runes)
	for i < n && !isWordRune(b.runes[i]) {
		i++
	}
	for i < n && isWordRune(b.runes[i]) {
		i++
	}
	b.cursor = i
}

// Text returns the full buffer content.
func (b *InputBuffer) Text() string {
	return string(b.runes)
}

// Cursor returns the current cursor position (rune index).
func (b *InputBuffer) Cursor() int {
	return b.cursor
}

// Clear empties the buffer.
func (b *InputBuffer) Clear() {
	b.runes = nil
	b.cursor = 0
}

// IsEmpty reports whether the buffer has no content.
func (b *InputBuffer) IsEmpty() bool {
	return len(b.runes) == 0
}

// History is the input buffer's recall list: Alt-Up/Down navigate it, with
// consecutive-duplicate entries collapsed (deduped) so repeatedly recalling
// the same command does not pad the list.
type History struct {
	entries []string
	cursor  int    // index into entries while navigating; len(entries) means "not navigating"
	draft   string // what was being typed before navigation started
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{cursor: 0}
}

// Push records a submitted entry, deduping against the immediately
// preceding one.
func (h *History) Push(entry string) {
	if entry == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return
	}
	h.entries = append(h.entries, entry)
	h.cursor = len(h.entries)
}

// Up recalls the previous entry, remembering the in-progress draft on the
// first call so Down can restore it.
func (h *History) Up(currentDraft string) (string, bool) {
	if len(h.entries) == 0 || h.cursor == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = currentDraft
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Down recalls the next entry, or restores the draft once navigation
// returns past the newest entry.
func (h *History) Down() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.draft, true
	}
	return h.entries[h.cursor], true
}

// Reset returns the history to "not navigating".
func (h *History) Reset() {
	h.cursor = len(h.entries)
	h.draft = ""
}
