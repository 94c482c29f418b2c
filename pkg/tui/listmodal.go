package tui

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeForSearch applies NFC normalization before case-folding so that
// visually identical labels with differing Unicode compositions (combining
// accents typed separately vs. precomposed) compare equal, per §4.H's
// "normalized" fuzzy-search requirement.
func normalizeForSearch(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// ListEntryKind distinguishes selectable rows from structural ones.
type ListEntryKind int

const (
	EntrySelectable ListEntryKind = iota
	EntryHeader
	EntryDivider
)

// ListEntry is one row in a List modal (the model picker's searchable list,
// the MCP tool browser, etc).
type ListEntry struct {
	Kind  ListEntryKind
	Label string
	Value string
}

// ListModal is a searchable, paginated selection list: headers and dividers
// are structural and never selectable; fuzzy search narrows the visible
// set; Tab autocompletes the query to the sole remaining match.
type ListModal struct {
	entries        []ListEntry
	query          string
	visibleIndices []int
	cursor         int // index into visibleIndices
	pageSize       int
}

// NewListModal builds a modal over entries with the given page size for
// PageUp/PageDown.
func NewListModal(entries []ListEntry, pageSize int) *ListModal {
	m := &ListModal{entries: entries, pageSize: pageSize}
	m.refilter()
	return m
}

// SetQuery updates the fuzzy search query and recomputes visible indices.
func (m *ListModal) SetQuery(query string) {
	m.query = query
	m.refilter()
}

func (m *ListModal) refilter() {
	m.visibleIndices = m.visibleIndices[:0]
	q := normalizeForSearch(m.query)
	for i, e := range m.entries {
		if e.Kind != EntrySelectable {
			m.visibleIndices = append(m.visibleIndices, i)
			continue
		}
		if q == "" || fuzzyMatch(normalizeForSearch(e.Label), q) {
			m.visibleIndices = append(m.visibleIndices, i)
		}
	}
	if m.cursor >= len(m.visibleIndices) {
		m.cursor = len(m.visibleIndices) - 1
	}
	m.clampToSelectable(1)
}

// fuzzyMatch reports whether every rune of q appears in s in order,
// allowing gaps — a subsequence match, the common terminal fuzzy-find rule.
func fuzzyMatch(s, q string) bool {
	i := 0
	for _, r := range s {
		if i >= len(q) {
			return true
		}
		if rune(q[i]) == r {
			i++
		}
	}
	return i >= len(q)
}

// VisibleIndices returns the entry indices currently shown, in order.
func (m *ListModal) VisibleIndices() []int {
	return m.visibleIndices
}

// Cursor returns the index, within VisibleIndices, of the highlighted row.
func (m *ListModal) Cursor() int {
	if m.cursor < 0 {
		return 0
	}
	return m.cursor
}

func (m *ListModal) selectableAt(pos int) bool {
	if pos < 0 || pos >= len(m.visibleIndices) {
		return false
	}
	return m.entries[m.visibleIndices[pos]].Kind == EntrySelectable
}

func (m *ListModal) clampToSelectable(dir int) {
	n := len(m.visibleIndices)
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	start := m.cursor
	for i := 0; i < n; i++ {
		if m.selectableAt(m.cursor) {
			return
		}
		m.cursor += dir
		if m.cursor < 0 {
			m.cursor = n - 1
		}
		if m.cursor >= n {
			m.cursor = 0
		}
		if m.cursor == start {
			return
		}
	}
}

// MoveDown/MoveUp move the cursor to the next/previous selectable row,
// skipping headers and dividers.
func (m *ListModal) MoveDown() {
	m.cursor++
	m.clampToSelectable(1)
}

func (m *ListModal) MoveUp() {
	m.cursor--
	m.clampToSelectable(-1)
}

// PageDown/PageUp jump by pageSize rows.
func (m *ListModal) PageDown() {
	m.cursor += m.pageSize
	m.clampToSelectable(1)
}

func (m *ListModal) PageUp() {
	m.cursor -= m.pageSize
	m.clampToSelectable(-1)
}

// Home/End jump to the first/last selectable row.
func (m *ListModal) Home() {
	m.cursor = 0
	m.clampToSelectable(1)
}

func (m *ListModal) End() {
	m.cursor = len(m.visibleIndices) - 1
	m.clampToSelectable(-1)
}

// Selected returns the currently highlighted entry, if any.
func (m *ListModal) Selected() (ListEntry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visibleIndices) {
		return ListEntry{}, false
	}
	return m.entries[m.visibleIndices[m.cursor]], true
}

// Autocomplete implements Tab: when exactly one selectable entry survives
// the current query, its label replaces the query.
func (m *ListModal) Autocomplete() (string, bool) {
	var match *ListEntry
	count := 0
	for _, i := range m.visibleIndices {
		if m.entries[i].Kind != EntrySelectable {
			continue
		}
		count++
		match = &m.entries[i]
	}
	if count != 1 {
		return "", false
	}
	m.SetQuery(match.Label)
	return match.Label, true
}
