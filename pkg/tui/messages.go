// Package tui implements the Inline TUI Session: a transcript buffer with
// reflow and scrolling, an input buffer with word-wise motion and history,
// List and Wizard modals, and a compact header line. Follows an Elm-style
// Message taxonomy with dirty-region tracking and render/wrap/view caches;
// a large command-palette/session-switcher application in the same family
// was not ported file-by-file, since it is deeply specific to a different
// product surface. This package is freshly authored in the same
// message-driven idiom instead.
package tui

import "time"

// Message is the interface for all events flowing through the Inline TUI
// Session. All state mutations happen through Update(Message).
type Message interface {
	isMessage()
}

// KeyMsg wraps a terminal key event.
type KeyMsg struct {
	Key   Key
	Rune  rune
	Alt   bool
	Ctrl  bool
	Cmd   bool
	Shift bool
}

func (KeyMsg) isMessage() {}

// Key enumerates the non-printable keys the input buffer and modals react
// to; printable input arrives as KeyMsg.Rune with Key == KeyRune.
type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyEscape
	KeyTab
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
)

// ResizeMsg signals a terminal resize; the transcript reflows and the
// scroll offset clamps to the new viewport.
type ResizeMsg struct {
	Width  int
	Height int
}

func (ResizeMsg) isMessage() {}

// PasteMsg delivers bracketed-paste text as a single insert.
type PasteMsg struct{ Text string }

func (PasteMsg) isMessage() {}

// TickMsg drives the header's adaptive animation and coalesced streaming
// flush cadence.
type TickMsg struct{ Time time.Time }

func (TickMsg) isMessage() {}

// AddMessageMsg appends a new transcript line of the given kind.
type AddMessageMsg struct {
	Kind    MessageKind
	Content string
}

func (AddMessageMsg) isMessage() {}

// AppendDeltaMsg extends the last transcript line when its kind matches,
// per the run-loop's streaming Token/Reasoning events.
type AppendDeltaMsg struct {
	Kind  MessageKind
	Delta string
}

func (AppendDeltaMsg) isMessage() {}

// SubmitMsg is emitted when Enter submits the input buffer.
type SubmitMsg struct{ Text string }

func (SubmitMsg) isMessage() {}

// QueueSubmitMsg is emitted on Ctrl+Enter/Cmd+Enter: queue as a follow-up
// instead of submitting immediately.
type QueueSubmitMsg struct{ Text string }

func (QueueSubmitMsg) isMessage() {}

// CancelMsg is emitted on Escape: closes the top modal, or if none is open,
// clears the input buffer.
type CancelMsg struct{}

func (CancelMsg) isMessage() {}
