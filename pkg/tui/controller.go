package tui

import (
	"github.com/vtcode/vtcode/pkg/runloop"
)

// ModalKind distinguishes what the modal stack's top entry is, for View
// dispatch.
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalList
	ModalWizard
)

// Controller owns the Inline TUI Session's full state: transcript,
// scrolling, input, an optional modal (List or Wizard), and the queued
// follow-ups footer. It is message-driven (Update) in an Elm-style idiom,
// kept deliberately small rather than building a much larger
// keybind/widgets-coupled application.
type Controller struct {
	Width, Height int

	Transcript *TranscriptBuffer
	Scroll     *ScrollState
	Input      *InputBuffer
	History    *History

	Header HeaderInfo

	modalKind ModalKind
	list      *ListModal
	wizard    *WizardModal

	Followups *runloop.FollowupQueue
	Cancel    *runloop.CancelSignal

	onSubmit func(string)
}

// NewController builds a controller over a fresh transcript/input/scroll
// state, wired to the run-loop's follow-up queue and cancel signal.
func NewController(followups *runloop.FollowupQueue, cancel *runloop.CancelSignal, onSubmit func(string)) *Controller {
	return &Controller{
		Transcript: NewTranscriptBuffer(),
		Scroll:     NewScrollState(),
		Input:      NewInputBuffer(),
		History:    NewHistory(),
		Followups:  followups,
		Cancel:     cancel,
		onSubmit:   onSubmit,
	}
}

// OpenList replaces the current modal with a List modal.
func (c *Controller) OpenList(entries []ListEntry, pageSize int) {
	c.list = NewListModal(entries, pageSize)
	c.modalKind = ModalList
}

// OpenWizard replaces the current modal with a Wizard modal.
func (c *Controller) OpenWizard(steps []*WizardStep) {
	c.wizard = NewWizardModal(steps)
	c.modalKind = ModalWizard
}

// CloseModal drops whatever modal is open.
func (c *Controller) CloseModal() {
	c.modalKind = ModalNone
	c.list = nil
	c.wizard = nil
}

// ModalOpen reports whether a modal currently has focus.
func (c *Controller) ModalOpen() bool {
	return c.modalKind != ModalNone
}

func (c *Controller) viewHeight() int {
	return LayoutForScreen(c.Width, c.Height, c.ModalOpen()).ChatHeight
}

// Update applies one message to the controller's state.
func (c *Controller) Update(msg Message) {
	switch m := msg.(type) {
	case ResizeMsg:
		c.Width, c.Height = m.Width, m.Height
		c.Transcript.InvalidateCache()
		rows := len(c.Transcript.Reflow(c.Width))
		c.Scroll.OnResize(rows, c.viewHeight())

	case AddMessageMsg:
		c.Transcript.Append(m.Kind, m.Content)
		rows := len(c.Transcript.Reflow(c.Width))
		c.Scroll.OnContentGrew(rows, c.viewHeight())

	case AppendDeltaMsg:
		c.Transcript.AppendDelta(m.Kind, m.Delta)
		rows := len(c.Transcript.Reflow(c.Width))
		c.Scroll.OnContentGrew(rows, c.viewHeight())

	case KeyMsg:
		c.handleKey(m)

	case PasteMsg:
		if !c.ModalOpen() {
			c.Input.Insert(m.Text)
		}

	case CancelMsg:
		if c.ModalOpen() {
			c.CloseModal()
		} else {
			c.Input.Clear()
			c.History.Reset()
		}
	}
}

func (c *Controller) handleKey(m KeyMsg) {
	if c.modalKind == ModalList && c.list != nil {
		c.handleListKey(m)
		return
	}
	if c.modalKind == ModalWizard && c.wizard != nil {
		c.handleWizardKey(m)
		return
	}
	c.handleInputKey(m)
}

func (c *Controller) handleListKey(m KeyMsg) {
	switch {
	case m.Key == KeyEscape:
		c.CloseModal()
	case m.Key == KeyUp:
		c.list.MoveUp()
	case m.Key == KeyDown:
		c.list.MoveDown()
	case m.Key == KeyPageUp:
		c.list.PageUp()
	case m.Key == KeyPageDown:
		c.list.PageDown()
	case m.Key == KeyHome:
		c.list.Home()
	case m.Key == KeyEnd:
		c.list.End()
	case m.Key == KeyTab:
		c.list.Autocomplete()
	case m.Key == KeyEnter:
		c.CloseModal()
	case m.Key == KeyBackspace:
		q := c.list.query
		if len(q) > 0 {
			c.list.SetQuery(q[:len(q)-1])
		}
	case m.Key == KeyRune:
		c.list.SetQuery(c.list.query + string(m.Rune))
	}
}

func (c *Controller) handleWizardKey(m KeyMsg) {
	switch {
	case m.Key == KeyEscape:
		c.CloseModal()
	case m.Key == KeyLeft:
		c.wizard.Prev()
	case m.Key == KeyRight:
		c.wizard.Next()
	case m.Ctrl && m.Rune == 'n':
		c.wizard.SkipCompleted()
	case m.Key == KeyEnter:
		if c.wizard.IsLastStep() {
			c.wizard.MarkCompleted()
			if c.wizard.AllCompleted() {
				c.CloseModal()
			}
		} else {
			c.wizard.MarkCompleted()
			c.wizard.Next()
		}
	}
}

func (c *Controller) handleInputKey(m KeyMsg) {
	switch {
	case m.Key == KeyEnter && m.Shift:
		c.Input.InsertNewline()
	case m.Key == KeyEnter && (m.Ctrl || m.Cmd):
		text := c.Input.Text()
		if text != "" {
			c.History.Push(text)
			runloop.Submit(text, c.Followups, c.Cancel)
			c.Input.Clear()
		}
	case m.Key == KeyEnter:
		text := c.Input.Text()
		if text != "" {
			c.History.Push(text)
			c.Input.Clear()
			if c.onSubmit != nil {
				c.onSubmit(text)
			}
		}
	case m.Key == KeyBackspace:
		c.Input.Backspace()
	case m.Key == KeyDelete:
		c.Input.Delete()
	case m.Key == KeyLeft && (m.Alt || m.Cmd):
		c.Input.WordLeft()
	case m.Key == KeyRight && (m.Alt || m.Cmd):
		c.Input.WordRight()
	case m.Key == KeyLeft:
		c.Input.MoveLeft()
	case m.Key == KeyRight:
		c.Input.MoveRight()
	case m.Key == KeyHome:
		c.Input.Home()
	case m.Key == KeyEnd:
		c.Input.End()
	case m.Key == KeyUp && m.Alt:
		if text, ok := c.History.Up(c.Input.Text()); ok {
			c.Input.Clear()
			c.Input.Insert(text)
		}
	case m.Key == KeyDown && m.Alt:
		if text, ok := c.History.Down(); ok {
			c.Input.Clear()
			c.Input.Insert(text)
		}
	case m.Key == KeyPageUp:
		c.Scroll.ScrollPageUp(len(c.Transcript.Reflow(c.Width)), c.viewHeight())
	case m.Key == KeyPageDown:
		c.Scroll.ScrollPageDown(len(c.Transcript.Reflow(c.Width)), c.viewHeight())
	case m.Key == KeyRune:
		c.Input.Insert(string(m.Rune))
	}
}

// View renders the current frame as plain text rows: header, transcript
// viewport, queued-follow-ups footer, and input line. Screen paints these
// rows onto a tcell screen in the default style; View itself stays
// dependency-free so it is cheap to unit test.
func (c *Controller) View() []string {
	var out []string
	out = append(out, RenderHeader(c.Header, c.Width)...)

	rows := c.Transcript.Reflow(c.Width)
	start, end := c.Scroll.VisibleRange(len(rows), c.viewHeight())
	out = append(out, rows[start:end]...)

	if footer := RenderFollowupFooter(c.Followups.Len()); footer != "" {
		out = append(out, footer)
	}
	out = append(out, "> "+c.Input.Text())
	return out
}
