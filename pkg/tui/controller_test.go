package tui

import (
	"strings"
	"testing"

	"github.com/vtcode/vtcode/pkg/runloop"
)

func newTestController(submitted *[]string) *Controller {
	followups := runloop.NewFollowupQueue()
	cancel := runloop.NewCancelSignal()
	c := NewController(followups, cancel, func(text string) {
		*submitted = append(*submitted, text)
	})
	c.Update(ResizeMsg{Width: 80, Height: 24})
	return c
}

func TestControllerEnterSubmitsAndRecordsHistory(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)

	for _, r := range "hello" {
		c.Update(KeyMsg{Key: KeyRune, Rune: r})
	}
	c.Update(KeyMsg{Key: KeyEnter})

	if len(submitted) != 1 || submitted[0] != "hello" {
		t.Fatalf("expected 'hello' submitted, got %v", submitted)
	}
	if !c.Input.IsEmpty() {
		t.Error("expected input buffer cleared after submit")
	}
}

func TestControllerCtrlEnterRoutesThroughFollowupQueue(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)

	for _, r := range "later" {
		c.Update(KeyMsg{Key: KeyRune, Rune: r})
	}
	c.Update(KeyMsg{Key: KeyEnter, Ctrl: true})

	if len(submitted) != 0 {
		t.Fatalf("expected Ctrl+Enter not to call onSubmit directly, got %v", submitted)
	}
	if c.Followups.Len() != 1 {
		t.Fatalf("expected one queued follow-up, got %d", c.Followups.Len())
	}
}

func TestControllerCtrlEnterCancelLiteralTriggersCancelSignal(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)

	for _, r := range "cancel" {
		c.Update(KeyMsg{Key: KeyRune, Rune: r})
	}
	c.Update(KeyMsg{Key: KeyEnter, Ctrl: true})

	if !c.Cancel.Fired() {
		t.Error("expected the literal 'cancel' follow-up to fire the cancel signal")
	}
	if c.Followups.Len() != 0 {
		t.Error("expected 'cancel' not to be queued as a follow-up")
	}
}

func TestControllerShiftEnterInsertsNewlineInsteadOfSubmitting(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)

	c.Update(KeyMsg{Key: KeyRune, Rune: 'a'})
	c.Update(KeyMsg{Key: KeyEnter, Shift: true})
	c.Update(KeyMsg{Key: KeyRune, Rune: 'b'})

	if len(submitted) != 0 {
		t.Fatalf("expected no submit on Shift+Enter, got %v", submitted)
	}
	if c.Input.Text() != "a\nb" {
		t.Errorf("expected a newline inserted, got %q", c.Input.Text())
	}
}

func TestControllerEscapeClearsInputWhenNoModal(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)
	c.Update(KeyMsg{Key: KeyRune, Rune: 'x'})
	c.Update(CancelMsg{})

	if !c.Input.IsEmpty() {
		t.Error("expected Escape to clear the input buffer")
	}
}

func TestControllerEscapeClosesModalFirst(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)
	c.OpenList(sampleEntries(), 2)

	if !c.ModalOpen() {
		t.Fatal("expected a modal to be open")
	}
	c.Update(CancelMsg{})
	if c.ModalOpen() {
		t.Error("expected Escape to close the modal")
	}
}

func TestControllerViewIncludesHeaderAndInputLine(t *testing.T) {
	var submitted []string
	c := newTestController(&submitted)
	c.Update(AddMessageMsg{Kind: KindAssistant, Content: "hi there"})
	for _, r := range "yo" {
		c.Update(KeyMsg{Key: KeyRune, Rune: r})
	}

	view := c.View()
	if len(view) == 0 {
		t.Fatal("expected a non-empty view")
	}
	last := view[len(view)-1]
	if !strings.HasPrefix(last, "> ") || !strings.Contains(last, "yo") {
		t.Errorf("expected the last line to be the input prompt with typed text, got %q", last)
	}
}
