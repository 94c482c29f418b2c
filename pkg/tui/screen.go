package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Screen drives a Controller against a real terminal using tcell: it polls
// terminal events, translates them into the Elm-style Message taxonomy, and
// paints Controller.View's plain-text rows onto the tcell.Screen. Grounded
// on the teacher's pkg/ui/backend/tcell adapter (event/key conversion
// table), but collapsed into a single driver since pkg/tui has no separate
// Backend interface to satisfy — the rest of the package stays tcell-free
// so View/Update remain cheap to unit test.
type Screen struct {
	screen      tcell.Screen
	controller  *Controller
	inPaste     bool
	pasteBuffer strings.Builder
}

// NewScreen allocates a tcell screen bound to controller. Init must be
// called before Run.
func NewScreen(controller *Controller) (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Screen{screen: screen, controller: controller}, nil
}

// Init initializes the terminal: raw mode, mouse and bracketed-paste
// reporting, then delivers an initial ResizeMsg so the controller's layout
// matches the real terminal size before the first Draw.
func (s *Screen) Init() error {
	if err := s.screen.Init(); err != nil {
		return err
	}
	s.screen.EnablePaste()
	w, h := s.screen.Size()
	s.controller.Update(ResizeMsg{Width: w, Height: h})
	return nil
}

// Close restores the terminal.
func (s *Screen) Close() {
	s.screen.Fini()
}

// PollAndDispatch blocks for the next terminal event, translates it into a
// Message, and applies it to the controller. It returns false when the
// screen has been asked to stop (a nil event from a closed screen).
func (s *Screen) PollAndDispatch() bool {
	ev := s.screen.PollEvent()
	if ev == nil {
		return false
	}
	if msg, ok := s.convertTcellEvent(ev); ok {
		s.controller.Update(msg)
	}
	return true
}

// Draw paints the controller's current View onto the terminal: one row of
// text per line, clipped to the screen width, cursor parked at the end of
// the input line (the view's last row).
func (s *Screen) Draw() {
	s.screen.Clear()
	rows := s.controller.View()
	style := tcell.StyleDefault
	for y, row := range rows {
		x := 0
		for _, r := range row {
			s.screen.SetContent(x, y, r, nil, style)
			x++
		}
	}
	if n := len(rows); n > 0 {
		s.screen.ShowCursor(len([]rune(rows[n-1])), n-1)
	}
	s.screen.Show()
}

// PostResize injects a synthetic resize event, used by tests and by a
// SIGWINCH handler wired in cmd/vtcode.
func (s *Screen) PostResize(w, h int) error {
	return s.screen.PostEvent(tcell.NewEventResize(w, h))
}

// PollMessages starts a goroutine that blocks on terminal events and
// translates each into a Message on the returned channel, closed once the
// underlying screen stops delivering events (on Close). Callers that need
// to interleave terminal input with other event sources (an in-flight
// run-loop turn, a ticker) select on this channel from their own driver
// loop rather than calling PollAndDispatch directly.
func (s *Screen) PollMessages() <-chan Message {
	ch := make(chan Message)
	go func() {
		defer close(ch)
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			if msg, ok := s.convertTcellEvent(ev); ok {
				ch <- msg
			}
		}
	}()
	return ch
}

// convertTcellEvent translates one tcell.Event into the package's Message
// taxonomy. Paste is a two-part affair in tcell: EventPaste only marks the
// start/end boundary, and the pasted runes arrive as ordinary EventKeys in
// between, so they're buffered and emitted as one PasteMsg at the end,
// mirroring the teacher's tcell backend exactly.
func (s *Screen) convertTcellEvent(ev tcell.Event) (Message, bool) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		w, h := e.Size()
		return ResizeMsg{Width: w, Height: h}, true
	case *tcell.EventPaste:
		if e.Start() {
			s.inPaste = true
			s.pasteBuffer.Reset()
			return nil, false
		}
		s.inPaste = false
		text := s.pasteBuffer.String()
		s.pasteBuffer.Reset()
		if text == "" {
			return nil, false
		}
		return PasteMsg{Text: text}, true
	case *tcell.EventKey:
		if s.inPaste {
			switch e.Key() {
			case tcell.KeyRune:
				s.pasteBuffer.WriteRune(e.Rune())
			case tcell.KeyEnter:
				s.pasteBuffer.WriteRune('\n')
			case tcell.KeyTab:
				s.pasteBuffer.WriteRune('\t')
			}
			return nil, false
		}
		mods := e.Modifiers()
		km := KeyMsg{
			Alt:   mods&tcell.ModAlt != 0,
			Ctrl:  mods&tcell.ModCtrl != 0,
			Shift: mods&tcell.ModShift != 0,
		}
		switch e.Key() {
		case tcell.KeyRune:
			km.Key = KeyRune
			km.Rune = e.Rune()
		case tcell.KeyEnter:
			km.Key = KeyEnter
		case tcell.KeyEscape:
			km.Key = KeyEscape
		case tcell.KeyTab:
			km.Key = KeyTab
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			km.Key = KeyBackspace
		case tcell.KeyDelete:
			km.Key = KeyDelete
		case tcell.KeyLeft:
			km.Key = KeyLeft
		case tcell.KeyRight:
			km.Key = KeyRight
		case tcell.KeyUp:
			km.Key = KeyUp
		case tcell.KeyDown:
			km.Key = KeyDown
		case tcell.KeyHome:
			km.Key = KeyHome
		case tcell.KeyEnd:
			km.Key = KeyEnd
		case tcell.KeyPgUp:
			km.Key = KeyPageUp
		case tcell.KeyPgDn:
			km.Key = KeyPageDown
		case tcell.KeyCtrlC:
			return CancelMsg{}, true
		default:
			return nil, false
		}
		return km, true
	default:
		return nil, false
	}
}
