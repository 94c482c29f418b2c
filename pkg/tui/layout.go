package tui

// Layout thresholds: minimum viewport rows and the screen-width breakpoints
// at which a secondary sidebar (here: the queued-follow-ups footer growing
// into a fuller panel) gets more room.
const (
	minInputHeight = 2
	minChatHeight  = 4
	wideWidth      = 120
)

// LayoutSpec describes how much of the frame the transcript viewport gets,
// derived from the terminal's current size.
type LayoutSpec struct {
	ShowHeader   bool
	ShowFooter   bool
	HeaderHeight int
	InputHeight  int
	ChatHeight   int
}

// LayoutForScreen computes the layout for a width x height terminal. Focus
// mode (e.g. during a full-screen modal) drops the header and footer
// entirely to maximize the modal's own space.
func LayoutForScreen(width, height int, focusMode bool) LayoutSpec {
	if focusMode {
		return LayoutSpec{InputHeight: minInputHeight, ChatHeight: maxInt(minChatHeight, height-minInputHeight)}
	}
	headerHeight := minHeaderHeight
	showFooter := height >= 10
	chat := height - headerHeight - minInputHeight
	if showFooter {
		chat--
	}
	return LayoutSpec{
		ShowHeader:   true,
		ShowFooter:   showFooter,
		HeaderHeight: headerHeight,
		InputHeight:  minInputHeight,
		ChatHeight:   maxInt(minChatHeight, chat),
	}
}
