package tui

import (
	"fmt"
	"strings"
)

// HeaderInfo is the data the header line summarizes: provider/model,
// reasoning level, run mode, trust level, and tool counts, per §4.H.
type HeaderInfo struct {
	Provider       string
	Model          string
	ReasoningLevel string
	Mode           string
	TrustLevel     string
	ToolCount      int
	Highlights     []string // e.g. active MCP servers, queued approvals
}

// maxHighlightChars caps how many characters of the highlight list render
// before collapsing the remainder into "(+N more)".
const maxHighlightChars = 48

// RenderHeader builds the single compact header line. height selects
// whether the adaptive second row (highlights) is shown at all; the header
// never drops below minHeaderHeight rows when shown.
const minHeaderHeight = 1

func RenderHeader(info HeaderInfo, width int) []string {
	main := fmt.Sprintf("%s/%s · reasoning:%s · %s · trust:%s · tools:%d",
		info.Provider, info.Model, orDash(info.ReasoningLevel), orDash(info.Mode), orDash(info.TrustLevel), info.ToolCount)
	main = truncateToWidth(main, width)

	lines := []string{main}
	if len(info.Highlights) == 0 {
		return lines
	}

	joined := strings.Join(info.Highlights, ", ")
	if len(joined) <= maxHighlightChars {
		lines = append(lines, truncateToWidth(joined, width))
		return lines
	}

	kept := info.Highlights
	budget := maxHighlightChars
	shown := 0
	var b strings.Builder
	for i, h := range kept {
		candidate := h
		if i > 0 {
			candidate = ", " + h
		}
		if b.Len()+len(candidate) > budget {
			break
		}
		b.WriteString(candidate)
		shown++
	}
	remaining := len(kept) - shown
	if remaining > 0 {
		fmt.Fprintf(&b, " (+%d more)", remaining)
	}
	lines = append(lines, truncateToWidth(b.String(), width))
	return lines
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}

// RenderFollowupFooter renders the queued-follow-ups footer line, or an
// empty string when nothing is queued.
func RenderFollowupFooter(count int) string {
	if count == 0 {
		return ""
	}
	return fmt.Sprintf("Follow-ups (%d)", count)
}
