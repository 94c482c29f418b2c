package tui

import (
	"github.com/charmbracelet/glamour"
)

// TranscriptRenderer adapts a TranscriptBuffer to the pkg/runloop.Renderer
// port: the run-loop appends raw content/reasoning deltas as they stream,
// and a glamour pass is applied once per completed message for markdown
// beautification (glamour re-renders a whole document rather than
// appending incrementally, so per-token markdown formatting is not
// attempted — only the buffered reasoning path is marked
// markdown-streaming-capable here, falling back to a buffer-then-render
// for the other case).
type TranscriptRenderer struct {
	transcript     *TranscriptBuffer
	markdownStream bool
	term           *glamour.TermRenderer
}

// NewTranscriptRenderer wires a renderer over transcript. markdownStreaming
// controls whether Reasoning deltas stream inline (true) or buffer until
// the first Token arrives (false), per run-loop step 3.
func NewTranscriptRenderer(transcript *TranscriptBuffer, markdownStreaming bool) (*TranscriptRenderer, error) {
	term, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return nil, err
	}
	return &TranscriptRenderer{
		transcript:     transcript,
		markdownStream: markdownStreaming,
		term:           term,
	}, nil
}

// SupportsMarkdownStreaming implements runloop.Renderer.
func (r *TranscriptRenderer) SupportsMarkdownStreaming() bool {
	return r.markdownStream
}

// AppendContent implements runloop.Renderer: content streams in raw and is
// only run through glamour when the assistant's turn completes (see
// RenderFinalMarkdown).
func (r *TranscriptRenderer) AppendContent(delta string) {
	r.transcript.AppendDelta(KindAssistant, delta)
}

// AppendReasoning implements runloop.Renderer.
func (r *TranscriptRenderer) AppendReasoning(delta string) {
	r.transcript.AppendDelta(KindThinking, delta)
}

// RenderFinalMarkdown re-renders a completed assistant message through
// glamour and replaces the raw streamed text with the formatted result.
// Called once per turn, never per token.
func (r *TranscriptRenderer) RenderFinalMarkdown(raw string) (string, error) {
	return r.term.Render(raw)
}
