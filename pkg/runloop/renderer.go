package runloop

// Renderer is the injected port the Inline TUI Session satisfies. The
// run-loop never formats terminal output itself; it only decides what to
// send and when, per step 3's per-event-type handling.
type Renderer interface {
	// SupportsMarkdownStreaming reports whether the renderer can stream
	// partial markdown safely (honoring newline boundaries itself). When
	// false, reasoning is buffered instead of streamed inline.
	SupportsMarkdownStreaming() bool
	// AppendContent streams a content delta into the transcript.
	AppendContent(delta string)
	// AppendReasoning streams a reasoning delta into the transcript.
	AppendReasoning(delta string)
}
