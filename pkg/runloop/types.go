// Package runloop implements the streaming run-loop: the single async task
// that drives one assistant turn end to end, accumulating content and
// reasoning deltas and animating a status line while it waits. Individual
// provider wire formats are out of scope here; Provider is an injected
// port and this package only knows the stream event ABI below.
package runloop

import (
	"context"

	"github.com/vtcode/vtcode/pkg/tools"
)

// Message is one turn of conversation history. Tool calls embedded here
// reuse pkg/tools.ToolCall rather than redefining a parallel shape, since
// they cross directly into the Unified Tool Registry's executor boundary.
type Message struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Reasoning  string           `json:"-"`
	ToolCalls  []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// Usage reports token accounting for a completed turn, when the provider
// supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final, fully-materialized assistant turn a provider
// surfaces via Completed. Per the ABI, tool calls arrive whole here; the
// stream itself only carries incremental Token/Reasoning text.
type Response struct {
	Content      string           `json:"content,omitempty"`
	Reasoning    string           `json:"reasoning,omitempty"`
	ToolCalls    []tools.ToolCall `json:"tool_calls,omitempty"`
	Usage        *Usage           `json:"usage,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// Request is what the run-loop hands to a provider for one turn.
type Request struct {
	Model           string
	ReasoningEffort string
	Messages        []Message
	Tools           []tools.Definition
}

// StreamEvent is the provider stream event ABI: Token{delta}, Reasoning{delta},
// Completed{response}, or an error. The core does not care how the transport
// produces these; it only switches on the concrete type.
type StreamEvent interface {
	isStreamEvent()
}

// TokenEvent carries an incremental content delta.
type TokenEvent struct{ Delta string }

// ReasoningEvent carries an incremental reasoning/thinking delta.
type ReasoningEvent struct{ Delta string }

// CompletedEvent carries the final materialized response for the turn.
type CompletedEvent struct{ Response Response }

// ErrorEvent surfaces a provider-level failure; the stream ends after it.
type ErrorEvent struct{ Err error }

func (TokenEvent) isStreamEvent()     {}
func (ReasoningEvent) isStreamEvent() {}
func (CompletedEvent) isStreamEvent() {}
func (ErrorEvent) isStreamEvent()     {}

// Provider is the injected port a concrete model client satisfies. Stream
// returns a channel of StreamEvent that the run-loop drains until it is
// closed; the provider is responsible for closing it once Completed or
// ErrorEvent has been sent.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// ToolExecutor is the injected port for dispatching a model-issued tool
// call into the Unified Tool Registry (consulting the Tool Policy Store,
// sandbox, and dotfile guardian along the way). The run-loop itself knows
// nothing about individual tools.
type ToolExecutor interface {
	Execute(ctx context.Context, call tools.ToolCall) (tools.ToolResult, error)
}
