package runloop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vtcode/vtcode/pkg/contextopt"
	"github.com/vtcode/vtcode/pkg/tokenbudget"
	"github.com/vtcode/vtcode/pkg/tools"
)

// ErrCancelled is returned when a turn ends because of a ctrl-c or a
// follow-up "cancel" command.
var ErrCancelled = errors.New("runloop: user interrupt")

// RunLoop drives one assistant turn at a time: racing the provider stream
// against cancellation, rendering incrementally, dispatching tool calls
// through the Unified Tool Registry boundary, and feeding every component
// touched into the Token Budget Manager and Context Optimizer.
type RunLoop struct {
	Provider  Provider
	Executor  ToolExecutor
	Budget    *tokenbudget.Manager
	Optimizer *contextopt.Optimizer
	Renderer  Renderer
	Followups *FollowupQueue
}

// New builds a RunLoop from its injected ports.
func New(provider Provider, executor ToolExecutor, budget *tokenbudget.Manager, optimizer *contextopt.Optimizer, renderer Renderer) *RunLoop {
	return &RunLoop{
		Provider:  provider,
		Executor:  executor,
		Budget:    budget,
		Optimizer: optimizer,
		Renderer:  renderer,
		Followups: NewFollowupQueue(),
	}
}

// TurnResult is what RunTurn reports once the stream ends, is cancelled, or
// errors.
type TurnResult struct {
	Response      Response
	Cancelled     bool
	ExitRequested bool
}

// RunTurn drives a single assistant turn to completion, streaming req
// (whose Model field names the model) from the provider.
func (rl *RunLoop) RunTurn(ctx context.Context, req Request, cancel *CancelSignal) (*TurnResult, error) {
	spinner := newPlaceholderSpinner("thinking")
	spinner.Start()
	defer spinner.Stop()

	events, err := rl.Provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		final            Response
		reasoningBuffer  strings.Builder
		reasoningEmitted bool
		tokensEmitted    int
	)

	for {
		// Cancellation is checked first, non-blockingly, so a ctrl-c that
		// arrived between stream events wins immediately rather than
		// waiting for the next one; the subsequent select then keeps that
		// priority while also waiting on the stream.
		select {
		case <-cancel.C():
			spinner.Stop()
			return &TurnResult{Cancelled: true, ExitRequested: cancel.Escalated()}, ErrCancelled
		default:
		}

		select {
		case <-cancel.C():
			spinner.Stop()
			return &TurnResult{Cancelled: true, ExitRequested: cancel.Escalated()}, ErrCancelled
		case ev, ok := <-events:
			if !ok {
				goto streamDone
			}
			switch e := ev.(type) {
			case TokenEvent:
				if reasoningBuffer.Len() > 0 && !reasoningEmitted {
					rl.Renderer.AppendReasoning(reasoningBuffer.String())
					reasoningBuffer.Reset()
					reasoningEmitted = true
				}
				rl.Renderer.AppendContent(e.Delta)
				tokensEmitted++
				spinner.AddTokens(tokenbudget.EstimateTokens(e.Delta))
			case ReasoningEvent:
				if rl.Renderer.SupportsMarkdownStreaming() {
					rl.Renderer.AppendReasoning(e.Delta)
					reasoningEmitted = true
				} else {
					reasoningBuffer.WriteString(e.Delta)
				}
			case CompletedEvent:
				final = e.Response
			case ErrorEvent:
				reasoningBuffer.Reset()
				return nil, e.Err
			}
		}
	}

streamDone:
	if tokensEmitted == 0 {
		switch {
		case final.Content == "" && final.Reasoning != "":
			// Reasoning is the only content; promote it to the visible
			// response rather than leaving the transcript empty.
			rl.Renderer.AppendContent(final.Reasoning)
			final.Content = final.Reasoning
		case final.Content != "":
			rl.Renderer.AppendContent(final.Content)
		}
	}

	rl.recordUsage(req.Model, final)

	return &TurnResult{Response: final}, nil
}

// recordUsage feeds every component touched by the turn into the Token
// Budget Manager, per step 5.
func (rl *RunLoop) recordUsage(model string, resp Response) {
	if rl.Budget == nil {
		return
	}
	if resp.Usage != nil {
		rl.Budget.RecordTokensForComponent(tokenbudget.ComponentAssistantMessage, resp.Usage.CompletionTokens, model)
		rl.Budget.RecordTokensForComponent(tokenbudget.ComponentUserMessage, resp.Usage.PromptTokens, model)
		return
	}
	if resp.Content != "" {
		rl.Budget.RecordTokensForComponent(tokenbudget.ComponentAssistantMessage, tokenbudget.CountTokens(resp.Content), model)
	}
}

// ExecuteToolCalls dispatches every tool call on a completed response through
// the Unified Tool Registry boundary, runs each result through the Context
// Optimizer, and returns the condensed results as next-turn messages.
func (rl *RunLoop) ExecuteToolCalls(ctx context.Context, model string, calls []tools.ToolCall) []Message {
	messages := make([]Message, 0, len(calls))
	for _, call := range calls {
		result, err := rl.Executor.Execute(ctx, call)
		if err != nil {
			result = tools.NewToolError(call.ID, err)
		}

		content := result.Content
		if rl.Optimizer != nil && !result.IsError {
			var parsed map[string]any
			if jsonErr := json.Unmarshal([]byte(result.Content), &parsed); jsonErr == nil {
				optimized := contextopt.OptimizeResult(call.Name, parsed)
				rl.Optimizer.AppendEntry(call.Name, optimized)
				if encoded, encErr := json.Marshal(optimized); encErr == nil {
					content = string(encoded)
				}
			}
		}

		if rl.Budget != nil {
			rl.Budget.RecordTokensForComponent(tokenbudget.ComponentToolOutput, tokenbudget.CountTokens(content), model)
		}

		messages = append(messages, Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return messages
}
