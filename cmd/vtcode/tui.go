package main

import (
	"context"
	"fmt"

	"github.com/vtcode/vtcode/pkg/config"
	"github.com/vtcode/vtcode/pkg/cost"
	vterrors "github.com/vtcode/vtcode/pkg/errors"
	"github.com/vtcode/vtcode/pkg/logging"
	"github.com/vtcode/vtcode/pkg/runloop"
	"github.com/vtcode/vtcode/pkg/safety"
	"github.com/vtcode/vtcode/pkg/tools"
	"github.com/vtcode/vtcode/pkg/tui"
)

// chanRenderer implements runloop.Renderer by forwarding every delta onto a
// channel instead of mutating a tui.TranscriptBuffer directly. RunTurn calls
// Renderer methods from its own goroutine; funnelling through a channel lets
// the single goroutine that owns the Controller (runInlineTUI's driver
// loop) be the only one that ever touches it, avoiding the data race a
// directly-shared *tui.TranscriptBuffer would invite.
type chanRenderer struct {
	deltas chan tui.AppendDeltaMsg
}

func newChanRenderer() *chanRenderer {
	return &chanRenderer{deltas: make(chan tui.AppendDeltaMsg, 64)}
}

func (r *chanRenderer) SupportsMarkdownStreaming() bool { return false }

func (r *chanRenderer) AppendContent(delta string) {
	r.deltas <- tui.AppendDeltaMsg{Kind: tui.KindAssistant, Delta: delta}
}

func (r *chanRenderer) AppendReasoning(delta string) {
	r.deltas <- tui.AppendDeltaMsg{Kind: tui.KindThinking, Delta: delta}
}

// turnOutcome carries a completed (or failed) turn back to the single
// goroutine that owns the Controller, so transcript/history mutation never
// races with Draw/PollMessages dispatch.
type turnOutcome struct {
	model  string
	result *runloop.TurnResult
	err    error
}

// runInlineTUI drives loop behind pkg/tui's tcell-backed Controller: the
// same run-loop the plain-mode REPL in run() drives, fronted by a real
// terminal instead of a line reader. One goroutine owns the Controller and
// history; turns run on a second goroutine and report streamed deltas and
// a final outcome back over channels, per the cooperative-executor/
// worker-pool split in §5.
func runInlineTUI(loop *runloop.RunLoop, registry *tools.Registry, cfg *config.Config, gateway *safety.Gateway, renderer *chanRenderer, costTracker *cost.Tracker, logger *logging.Logger) error {
	followups := runloop.NewFollowupQueue()
	defs := registry.List()

	var history []runloop.Message
	var cancel *runloop.CancelSignal
	busy := false
	results := make(chan turnOutcome, 1)

	var controller *tui.Controller
	startTurn := func(text string) {
		history = append(history, runloop.Message{Role: "user", Content: text})
		controller.Transcript.Append(tui.KindUser, text)
		controller.Transcript.Append(tui.KindAssistant, "")
		busy = true
		cancel = runloop.NewCancelSignal()
		_ = logger.Info(logging.CategoryTurn, "turn_start", "", map[string]any{"model": cfg.Models.DefaultModel})
		req := runloop.Request{
			Model:           cfg.Models.DefaultModel,
			ReasoningEffort: cfg.Models.Reasoning,
			Messages:        append([]runloop.Message(nil), history...),
			Tools:           defs,
		}
		turnCancel := cancel
		go func() {
			result, err := loop.RunTurn(context.Background(), req, turnCancel)
			results <- turnOutcome{model: req.Model, result: result, err: err}
		}()
	}

	submit := func(text string) {
		if text == "" {
			return
		}
		gateway.StartTurn()
		if busy {
			followups.Push(text)
			return
		}
		startTurn(text)
	}
	controller = tui.NewController(followups, runloop.NewCancelSignal(), submit)

	screen, err := tui.NewScreen(controller)
	if err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Close()

	events := screen.PollMessages()
	screen.Draw()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if _, isCancel := msg.(tui.CancelMsg); isCancel {
				switch {
				case controller.ModalOpen() || !controller.Input.IsEmpty():
					// A modal or in-progress draft takes priority: first
					// ctrl-c closes/clears it, same as a non-busy idle Escape.
					controller.Update(msg)
				case busy && cancel != nil:
					cancel.Notify()
					if cancel.Escalated() {
						return nil
					}
				default:
					return nil
				}
				screen.Draw()
				continue
			}
			controller.Update(msg)

		case delta := <-renderer.deltas:
			controller.Update(delta)

		case outcome := <-results:
			busy = false
			if outcome.err != nil {
				_ = logger.Error(logging.CategoryTurn, "turn_error", outcome.err.Error(), nil)
				controller.Transcript.Append(tui.KindSystem, "turn error: "+outcome.err.Error())
			} else {
				resp := outcome.result.Response
				history = append(history, runloop.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
				if len(resp.ToolCalls) > 0 {
					history = append(history, loop.ExecuteToolCalls(context.Background(), outcome.model, resp.ToolCalls)...)
				}
				if usage := resp.Usage; usage != nil {
					if _, err := costTracker.RecordAPICall(outcome.model, usage.PromptTokens, usage.CompletionTokens); err == nil {
						if status := costTracker.CheckBudget(); status.ShouldWarn || status.ShouldStop {
							controller.Transcript.Append(tui.KindSystem, status.GetWarningMessage())
							if status.ShouldStop {
								budgetErr := vterrors.New(vterrors.ErrCodeBudgetExceeded, status.GetWarningMessage())
								_ = logger.Error(logging.CategoryCost, "budget_exceeded", budgetErr.Error(), nil)
								return budgetErr
							}
						}
					}
				}
				_ = logger.Info(logging.CategoryTurn, "turn_complete", "", map[string]any{"tool_calls": len(resp.ToolCalls)})
			}
			if next, ok := followups.Pop(); ok {
				startTurn(next)
			}
		}
		screen.Draw()
	}
}
