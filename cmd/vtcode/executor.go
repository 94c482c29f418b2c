package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vtcode/vtcode/pkg/logging"
	"github.com/vtcode/vtcode/pkg/mcpclient"
	"github.com/vtcode/vtcode/pkg/safety"
	"github.com/vtcode/vtcode/pkg/tools"
	"github.com/vtcode/vtcode/pkg/tools/builtin"
	"github.com/vtcode/vtcode/pkg/toolpolicy"
)

// PromptFunc asks the operator to approve a call the gateway flagged with
// NeedsApproval, returning true when approved.
type PromptFunc func(call safety.Call, result safety.Result) bool

// promptHandlerAdapter satisfies toolpolicy.PermissionPromptHandler by
// wrapping a PromptFunc with the safety.Call/Result context it closed
// over. should_execute_tool never sees a nil adapter: when the CLI wires
// no PromptFunc at all, Execute passes a nil PermissionPromptHandler
// directly, so that should_execute_tool's own "missing handler defaults
// to Allowed" rule (§4.C) applies instead of this adapter's.
type promptHandlerAdapter struct {
	prompt PromptFunc
	call   safety.Call
	result safety.Result
}

func (p promptHandlerAdapter) PromptForPermission(tool string) (bool, string) {
	if p.prompt(p.call, p.result) {
		return true, ""
	}
	return false, fmt.Sprintf("rejected at %s: %s", p.result.Step, p.result.Reason)
}

// toolExecutor dispatches the three unified-verb tool calls to their
// fine-grained builtin executors and implements runloop.ToolExecutor. Every
// call is first evaluated by the Safety Gateway — the single choke point
// tool calls pass through before reaching a concrete executor — so rate
// limiting, dotfile protection, plan mode, command policy, and risk
// scoring apply uniformly across unified_exec and unified_file.
type toolExecutor struct {
	exec    *builtin.UnifiedExec
	file    *builtin.UnifiedFile
	search  *builtin.UnifiedSearch
	mcp     map[string]*mcpclient.ToolAdapter
	gateway *safety.Gateway
	prompt  PromptFunc
	logger  *logging.Logger
}

func newToolExecutor(exec *builtin.UnifiedExec, file *builtin.UnifiedFile, search *builtin.UnifiedSearch, gateway *safety.Gateway, prompt PromptFunc) *toolExecutor {
	return &toolExecutor{exec: exec, file: file, search: search, gateway: gateway, prompt: prompt}
}

// WithMCPTools installs the MCP tool adapters RegisterAll returned, keyed by
// their "mcp__<server>__<tool>" name, so Execute can route calls to them
// alongside the three built-in unified verbs.
func (t *toolExecutor) WithMCPTools(adapters map[string]*mcpclient.ToolAdapter) *toolExecutor {
	t.mcp = adapters
	return t
}

// WithLogger installs the structured logger Execute reports tool dispatch
// and safety decisions to. A nil logger (the default) leaves Execute silent.
func (t *toolExecutor) WithLogger(logger *logging.Logger) *toolExecutor {
	t.logger = logger
	return t
}

func (t *toolExecutor) logSafety(eventType string, tool string, detail string) {
	if t.logger == nil {
		return
	}
	_ = t.logger.Warn(logging.CategorySafety, eventType, detail, map[string]any{"tool": tool})
}

func (t *toolExecutor) logTool(tool string, isError bool) {
	if t.logger == nil {
		return
	}
	if isError {
		_ = t.logger.Warn(logging.CategoryTool, "tool_error", "", map[string]any{"tool": tool})
		return
	}
	_ = t.logger.Debug(logging.CategoryTool, "tool_dispatch", "", map[string]any{"tool": tool})
}

func (t *toolExecutor) Execute(ctx context.Context, call tools.ToolCall) (tools.ToolResult, error) {
	var params map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &params); err != nil {
			return tools.NewToolError(call.ID, fmt.Errorf("parse arguments: %w", err)), nil
		}
	}
	if params == nil {
		params = map[string]any{}
	}

	if t.gateway != nil {
		safetyCall := buildSafetyCall(call.Name, params)
		result := t.gateway.Evaluate(safetyCall)
		switch result.Decision {
		case safety.Deny:
			t.logSafety("gateway_deny", call.Name, fmt.Sprintf("%s: %s", result.Step, result.Reason))
			return tools.NewToolError(call.ID, fmt.Errorf("denied by safety gateway at %s: %s", result.Step, result.Reason)), nil
		case safety.Prompt:
			key := safetyCall.Command
			if key == "" {
				key = safetyCall.Tool
			}
			var handler toolpolicy.PermissionPromptHandler
			if t.prompt != nil {
				handler = promptHandlerAdapter{prompt: t.prompt, call: safetyCall, result: result}
			}
			outcome := t.gateway.ShouldExecuteTool(key, handler)
			if outcome.Status != toolpolicy.Allowed {
				reason := outcome.Feedback
				if reason == "" {
					reason = fmt.Sprintf("rejected at %s: %s", result.Step, result.Reason)
				}
				t.logSafety("should_execute_tool_deny", key, reason)
				return tools.NewToolError(call.ID, fmt.Errorf("%s", reason)), nil
			}
			if err := t.gateway.RecordApproval(safetyCall); err != nil {
				return tools.NewToolError(call.ID, fmt.Errorf("record approval: %w", err)), nil
			}
		}
		defer t.gateway.RecordExecution(safetyCall.Tool)
	}

	if adapter, ok := t.mcp[call.Name]; ok {
		res, err := adapter.Execute(ctx, params)
		if err != nil {
			return tools.NewToolError(call.ID, err), nil
		}
		res.CallID = call.ID
		return *res, nil
	}

	var result map[string]any
	switch call.Name {
	case "unified_exec":
		result = t.exec.Execute(ctx, params)
	case "unified_file":
		result = t.file.Execute(params)
	case "unified_search":
		result = t.search.Execute(ctx, params)
	default:
		return tools.NewToolError(call.ID, fmt.Errorf("unknown tool %q", call.Name)), nil
	}

	isError := false
	if v, ok := result["error"]; ok && v != nil && v != "" {
		isError = true
	}
	t.logTool(call.Name, isError)
	res, err := tools.NewToolResult(call.ID, result)
	if err != nil {
		return tools.NewToolError(call.ID, err), nil
	}
	res.IsError = isError
	return res, nil
}

// buildSafetyCall extracts the path/command fields the gateway's evaluation
// pipeline keys on from a tool call's raw argument map.
func buildSafetyCall(name string, params map[string]any) safety.Call {
	call := safety.Call{Tool: name}
	switch name {
	case "unified_file":
		if path, ok := params["path"].(string); ok {
			call.Path = path
		}
	case "unified_exec":
		call.Command = strings.Join(commandParam(params), " ")
		if dir, ok := params["working_dir"].(string); ok {
			call.Path = dir
		}
	}
	return call
}

// commandParam reads the "command" argument as a string slice, accepting
// either a []any (the JSON array shape models produce) or a bare string.
func commandParam(params map[string]any) []string {
	switch v := params["command"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
