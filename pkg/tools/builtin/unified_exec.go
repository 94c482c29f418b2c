package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vtcode/vtcode/pkg/ptymanager"
	"github.com/vtcode/vtcode/pkg/sandboxpolicy"
)

// ExecAction is one of unified_exec's dispatch targets, per §4.F.
type ExecAction string

const (
	ExecActionRun   ExecAction = "run"
	ExecActionWrite ExecAction = "write"
	ExecActionPoll  ExecAction = "poll"
	ExecActionList  ExecAction = "list"
	ExecActionClose ExecAction = "close"
	ExecActionCode  ExecAction = "code"
)

// InferExecAction infers the default action from arguments, per §4.F.
func InferExecAction(params map[string]any) ExecAction {
	if a, ok := stringParam(params, "action"); ok && a != "" {
		return ExecAction(a)
	}
	if _, ok := params["code"]; ok {
		return ExecActionCode
	}
	if _, ok := params["input"]; ok {
		return ExecActionWrite
	}
	if _, ok := params["session_id"]; ok {
		return ExecActionPoll
	}
	return ExecActionRun
}

// UnifiedExec implements the unified_exec verb's PTY-session and sandboxed
// code-execution handlers, per §4.F. A poll goes through ptymanager's
// YieldWait, which blocks the caller for at most yield_ms (default 2000)
// before returning the output gathered so far.
type UnifiedExec struct {
	PTY      *ptymanager.Manager
	Sandbox  *sandboxpolicy.Executor
	sessions int
}

// NewUnifiedExec builds a handler backed by a PTY manager and a sandboxed
// shell executor.
func NewUnifiedExec(pty *ptymanager.Manager, sandbox *sandboxpolicy.Executor) *UnifiedExec {
	return &UnifiedExec{PTY: pty, Sandbox: sandbox}
}

// Execute dispatches params to the matching handler.
func (u *UnifiedExec) Execute(ctx context.Context, params map[string]any) map[string]any {
	action := InferExecAction(params)
	switch action {
	case ExecActionRun:
		return u.run(params)
	case ExecActionWrite:
		return u.write(params)
	case ExecActionPoll:
		return u.poll(ctx, params)
	case ExecActionList:
		return u.list()
	case ExecActionClose:
		return u.close(params)
	case ExecActionCode:
		return u.code(ctx, params)
	default:
		return errResult(fmt.Errorf("unified_exec: unknown action %q", action))
	}
}

func (u *UnifiedExec) run(params map[string]any) map[string]any {
	commandVec := stringSliceParam(params, "command")
	if len(commandVec) == 0 {
		return errResult(fmt.Errorf("unified_exec: command is required"))
	}
	confirm := boolParam(params, "confirm", false)
	if err := ptymanager.ValidatePTYCommand(commandVec, confirm); err != nil {
		return errResult(err)
	}

	workingDir, _ := stringParam(params, "working_dir")
	resolvedDir, err := u.PTY.ResolveWorkingDir(workingDir)
	if err != nil {
		return errResult(err)
	}

	sessionID, _ := stringParam(params, "session_id")
	if sessionID == "" {
		u.sessions++
		sessionID = fmt.Sprintf("exec-%d-%d", time.Now().UnixNano(), u.sessions)
	}

	rows := intParam(params, "rows", 24)
	cols := intParam(params, "cols", 80)
	session, err := u.PTY.CreateSession(sessionID, commandVec, resolvedDir, ptymanager.Size{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return errResult(err)
	}
	return map[string]any{
		"success":     true,
		"session_id":  session.ID,
		"process_id":  session.ID,
		"working_dir": resolvedDir,
	}
}

func (u *UnifiedExec) write(params map[string]any) map[string]any {
	sessionID, ok := stringParam(params, "session_id")
	if !ok || sessionID == "" {
		return errResult(fmt.Errorf("unified_exec: session_id is required"))
	}
	input, _ := stringParam(params, "input")
	isControl := boolParam(params, "is_control_sequence", false)
	if err := u.PTY.SendInputToSession(sessionID, []byte(input), isControl); err != nil {
		return errResult(err)
	}
	return map[string]any{"success": true, "session_id": sessionID}
}

func (u *UnifiedExec) poll(ctx context.Context, params map[string]any) map[string]any {
	sessionID, ok := stringParam(params, "session_id")
	if !ok || sessionID == "" {
		return errResult(fmt.Errorf("unified_exec: session_id is required"))
	}
	yieldMillis := intParam(params, "yield_ms", 2000)
	result := ptymanager.YieldWait(ctx, u.PTY, sessionID, time.Duration(yieldMillis)*time.Millisecond)

	out := map[string]any{
		"success":    true,
		"session_id": sessionID,
		"output":     result.Output,
	}
	if result.ExitCode != nil {
		out["exit_code"] = *result.ExitCode
	}
	return out
}

func (u *UnifiedExec) list() map[string]any {
	infos := u.PTY.ListSessions()
	sessions := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		m := map[string]any{
			"session_id":  info.ID,
			"command":     strings.Join(info.CommandVec, " "),
			"working_dir": info.WorkingDir,
			"closed":      info.Closed,
		}
		if info.ExitCode != nil {
			m["exit_code"] = *info.ExitCode
		}
		sessions = append(sessions, m)
	}
	return map[string]any{"success": true, "sessions": sessions}
}

func (u *UnifiedExec) close(params map[string]any) map[string]any {
	sessionID, ok := stringParam(params, "session_id")
	if !ok || sessionID == "" {
		return errResult(fmt.Errorf("unified_exec: session_id is required"))
	}
	if err := u.PTY.CloseSession(sessionID); err != nil {
		return errResult(err)
	}
	return map[string]any{"success": true, "session_id": sessionID}
}

// codeRunners maps a language name to its interpreter invocation.
var codeRunners = map[string][]string{
	"python3":    {"python3", "-c"},
	"python":     {"python3", "-c"},
	"javascript": {"node", "-e"},
	"node":       {"node", "-e"},
}

// code executes a source snippet through a sandboxed interpreter subprocess,
// tracking file changes under working_dir relative to execution start time
// when track_changes is set, per §4.F.
func (u *UnifiedExec) code(ctx context.Context, params map[string]any) map[string]any {
	source, ok := stringParam(params, "code")
	if !ok || strings.TrimSpace(source) == "" {
		return errResult(fmt.Errorf("unified_exec: code is required"))
	}
	lang, _ := stringParam(params, "language")
	if lang == "" {
		lang = "python3"
	}
	runner, ok := codeRunners[strings.ToLower(lang)]
	if !ok {
		return errResult(fmt.Errorf("unified_exec: unsupported language %q", lang))
	}

	workingDir, _ := stringParam(params, "working_dir")
	resolvedDir, err := u.PTY.ResolveWorkingDir(workingDir)
	if err != nil {
		return errResult(err)
	}

	trackChanges := boolParam(params, "track_changes", false)
	var before map[string]time.Time
	if trackChanges {
		before = snapshotMTimes(resolvedDir)
	}

	command := strings.Join(append(append([]string{}, runner...), quoteArg(source)), " ")
	result := u.Sandbox.Execute(ctx, command, resolvedDir)

	out := map[string]any{
		"success":   result.Error == nil && result.ExitCode == 0,
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
	}
	if result.Error != nil {
		out["error"] = result.Error.Error()
	}
	if trackChanges {
		out["changed_files"] = diffMTimes(before, snapshotMTimes(resolvedDir))
	}
	return out
}

func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func snapshotMTimes(root string) map[string]time.Time {
	snapshot := make(map[string]time.Time)
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		snapshot[path] = info.ModTime()
		return nil
	})
	return snapshot
}

func diffMTimes(before, after map[string]time.Time) []string {
	var changed []string
	for path, mtime := range after {
		if prev, ok := before[path]; !ok || !prev.Equal(mtime) {
			changed = append(changed, path)
		}
	}
	return changed
}
