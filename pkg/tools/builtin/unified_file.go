package builtin

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vtcode/vtcode/pkg/filewatch"
	"github.com/vtcode/vtcode/pkg/sandboxpolicy"
)

// FileAction is one of unified_file's dispatch targets, per §4.F.
type FileAction string

const (
	FileActionRead   FileAction = "read"
	FileActionWrite  FileAction = "write"
	FileActionEdit   FileAction = "edit"
	FileActionPatch  FileAction = "patch"
	FileActionDelete FileAction = "delete"
	FileActionMove   FileAction = "move"
	FileActionCopy   FileAction = "copy"
)

// InferFileAction infers the default action from arguments when the caller
// does not supply one explicitly, per §4.F ("patch present -> patch").
func InferFileAction(params map[string]any) FileAction {
	if a, ok := stringParam(params, "action"); ok && a != "" {
		return FileAction(a)
	}
	if _, ok := params["patch"]; ok {
		return FileActionPatch
	}
	if _, ok := params["destination"]; ok {
		return FileActionMove
	}
	if _, ok := params["content"]; ok {
		return FileActionWrite
	}
	return FileActionRead
}

// UnifiedFile implements the unified_file verb's fine-grained handlers.
type UnifiedFile struct {
	WorkDir string
	Read    *ReadFileHandler
	Policy  sandboxpolicy.Policy
	Watcher *filewatch.FileWatcher
}

// NewUnifiedFile builds a handler rooted at workDir, with no sandbox
// gating (used by tests and callers without a policy in effect).
func NewUnifiedFile(workDir string) *UnifiedFile {
	return &UnifiedFile{WorkDir: workDir, Read: NewReadFileHandler(workDir, 8)}
}

// NewUnifiedFileWithPolicy builds a handler rooted at workDir whose reads
// and writes are gated by policy's sensitive-path rules.
func NewUnifiedFileWithPolicy(workDir string, policy sandboxpolicy.Policy) *UnifiedFile {
	handler := NewReadFileHandler(workDir, 8)
	handler.Policy = policy
	return &UnifiedFile{WorkDir: workDir, Read: handler, Policy: policy}
}

// WithWatcher attaches a FileWatcher that the write, edit, delete, move and
// copy actions notify (patch does not), so subscribers see those tool-driven
// writes alongside externally-observed ones.
func (u *UnifiedFile) WithWatcher(w *filewatch.FileWatcher) *UnifiedFile {
	u.Watcher = w
	return u
}

func (u *UnifiedFile) notify(path string, changeType filewatch.ChangeType, oldPath string) {
	if u.Watcher == nil {
		return
	}
	change := filewatch.FileChange{Path: path, Type: changeType, OldPath: oldPath, ToolName: "unified_file"}
	if info, err := os.Stat(path); err == nil {
		change.Size = info.Size()
		change.ModTime = info.ModTime()
	} else {
		change.ModTime = time.Now()
	}
	u.Watcher.Notify(change)
}

// Execute dispatches params (tagged with an explicit or inferred action) to
// the matching handler. Results are always maps with a "success" bool, per
// §6's tool invocation ABI.
func (u *UnifiedFile) Execute(params map[string]any) map[string]any {
	action := InferFileAction(params)
	switch action {
	case FileActionRead:
		return u.read(params)
	case FileActionWrite:
		return u.write(params)
	case FileActionEdit:
		return u.edit(params)
	case FileActionPatch:
		return u.patch(params)
	case FileActionDelete:
		return u.delete(params)
	case FileActionMove:
		return u.move(params)
	case FileActionCopy:
		return u.copy(params)
	default:
		return errResult(fmt.Errorf("unified_file: unknown action %q", action))
	}
}

func errResult(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

// checkWritable denies the operation when a Policy is set and refuses the
// write, mirroring the read-side gating in ReadFileHandler.ReadOne.
func (u *UnifiedFile) checkWritable(absPath string) error {
	if u.Policy == nil {
		return nil
	}
	if !u.Policy.AllowsWrite(absPath) {
		return fmt.Errorf("unified_file: write to %s denied by sandbox policy", absPath)
	}
	return nil
}

func (u *UnifiedFile) read(params map[string]any) map[string]any {
	if reads, ok := params["reads"].([]any); ok {
		reqs := make([]ReadRequest, 0, len(reads))
		for _, r := range reads {
			rm, ok := r.(map[string]any)
			if !ok {
				continue
			}
			reqs = append(reqs, readRequestFromParams(rm))
		}
		content, outcomes, succeeded := u.Read.Batch(reqs)
		return map[string]any{
			"success":         true,
			"files_read":      len(reqs),
			"files_succeeded": succeeded,
			"content":         content,
			"results":         outcomesToMaps(outcomes),
		}
	}

	req := readRequestFromParams(params)
	outcome := u.Read.ReadOne(req)
	if outcome.Err != nil {
		return errResult(outcome.Err)
	}
	return map[string]any{
		"success":    true,
		"path":       outcome.Path,
		"content":    strings.Join(outcome.Lines, "\n"),
		"first_line": outcome.FirstLine,
		"last_line":  outcome.LastLine,
	}
}

func readRequestFromParams(params map[string]any) ReadRequest {
	path, _ := stringParam(params, "path")
	req := ReadRequest{Path: path}
	if _, ok := params["anchor_line"]; ok {
		req.Mode = ModeIndentation
		req.Indent = IndentationOptions{
			AnchorLine:      intParam(params, "anchor_line", 1),
			MaxLevels:       intParam(params, "max_levels", 0),
			IncludeSiblings: boolParam(params, "include_siblings", false),
			IncludeHeader:   boolParam(params, "include_header", false),
			MaxLines:        intParam(params, "max_lines", 0),
		}
		return req
	}
	req.Mode = ModeSlice
	req.Slice = SliceOptions{
		Offset: intParam(params, "offset", 1),
		Limit:  intParam(params, "limit", 0),
	}
	return req
}

func outcomesToMaps(outcomes []ReadOutcome) []map[string]any {
	out := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		m := map[string]any{"path": o.Path}
		if o.Err != nil {
			m["success"] = false
			m["error"] = o.Err.Error()
		} else {
			m["success"] = true
			m["first_line"] = o.FirstLine
			m["last_line"] = o.LastLine
		}
		out = append(out, m)
	}
	return out
}

func (u *UnifiedFile) write(params map[string]any) map[string]any {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return errResult(fmt.Errorf("unified_file: path is required"))
	}
	content, ok := stringParam(params, "content")
	if !ok {
		return errResult(fmt.Errorf("unified_file: content is required"))
	}
	absPath, err := resolvePath(u.WorkDir, path)
	if err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absPath); err != nil {
		return errResult(err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return errResult(fmt.Errorf("unified_file: mkdir: %w", err))
	}
	_, statErr := os.Stat(absPath)
	isNew := os.IsNotExist(statErr)
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return errResult(fmt.Errorf("unified_file: write: %w", err))
	}
	changeType := filewatch.ChangeModified
	if isNew {
		changeType = filewatch.ChangeCreated
	}
	u.notify(absPath, changeType, "")
	return map[string]any{
		"success": true,
		"path":    absPath,
		"size":    len(content),
		"is_new":  isNew,
	}
}

// edit replaces the first occurrence of old_text with new_text in the file,
// or all occurrences when replace_all is true.
func (u *UnifiedFile) edit(params map[string]any) map[string]any {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return errResult(fmt.Errorf("unified_file: path is required"))
	}
	oldText, _ := stringParam(params, "old_text")
	newText, _ := stringParam(params, "new_text")
	replaceAll := boolParam(params, "replace_all", false)

	absPath, err := resolvePath(u.WorkDir, path)
	if err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absPath); err != nil {
		return errResult(err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return errResult(fmt.Errorf("unified_file: edit: %w", err))
	}
	content := string(data)
	if oldText != "" && !strings.Contains(content, oldText) {
		return errResult(fmt.Errorf("unified_file: old_text not found in %s", absPath))
	}

	var updated string
	replacements := 0
	if replaceAll {
		replacements = strings.Count(content, oldText)
		updated = strings.ReplaceAll(content, oldText, newText)
	} else {
		replacements = 1
		updated = strings.Replace(content, oldText, newText, 1)
	}

	if err := os.WriteFile(absPath, []byte(updated), 0o644); err != nil {
		return errResult(fmt.Errorf("unified_file: edit write: %w", err))
	}
	u.notify(absPath, filewatch.ChangeModified, "")
	return map[string]any{
		"success":      true,
		"path":         absPath,
		"replacements": replacements,
	}
}

// patch applies a unified diff, accepting base64:-prefixed input per §4.F.
func (u *UnifiedFile) patch(params map[string]any) map[string]any {
	raw, ok := stringParam(params, "patch")
	if !ok || strings.TrimSpace(raw) == "" {
		return errResult(fmt.Errorf("unified_file: patch is required"))
	}

	patchText := raw
	if strings.HasPrefix(raw, "base64:") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, "base64:"))
		if err != nil {
			return errResult(fmt.Errorf("unified_file: invalid base64 patch: %w", err))
		}
		patchText = string(decoded)
	}

	strip := intParam(params, "strip", 0)
	cmd := exec.Command("patch", fmt.Sprintf("-p%d", strip), "-N", "-s")
	if u.WorkDir != "" {
		cmd.Dir = u.WorkDir
	}
	cmd.Stdin = strings.NewReader(patchText)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errResult(fmt.Errorf("unified_file: patch failed: %v: %s", err, strings.TrimSpace(string(output))))
	}
	return map[string]any{
		"success": true,
		"strip":   strip,
		"message": strings.TrimSpace(string(output)),
	}
}

func (u *UnifiedFile) delete(params map[string]any) map[string]any {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return errResult(fmt.Errorf("unified_file: path is required"))
	}
	absPath, err := resolvePath(u.WorkDir, path)
	if err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absPath); err != nil {
		return errResult(err)
	}
	if err := os.Remove(absPath); err != nil {
		return errResult(fmt.Errorf("unified_file: delete: %w", err))
	}
	u.notify(absPath, filewatch.ChangeDeleted, "")
	return map[string]any{"success": true, "path": absPath}
}

func (u *UnifiedFile) move(params map[string]any) map[string]any {
	src, ok := stringParam(params, "path")
	if !ok || src == "" {
		return errResult(fmt.Errorf("unified_file: path is required"))
	}
	dst, ok := stringParam(params, "destination")
	if !ok || dst == "" {
		return errResult(fmt.Errorf("unified_file: destination is required"))
	}
	absSrc, err := resolvePath(u.WorkDir, src)
	if err != nil {
		return errResult(err)
	}
	absDst, err := resolvePath(u.WorkDir, dst)
	if err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absSrc); err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absDst); err != nil {
		return errResult(err)
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return errResult(fmt.Errorf("unified_file: mkdir: %w", err))
	}
	if err := os.Rename(absSrc, absDst); err != nil {
		return errResult(fmt.Errorf("unified_file: move: %w", err))
	}
	u.notify(absDst, filewatch.ChangeRenamed, absSrc)
	return map[string]any{"success": true, "path": absDst}
}

func (u *UnifiedFile) copy(params map[string]any) map[string]any {
	src, ok := stringParam(params, "path")
	if !ok || src == "" {
		return errResult(fmt.Errorf("unified_file: path is required"))
	}
	dst, ok := stringParam(params, "destination")
	if !ok || dst == "" {
		return errResult(fmt.Errorf("unified_file: destination is required"))
	}
	absSrc, err := resolvePath(u.WorkDir, src)
	if err != nil {
		return errResult(err)
	}
	absDst, err := resolvePath(u.WorkDir, dst)
	if err != nil {
		return errResult(err)
	}
	if err := u.checkWritable(absDst); err != nil {
		return errResult(err)
	}
	data, err := os.ReadFile(absSrc)
	if err != nil {
		return errResult(fmt.Errorf("unified_file: copy read: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return errResult(fmt.Errorf("unified_file: mkdir: %w", err))
	}
	if err := os.WriteFile(absDst, data, 0o644); err != nil {
		return errResult(fmt.Errorf("unified_file: copy write: %w", err))
	}
	u.notify(absDst, filewatch.ChangeCreated, "")
	return map[string]any{"success": true, "path": absDst, "size": len(data)}
}
