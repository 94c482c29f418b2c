package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vtcode/vtcode/pkg/storage"
	"github.com/vtcode/vtcode/pkg/tools"
)

// SearchAction is one of unified_search's dispatch targets, per §4.F.
type SearchAction string

const (
	SearchActionGrep        SearchAction = "grep"
	SearchActionList        SearchAction = "list"
	SearchActionIntel       SearchAction = "intelligence"
	SearchActionTools       SearchAction = "tools"
	SearchActionErrors      SearchAction = "errors"
	SearchActionAgent       SearchAction = "agent"
	SearchActionWeb         SearchAction = "web"
	SearchActionSkill       SearchAction = "skill"
)

// InferSearchAction infers the default action from arguments, per §4.F
// ("url present -> web").
func InferSearchAction(params map[string]any) SearchAction {
	if a, ok := stringParam(params, "action"); ok && a != "" {
		return SearchAction(a)
	}
	if _, ok := params["url"]; ok {
		return SearchActionWeb
	}
	if _, ok := params["query"]; ok {
		return SearchActionGrep
	}
	return SearchActionList
}

// UnifiedSearch implements the unified_search verb's fine-grained handlers.
// CodeIndex is optional (nil-safe); when absent the "intelligence" action
// reports the index as unavailable rather than failing the whole verb. The
// "errors" action reads the session's log file from disk.
type UnifiedSearch struct {
	WorkDir     string
	Registry    *tools.Registry
	CodeIndex   *storage.Store
	SkillsDir   string
	HTTPClient  *http.Client
	AgentName   string
	AgentBuild  string
}

// NewUnifiedSearch builds a handler rooted at workDir.
func NewUnifiedSearch(workDir string, registry *tools.Registry) *UnifiedSearch {
	return &UnifiedSearch{
		WorkDir:    workDir,
		Registry:   registry,
		SkillsDir:  filepath.Join(workDir, ".vtcode", "skills"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		AgentName:  "vtcode",
	}
}

// Execute dispatches params to the matching handler.
func (u *UnifiedSearch) Execute(ctx context.Context, params map[string]any) map[string]any {
	switch InferSearchAction(params) {
	case SearchActionGrep:
		return u.grep(ctx, params)
	case SearchActionList:
		return u.list(params)
	case SearchActionIntel:
		return u.intelligence(ctx, params)
	case SearchActionTools:
		return u.tools(params)
	case SearchActionErrors:
		return u.errors(params)
	case SearchActionAgent:
		return u.agent()
	case SearchActionWeb:
		return u.web(ctx, params)
	case SearchActionSkill:
		return u.skill(params)
	default:
		return errResult(fmt.Errorf("unified_search: unknown action"))
	}
}

// grep shells out to ripgrep (falling back to grep) and returns matches as
// {path, line, text} records, the shape the Context Optimizer's
// optimize_grep dedup/condense rule expects, per §4.B.
func (u *UnifiedSearch) grep(ctx context.Context, params map[string]any) map[string]any {
	query, ok := stringParam(params, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return errResult(fmt.Errorf("unified_search: query is required"))
	}
	path, _ := stringParam(params, "path")
	if path == "" {
		path = "."
	}
	caseSensitive := boolParam(params, "case_sensitive", true)

	bin := "rg"
	args := []string{"--line-number", "--no-heading", "--color", "never"}
	if _, err := exec.LookPath("rg"); err != nil {
		bin = "grep"
		args = []string{"-n", "-r"}
	}
	if !caseSensitive {
		args = append(args, "-i")
	}
	args = append(args, query, path)

	cmd := exec.CommandContext(ctx, bin, args...)
	if u.WorkDir != "" {
		cmd.Dir = u.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return map[string]any{"success": true, "matches": []any{}, "total": 0}
		}
		return errResult(fmt.Errorf("unified_search: grep: %v: %s", err, stderr.String()))
	}

	matches := parseGrepLines(stdout.String())
	return map[string]any{"success": true, "matches": matches, "total": len(matches)}
}

var grepLinePattern = regexp.MustCompile(`^(.+?):(\d+):(.*)$`)

func parseGrepLines(output string) []any {
	var matches []any
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		m := grepLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo := 0
		fmt.Sscanf(m[2], "%d", &lineNo)
		matches = append(matches, map[string]any{"path": m[1], "line": lineNo, "text": m[3]})
	}
	return matches
}

func (u *UnifiedSearch) list(params map[string]any) map[string]any {
	path, _ := stringParam(params, "path")
	if path == "" {
		path = "."
	}
	absPath, err := resolvePath(u.WorkDir, path)
	if err != nil {
		return errResult(err)
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return errResult(fmt.Errorf("unified_search: list: %w", err))
	}
	files := make([]any, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.Name())
	}
	return map[string]any{"success": true, "path": absPath, "files": files}
}

func (u *UnifiedSearch) intelligence(ctx context.Context, params map[string]any) map[string]any {
	if u.CodeIndex == nil {
		return errResult(fmt.Errorf("unified_search: code intelligence index unavailable"))
	}
	query, _ := stringParam(params, "query")
	symbol, _ := stringParam(params, "symbol")
	pathGlob, _ := stringParam(params, "path")
	limit := intParam(params, "limit", 20)

	if symbol != "" {
		records, err := u.CodeIndex.SearchSymbols(ctx, symbol, pathGlob, limit)
		if err != nil {
			return errResult(err)
		}
		return map[string]any{"success": true, "symbols": records}
	}
	records, err := u.CodeIndex.SearchFiles(ctx, query, pathGlob, limit)
	if err != nil {
		return errResult(err)
	}
	return map[string]any{"success": true, "files": records}
}

func (u *UnifiedSearch) tools(params map[string]any) map[string]any {
	if u.Registry == nil {
		return map[string]any{"success": true, "tools": []any{}}
	}
	names := u.Registry.Names()
	out := make([]any, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return map[string]any{"success": true, "tools": out}
}

// errors extracts error-tagged entries from a session archive directory
// (one JSON line per event, filtered by a literal "error" marker).
func (u *UnifiedSearch) errors(params map[string]any) map[string]any {
	sessionID, _ := stringParam(params, "session_id")
	archiveDir, _ := stringParam(params, "archive_dir")
	if archiveDir == "" {
		archiveDir = filepath.Join(u.WorkDir, ".vtcode", "sessions")
	}
	path := filepath.Join(archiveDir, sessionID+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		return errResult(fmt.Errorf("unified_search: errors: %w", err))
	}
	var found []any
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(strings.ToLower(line), "error") {
			found = append(found, line)
		}
	}
	return map[string]any{"success": true, "errors": found, "total": len(found)}
}

func (u *UnifiedSearch) agent() map[string]any {
	return map[string]any{
		"success": true,
		"name":    u.AgentName,
		"build":   u.AgentBuild,
	}
}

func (u *UnifiedSearch) web(ctx context.Context, params map[string]any) map[string]any {
	url, ok := stringParam(params, "url")
	if !ok || url == "" {
		return errResult(fmt.Errorf("unified_search: url is required"))
	}
	format, _ := stringParam(params, "format")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errResult(err)
	}
	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return errResult(fmt.Errorf("unified_search: web fetch: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return errResult(err)
	}
	content := string(body)
	if format == "markdown" {
		content = htmlToMarkdownish(content)
	}
	return map[string]any{
		"success":     resp.StatusCode < 400,
		"status_code": resp.StatusCode,
		"content":     content,
	}
}

// htmlToMarkdownish walks the page with golang.org/x/net/html's tokenizer,
// emitting block-level tags as paragraph breaks and skipping script/style
// text nodes entirely. It is a best-effort reader view, not a full
// HTML-to-Markdown converter.
func htmlToMarkdownish(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var out strings.Builder
	var skipDepth int
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return strings.TrimSpace(collapseBlankRuns(out.String()))
		}
		tok := z.Token()
		switch tt {
		case html.TextToken:
			if skipDepth == 0 {
				if text := strings.TrimSpace(tok.Data); text != "" {
					out.WriteString(text)
					out.WriteByte('\n')
				}
			}
		case html.StartTagToken:
			switch tok.Data {
			case "script", "style", "noscript":
				skipDepth++
			case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				out.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if tok.Data == "br" {
				out.WriteByte('\n')
			}
		case html.EndTagToken:
			switch tok.Data {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		}
	}
}

// collapseBlankRuns squashes runs of 3+ newlines left by nested block tags
// down to a single paragraph break.
func collapseBlankRuns(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func (u *UnifiedSearch) skill(params map[string]any) map[string]any {
	op, _ := stringParam(params, "op")
	if op == "" {
		op = "list"
	}
	if err := os.MkdirAll(u.SkillsDir, 0o755); err != nil {
		return errResult(err)
	}

	switch op {
	case "list":
		entries, err := os.ReadDir(u.SkillsDir)
		if err != nil {
			return errResult(err)
		}
		names := make([]any, 0, len(entries))
		for _, e := range entries {
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
		return map[string]any{"success": true, "skills": names}
	case "save":
		name, _ := stringParam(params, "name")
		content, _ := stringParam(params, "content")
		if name == "" {
			return errResult(fmt.Errorf("unified_search: skill name is required"))
		}
		path := filepath.Join(u.SkillsDir, name+".md")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return errResult(err)
		}
		return map[string]any{"success": true, "name": name}
	case "load":
		name, _ := stringParam(params, "name")
		if name == "" {
			return errResult(fmt.Errorf("unified_search: skill name is required"))
		}
		data, err := os.ReadFile(filepath.Join(u.SkillsDir, name+".md"))
		if err != nil {
			return errResult(err)
		}
		return map[string]any{"success": true, "name": name, "content": string(data)}
	default:
		return errResult(fmt.Errorf("unified_search: unknown skill op %q", op))
	}
}
