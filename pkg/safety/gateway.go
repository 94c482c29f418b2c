// Package safety implements the Safety Gateway: the single choke point
// every tool call passes through before execution. Policy lookup and
// approval-mode dispatch are combined into one fixed, first-match-wins
// evaluation order rather than a layered category/risk scoring system.
package safety

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vtcode/vtcode/pkg/dotfile"
	"github.com/vtcode/vtcode/pkg/giturl"
	"github.com/vtcode/vtcode/pkg/toolpolicy"
)

// TrustLevel gates how much of the evaluation pipeline a call can skip.
type TrustLevel int

const (
	TrustRestricted TrustLevel = iota
	TrustStandard
	TrustElevated
	TrustFull
)

func (t TrustLevel) String() string {
	switch t {
	case TrustRestricted:
		return "restricted"
	case TrustStandard:
		return "standard"
	case TrustElevated:
		return "elevated"
	case TrustFull:
		return "full"
	default:
		return "unknown"
	}
}

// RiskLevel orders call risk for comparison against ApprovalRiskThreshold.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Decision is the gateway's final verdict on a call.
type Decision string

const (
	Allow  Decision = "allow"
	Prompt Decision = "prompt"
	Deny   Decision = "deny"
)

// Call describes one tool invocation awaiting evaluation.
type Call struct {
	Tool        string
	MCPProvider string // empty for built-in tools
	Command     string // shell command text, when Tool is a shell/pty executor
	Path        string // file path, for file-writing tools
	Preapproved bool   // true when the caller already holds a valid approval token
}

// Result is the gateway's verdict plus the reasoning trail for logging.
type Result struct {
	Decision Decision
	Step     string
	Reason   string
	Risk     RiskLevel
}

// CommandPolicy holds the static allow/deny command lists as two plain
// slices rather than a layered exception-pattern structure.
type CommandPolicy struct {
	Allow []string
	Deny  []string
}

func (p CommandPolicy) matchesDeny(cmd string) (string, bool) {
	for _, pattern := range p.Deny {
		if globMatches(pattern, cmd) {
			return pattern, true
		}
	}
	return "", false
}

func (p CommandPolicy) matchesAllow(cmd string) (string, bool) {
	for _, pattern := range p.Allow {
		if globMatches(pattern, cmd) {
			return pattern, true
		}
	}
	return "", false
}

func globMatches(pattern, s string) bool {
	s = strings.TrimSpace(s)
	pattern = strings.TrimSpace(pattern)
	if !strings.Contains(pattern, "*") {
		return s == pattern
	}
	re := "^" + regexp.QuoteMeta(pattern) + "$"
	re = strings.ReplaceAll(re, "\\*", ".*")
	matched, _ := regexp.MatchString(re, s)
	return matched
}

// Gateway is the Safety Gateway. It is constructed once per session and
// holds references to the collaborating ports (dotfile guardian, tool
// policy store) rather than owning their storage directly.
type Gateway struct {
	mu sync.Mutex

	limiter  *RateLimiter
	dotfiles dotfile.Guardian
	policies *toolpolicy.Store
	commands CommandPolicy

	PlanMode               bool
	TrustLevel             TrustLevel
	ApprovalRiskThreshold  RiskLevel
	DestructiveDefaultDeny bool

	// ClonePolicy restricts which remotes a "git clone" command inside
	// unified_exec may target; the zero value allows every scheme/host.
	ClonePolicy giturl.ClonePolicy

	// PerTurnLimit and PerSessionLimit cap how many times a single tool may
	// run within the current turn/session; 0 means unlimited. turnCounts
	// resets on StartTurn; sessionCounts accumulates for the Gateway's
	// lifetime.
	PerTurnLimit    int
	PerSessionLimit int
	turnCounts      map[string]int
	sessionCounts   map[string]int

	// preapproved holds tools granted session-wide allow via Preapprove,
	// independent of the per-call Call.Preapproved flag.
	preapproved map[string]bool
}

// New builds a Gateway. limiter, dotfiles, and policies must be non-nil;
// use NewUnlimited / dotfile.NewPathGuardian / an opened toolpolicy
// store for sensible defaults.
func New(limiter *RateLimiter, dotfiles dotfile.Guardian, policies *toolpolicy.Store, commands CommandPolicy) *Gateway {
	return &Gateway{
		limiter:                limiter,
		dotfiles:               dotfiles,
		policies:               policies,
		commands:               commands,
		TrustLevel:             TrustStandard,
		ApprovalRiskThreshold:  RiskMedium,
		DestructiveDefaultDeny: true,
		turnCounts:             make(map[string]int),
		sessionCounts:          make(map[string]int),
		preapproved:            make(map[string]bool),
	}
}

// StartTurn resets per-turn execution counters at the beginning of a new
// model turn. Per-session counters and preapprovals survive across turns.
func (g *Gateway) StartTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.turnCounts = make(map[string]int)
}

// RecordExecution bumps tool's per-turn and per-session counters. Call it
// after a tool call actually executes (not merely after it was allowed),
// so a denied or prompted-and-rejected call never counts against the caps.
func (g *Gateway) RecordExecution(tool string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.turnCounts[tool]++
	g.sessionCounts[tool]++
}

// Preapprove grants tool session-wide allow: subsequent Evaluate calls for
// tool short-circuit at the preapproval step regardless of Call.Preapproved.
func (g *Gateway) Preapprove(tool string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preapproved[tool] = true
}

// Evaluate runs a call through the nine-step pipeline, returning on the
// first step that reaches a verdict.
func (g *Gateway) Evaluate(call Call) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.evaluateLocked(call)
}

// evaluateLocked is Evaluate's body; callers must hold g.mu.
func (g *Gateway) evaluateLocked(call Call) Result {
	// Step 1: rate limits (per-second/per-minute, then per-turn/per-session).
	if !g.limiter.Allow(call.Tool) {
		return Result{Decision: Deny, Step: "rate_limit", Reason: fmt.Sprintf("rate limit exceeded for %s", call.Tool)}
	}
	if g.PerTurnLimit > 0 && g.turnCounts[call.Tool] >= g.PerTurnLimit {
		return Result{Decision: Deny, Step: "rate_limit", Reason: fmt.Sprintf("per-turn limit (%d) exceeded for %s", g.PerTurnLimit, call.Tool)}
	}
	if g.PerSessionLimit > 0 && g.sessionCounts[call.Tool] >= g.PerSessionLimit {
		return Result{Decision: Deny, Step: "rate_limit", Reason: fmt.Sprintf("per-session limit (%d) exceeded for %s", g.PerSessionLimit, call.Tool)}
	}

	// Step 2: dotfile protection.
	if call.Path != "" {
		switch g.dotfiles.Classify(call.Path) {
		case dotfile.Blocked, dotfile.Denied:
			return Result{Decision: Deny, Step: "dotfile_protection", Reason: dotfile.DenialMessage(call.Path)}
		case dotfile.RequiresSecondaryAuth:
			return Result{Decision: Deny, Step: "dotfile_protection", Reason: "secondary authentication required for " + call.Path}
		case dotfile.RequiresConfirmation:
			return Result{Decision: Prompt, Step: "dotfile_protection", Reason: "confirmation required for dotfile " + call.Path}
		}
	}

	// Step 3: plan mode — no mutating tool calls while only planning.
	if g.PlanMode && isMutating(call) {
		return Result{Decision: Deny, Step: "plan_mode", Reason: "plan mode forbids mutating tool calls"}
	}

	// Step 4: command policy (explicit deny/allow lists).
	if call.Command != "" {
		if pattern, ok := g.commands.matchesDeny(call.Command); ok {
			return Result{Decision: Deny, Step: "command_policy", Reason: "command matches deny pattern " + pattern}
		}
		if pattern, ok := g.commands.matchesAllow(call.Command); ok {
			return Result{Decision: Allow, Step: "command_policy", Reason: "command matches allow pattern " + pattern}
		}
	}

	// Step 4b: clone-URL policy — a "git clone <url>" command must name a
	// remote the configured ClonePolicy allows, regardless of trust level.
	if url, ok := extractCloneURL(call.Command); ok {
		if err := giturl.ValidateCloneURL(g.ClonePolicy, url); err != nil {
			return Result{Decision: Deny, Step: "clone_policy", Reason: err.Error()}
		}
	}

	// Step 5: preapproval shortcut.
	if call.Preapproved || g.preapproved[call.Tool] {
		return Result{Decision: Allow, Step: "preapproval", Reason: "caller holds a valid approval token"}
	}

	// Step 6: trust-level bypass.
	if g.TrustLevel == TrustFull {
		return Result{Decision: Allow, Step: "trust_level", Reason: "trust level is full"}
	}

	// Step 6b: cached tool-policy decision.
	cached := g.cachedDecision(call)
	switch cached {
	case toolpolicy.Allow:
		return Result{Decision: Allow, Step: "tool_policy", Reason: "tool policy cached allow"}
	case toolpolicy.Deny:
		return Result{Decision: Deny, Step: "tool_policy", Reason: "tool policy cached deny"}
	}

	// Step 7: risk scoring vs threshold.
	risk := scoreRisk(call)
	if risk >= g.ApprovalRiskThreshold {
		return Result{Decision: Prompt, Step: "risk_score", Reason: "risk " + risk.String() + " meets or exceeds threshold " + g.ApprovalRiskThreshold.String(), Risk: risk}
	}

	// Step 8: destructive default.
	if g.DestructiveDefaultDeny && isDestructive(call) {
		return Result{Decision: Prompt, Step: "destructive_default", Reason: "destructive-looking call defaults to prompt", Risk: risk}
	}

	// Step 9: otherwise allow.
	return Result{Decision: Allow, Step: "default_allow", Reason: "no rule matched", Risk: risk}
}

// EvaluateAndRecord runs Evaluate and, on Allow, records the execution
// under the same lock acquisition so a burst of concurrent calls cannot
// all observe the counter below the limit before any of them increments
// it.
func (g *Gateway) EvaluateAndRecord(call Call) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := g.evaluateLocked(call)
	if result.Decision == Allow {
		g.turnCounts[call.Tool]++
		g.sessionCounts[call.Tool]++
	}
	return result
}

func (g *Gateway) cachedDecision(call Call) toolpolicy.Decision {
	if g.policies == nil {
		return toolpolicy.Prompt
	}
	if call.MCPProvider != "" {
		return g.policies.GetMCP(call.MCPProvider, call.Tool)
	}
	return g.policies.Get(call.Tool)
}

// RecordApproval forwards a manual approval to the tool policy store so a
// tool an operator approved once is cached as Allow going forward.
func (g *Gateway) RecordApproval(call Call) error {
	if g.policies == nil {
		return nil
	}
	if call.MCPProvider != "" {
		return g.policies.SetMCP(call.MCPProvider, call.Tool, toolpolicy.Allow)
	}
	return g.policies.RecordApproval(call.Tool)
}

// ShouldExecuteTool delegates to the tool policy store's should_execute_tool
// operation (spec.md §4.C): Deny/Allow map straight through, a cached
// Prompt auto-allows when the tool key matches the fixed auto-allow set,
// and otherwise the call falls to handler — a nil handler defaults to
// Allowed. A nil policy store (tests that build a Gateway without one)
// allows unconditionally, matching the "missing handler" default.
func (g *Gateway) ShouldExecuteTool(tool string, handler toolpolicy.PermissionPromptHandler) toolpolicy.ExecutionOutcome {
	if g.policies == nil {
		return toolpolicy.ExecutionOutcome{Status: toolpolicy.Allowed}
	}
	return g.policies.ShouldExecuteTool(tool, handler)
}

var mutatingTools = map[string]bool{
	"unified_file":  true,
	"write_file":    true,
	"edit_file":     true,
	"unified_exec":  true,
	"run_pty_cmd":   true,
	"run_terminal":  true,
}

func isMutating(call Call) bool {
	if mutatingTools[call.Tool] {
		return true
	}
	if call.Path != "" && call.Command == "" {
		// A path target with no command is treated as a write attempt;
		// pure reads are expected to omit Path from the Call entirely.
		return true
	}
	return call.Command != "" && !isReadOnlyCommand(call.Command)
}

var destructivePatterns = []string{
	`rm\s+-rf`, `rm\s+-r\b`, `rmdir`, `unlink`,
	`drop\s+table`, `drop\s+database`, `delete\s+from`,
	`truncate`, `reset\s+--hard`, `--force`, `\bgit\s+push\s+.*-f\b`,
}

func isDestructive(call Call) bool {
	text := strings.ToLower(call.Command + " " + call.Path)
	for _, pattern := range destructivePatterns {
		if matched, _ := regexp.MatchString(pattern, text); matched {
			return true
		}
	}
	return false
}

var secretPatterns = []string{
	`\.env\b`, `secret`, `credential`, `password`, `api[_-]?key`,
	`token`, `private[_-]?key`, `\.pem\b`,
}

func touchesSecrets(call Call) bool {
	text := strings.ToLower(call.Command + " " + call.Path)
	for _, pattern := range secretPatterns {
		if matched, _ := regexp.MatchString(pattern, text); matched {
			return true
		}
	}
	return false
}

func usesNetwork(call Call) bool {
	cmd := strings.ToLower(call.Command)
	for _, net := range []string{"curl", "wget", "http://", "https://", "ssh ", "scp ", "git clone", "git push", "git pull", "git fetch"} {
		if strings.Contains(cmd, net) {
			return !strings.Contains(cmd, "localhost") && !strings.Contains(cmd, "127.0.0.1")
		}
	}
	return false
}

var cloneCommandPattern = regexp.MustCompile(`\bgit\s+clone\s+(?:\S+\s+)*?(\S+://\S+|[\w.-]+@[\w.-]+:\S+)`)

// extractCloneURL pulls the remote URL argument out of a "git clone"
// command line, if present.
func extractCloneURL(command string) (string, bool) {
	m := cloneCommandPattern.FindStringSubmatch(command)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func modifiesGit(call Call) bool {
	cmd := strings.ToLower(call.Command)
	for _, pattern := range []string{"git commit", "git push", "git rebase", "git reset", "git merge", "git checkout -b"} {
		if strings.Contains(cmd, pattern) {
			return true
		}
	}
	return false
}

// scoreRisk maps a call to a coarse risk bucket, deliberately simpler than
// a weighted risk-rule sum: the gateway only needs an ordinal bucket to
// compare against ApprovalRiskThreshold, not an audit-grade numeric score.
func scoreRisk(call Call) RiskLevel {
	if touchesSecrets(call) || isDestructive(call) {
		return RiskCritical
	}
	if usesNetwork(call) {
		return RiskHigh
	}
	if modifiesGit(call) {
		return RiskMedium
	}
	if call.Command != "" && !isReadOnlyCommand(call.Command) {
		return RiskMedium
	}
	return RiskLow
}

var readOnlyPrefixes = []string{
	"ls", "cat", "head", "tail", "grep", "rg", "find", "fd",
	"wc", "diff", "file", "stat", "which", "type", "pwd",
	"whoami", "date", "env", "printenv", "echo",
	"git status", "git log", "git diff", "git show", "git branch",
	"go version", "go list", "go env",
}

func isReadOnlyCommand(cmd string) bool {
	lower := strings.ToLower(strings.TrimSpace(cmd))
	if strings.Contains(lower, ">") {
		return false
	}
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// RateLimiter enforces sliding 1s/60s call-count windows per tool name,
// pruning expired timestamps on every check rather than running a
// background sweep.
type RateLimiter struct {
	mu          sync.Mutex
	perSecond   int
	perMinute   int
	secondHits  map[string][]time.Time
	minuteHits  map[string][]time.Time
	now         func() time.Time
}

// NewRateLimiter builds a limiter with the given per-second / per-minute
// call budgets per tool name.
func NewRateLimiter(perSecond, perMinute int) *RateLimiter {
	return &RateLimiter{
		perSecond:  perSecond,
		perMinute:  perMinute,
		secondHits: make(map[string][]time.Time),
		minuteHits: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// NewUnlimited returns a limiter that never rejects a call, for tests and
// configurations that opt out of rate limiting entirely.
func NewUnlimited() *RateLimiter {
	return NewRateLimiter(0, 0)
}

// Allow records a call attempt for tool and reports whether it fits
// within both sliding windows.
func (r *RateLimiter) Allow(tool string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if r.perSecond > 0 {
		window := pruneWindow(r.secondHits[tool], now, time.Second)
		if len(window) >= r.perSecond {
			r.secondHits[tool] = window
			return false
		}
		r.secondHits[tool] = append(window, now)
	}

	if r.perMinute > 0 {
		window := pruneWindow(r.minuteHits[tool], now, time.Minute)
		if len(window) >= r.perMinute {
			r.minuteHits[tool] = window
			return false
		}
		r.minuteHits[tool] = append(window, now)
	}

	return true
}

func pruneWindow(hits []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
