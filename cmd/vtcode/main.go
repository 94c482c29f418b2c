// Command vtcode is the interactive coding-agent CLI: it wires the sandbox
// policy, safety gateway, tool policy store, unified tool registry, token
// budget/context optimizer, and streaming run-loop together behind a
// terminal front-end (flag parsing, config load, provider readiness check,
// plain-mode fallback).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vtcode/vtcode/pkg/config"
	"github.com/vtcode/vtcode/pkg/contextopt"
	"github.com/vtcode/vtcode/pkg/cost"
	"github.com/vtcode/vtcode/pkg/dotfile"
	vterrors "github.com/vtcode/vtcode/pkg/errors"
	"github.com/vtcode/vtcode/pkg/filewatch"
	"github.com/vtcode/vtcode/pkg/giturl"
	"github.com/vtcode/vtcode/pkg/logging"
	"github.com/vtcode/vtcode/pkg/mcpclient"
	"github.com/vtcode/vtcode/pkg/modelpicker"
	"github.com/vtcode/vtcode/pkg/paths"
	"github.com/vtcode/vtcode/pkg/ptymanager"
	"github.com/vtcode/vtcode/pkg/runloop"
	"github.com/vtcode/vtcode/pkg/safety"
	"github.com/vtcode/vtcode/pkg/sandboxpolicy"
	"github.com/vtcode/vtcode/pkg/session"
	"github.com/vtcode/vtcode/pkg/storage"
	"github.com/vtcode/vtcode/pkg/terminal"
	"github.com/vtcode/vtcode/pkg/tokenbudget"
	"github.com/vtcode/vtcode/pkg/tools"
	"github.com/vtcode/vtcode/pkg/tools/builtin"
	"github.com/vtcode/vtcode/pkg/toolpolicy"
	"github.com/vtcode/vtcode/pkg/utils"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml (default ~/.vtcode/config.yaml)")
		workDir    = flag.String("workdir", ".", "workspace root")
		plainMode  = flag.Bool("plain", false, "force plain-mode prompt fallback instead of the inline TUI")
		pickModel  = flag.Bool("pick-model", false, "run the model picker and exit")
		printVer   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *printVer {
		fmt.Printf("vtcode %s (%s)\n", version, commit)
		return
	}

	cfgPath := *configPath
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(2)
	}

	absWorkDir, err := filepath.Abs(*workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving workspace root: %v\n", err)
		os.Exit(2)
	}

	if *pickModel || !providerReady(cfg, absWorkDir) {
		if err := runModelPicker(cfg, cfgPath, absWorkDir); err != nil {
			fmt.Fprintf(os.Stderr, "Model picker failed: %v\n", err)
			os.Exit(1)
		}
		if *pickModel {
			return
		}
	}

	if err := run(cfg, absWorkDir, *plainMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// providerReady reports whether the configured provider already has a
// resolvable API key before the CLI will attempt to start a turn.
func providerReady(cfg *config.Config, workDir string) bool {
	if key, ok := cfg.CustomAPIKeys[cfg.Models.DefaultProvider]; ok && strings.TrimSpace(key) != "" {
		return true
	}
	envVar := map[string]string{
		"openrouter": "OPENROUTER_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"google":     "GOOGLE_API_KEY",
	}[cfg.Models.DefaultProvider]
	if envVar == "" {
		return false
	}
	if v := os.Getenv(envVar); strings.TrimSpace(v) != "" {
		return true
	}
	dotenv := filepath.Join(workDir, ".env")
	if utils.FileExists(dotenv) {
		return true // AwaitApiKey will resolve it; treat presence as ready enough to attempt a turn
	}
	return false
}

// runModelPicker drives the Model Picker's plain-mode prompt fallback:
// AwaitModel → AwaitReasoning → AwaitApiKey → Completed, writing the
// result back to cfgPath on success.
func runModelPicker(cfg *config.Config, cfgPath, workDir string) error {
	picker := modelpicker.NewPicker(workDir, nil, true)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Select a model:")
	options := picker.Options()
	for i, opt := range options {
		fmt.Printf("  %d) %s/%s\n", i+1, opt.Provider, opt.Model)
	}
	fmt.Print("> ")
	line, _ := reader.ReadString('\n')
	idx := parseIndex(line, len(options))
	if idx < 0 {
		return fmt.Errorf("invalid selection %q", line)
	}
	chosen := options[idx]
	if err := picker.ChooseModel(chosen.Provider, chosen.Model); err != nil {
		return err
	}

	reasoningOn := chosen.Reasoning
	if chosen.Reasoning {
		fmt.Print("Enable reasoning? [Y/n] ")
		line, _ = reader.ReadString('\n')
		reasoningOn = !strings.EqualFold(strings.TrimSpace(line), "n")
	}
	effort := ""
	if reasoningOn {
		fmt.Print("Reasoning effort (low/medium/high/xhigh) [medium]: ")
		line, _ = reader.ReadString('\n')
		effort = strings.TrimSpace(line)
		if effort == "" {
			effort = "medium"
		}
	}
	if err := picker.SetReasoning(reasoningOn, effort); err != nil {
		return err
	}
	if notice := picker.LastNotice(); notice != "" {
		fmt.Println(notice)
	}

	if !picker.ResolveAPIKey() {
		fmt.Printf("Enter API key for %s: ", picker.Selection().Provider)
		line, _ = reader.ReadString('\n')
		if err := picker.SetAPIKey(strings.TrimSpace(line)); err != nil {
			return err
		}
	}

	if err := picker.Complete(cfg); err != nil {
		return err
	}
	return config.Save(cfgPath, cfg)
}

func parseIndex(line string, n int) int {
	line = strings.TrimSpace(line)
	var idx int
	if _, err := fmt.Sscanf(line, "%d", &idx); err != nil {
		return -1
	}
	idx--
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}

// run wires every component and drives the plain-mode REPL: read a line,
// run one turn through the run-loop, print the result. The full inline
// TUI (pkg/tui.Controller) backs the same run-loop when the terminal can
// render modals; the plain-mode loop below is the fallback path used when
// -plain is set or stdout is not a terminal, per §4.I's plain-mode note.
func run(cfg *config.Config, workDir string, plain bool) error {
	_ = plain // consulted once every component is wired, to pick the REPL or the inline TUI

	sessionID := session.DetermineSessionID(workDir)

	logger, err := logging.NewLogger(paths.LogsBaseDirForWorkdir(workDir, cfg.Session.DotDir), sessionID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	repo, branch := session.GitInfo(workDir)
	_ = logger.Info(logging.CategorySession, "session_start", "", map[string]any{
		"work_dir": workDir, "plan_mode": cfg.Safety.PlanMode, "repo": repo, "branch": branch,
	})

	policy := sandboxpolicy.NewWorkspaceWrite([]string{workDir},
		sandboxpolicy.WithNetworkAllowlist(cfg.Sandbox.NetworkAllow),
		sandboxpolicy.WithSensitivePaths(cfg.Sandbox.SensitivePaths),
	)
	sandboxExec := sandboxpolicy.NewExecutor(policy)

	policyPath := filepath.Join(workDir, cfg.Session.DotDir, "tool-policy.json")
	policyStore, err := toolpolicy.Open(policyPath)
	if err != nil {
		return fmt.Errorf("open tool policy store: %w", err)
	}

	limiter := safety.NewRateLimiter(cfg.Safety.RateLimitPerSecond, cfg.Safety.RateLimitPerMinute)
	gateway := safety.New(limiter, dotfile.NewPathGuardian(), policyStore, safety.CommandPolicy{
		Allow: cfg.Tools.CommandAllow,
		Deny:  cfg.Tools.CommandDeny,
	})
	gateway.PlanMode = cfg.Safety.PlanMode
	gateway.TrustLevel = parseTrustLevel(cfg.Safety.TrustLevel)
	gateway.ApprovalRiskThreshold = parseRiskLevel(cfg.Safety.ApprovalRiskThreshold)
	gateway.ClonePolicy = clonePolicyFromConfig(cfg.Safety.ClonePolicy)

	ptyMgr := ptymanager.New(workDir, 16)
	defer func() {
		for _, info := range ptyMgr.ListSessions() {
			_ = ptyMgr.CloseSession(info.ID)
		}
	}()

	registry := tools.NewRegistry()
	if err := builtin.RegisterUnifiedVerbs(registry); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	watcher := filewatch.NewFileWatcher(200)
	watcher.Subscribe("*", func(change filewatch.FileChange) {
		_ = logger.Debug(logging.CategoryFileWatch, "file_changed", "", map[string]any{
			"path": change.Path, "type": string(change.Type), "tool": change.ToolName,
		})
	})
	externalWatcher, err := filewatch.NewExternalWatcher(workDir, watcher, logger)
	if err != nil {
		return fmt.Errorf("init file watcher: %w", err)
	}
	externalWatcher.Start()
	defer externalWatcher.Close()

	writer := terminal.New()
	execAdapter := newToolExecutor(
		builtin.NewUnifiedExec(ptyMgr, sandboxExec),
		builtin.NewUnifiedFileWithPolicy(workDir, policy).WithWatcher(watcher),
		builtin.NewUnifiedSearch(workDir, registry),
		gateway,
		stdinApprovalPrompt(writer),
	).WithLogger(logger)

	mcpManager, err := mcpclient.ManagerFromConfig(context.Background(), cfg.MCP)
	if err != nil {
		return fmt.Errorf("init mcp: %w", err)
	}
	if mcpManager != nil {
		defer mcpManager.Close()
		mcpAdapters, err := mcpclient.RegisterAll(mcpManager, registry)
		if err != nil {
			return fmt.Errorf("register mcp tools: %w", err)
		}
		execAdapter.WithMCPTools(mcpAdapters)
		_ = logger.Info(logging.CategoryMCP, "mcp_registered", "", map[string]any{"tool_count": len(mcpAdapters)})
		if cfg.MCP.SyncTools {
			if err := mcpManager.SyncToolsToFiles(filepath.Join(workDir, cfg.Session.DotDir, "mcp")); err != nil {
				return fmt.Errorf("sync mcp tools: %w", err)
			}
			_ = logger.Debug(logging.CategoryMCP, "mcp_tools_synced", "", nil)
		}
	}

	store, err := storage.New(filepath.Join(workDir, cfg.Session.DotDir, "vtcode.db"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSession(sessionID); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	costTracker, err := cost.New(sessionID, store, cost.NewStaticCalculator())
	if err != nil {
		return fmt.Errorf("init cost tracker: %w", err)
	}
	costTracker.SetBudgets(cfg.CostManagement.SessionBudget, cfg.CostManagement.DailyBudget, cfg.CostManagement.MonthlyBudget, cfg.CostManagement.AutoStopAt)

	budget := tokenbudget.NewManager(cfg.Context.MaxTokens)
	optimizer := contextopt.New(budget)

	provider := newOpenAICompatProvider(providerBaseURL(cfg.Models.DefaultProvider), resolveAPIKeyForRun(cfg))

	if plain || !terminalCapable() {
		loop := runloop.New(provider, execAdapter, budget, optimizer, stdoutRenderer{})
		return replLoop(loop, registry, cfg, gateway, costTracker, writer, logger, watcher)
	}

	renderer := newChanRenderer()
	loop := runloop.New(provider, execAdapter, budget, optimizer, renderer)
	return runInlineTUI(loop, registry, cfg, gateway, renderer, costTracker, logger)
}

// clonePolicyFromConfig maps the config section to the gateway's
// giturl.ClonePolicy, copying DenyPrivateNetworks as configured (off unless
// the config sets it).
func clonePolicyFromConfig(c config.ClonePolicyConfig) giturl.ClonePolicy {
	return giturl.ClonePolicy{
		AllowedSchemes:      c.AllowedSchemes,
		AllowedHosts:        c.AllowedHosts,
		DeniedHosts:         c.DeniedHosts,
		DenyPrivateNetworks: c.DenyPrivateNetworks,
	}
}

// terminalCapable reports whether stdout is a real terminal the inline TUI
// can drive; when it is not (piped output, CI), the plain-mode REPL is used
// regardless of the -plain flag, per §4.I's plain-mode fallback note.
func terminalCapable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// parseTrustLevel maps a config string to safety.TrustLevel, defaulting to
// TrustStandard for an empty or unrecognized value.
func parseTrustLevel(s string) safety.TrustLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "restricted":
		return safety.TrustRestricted
	case "elevated":
		return safety.TrustElevated
	case "full":
		return safety.TrustFull
	default:
		return safety.TrustStandard
	}
}

// parseRiskLevel maps a config string to safety.RiskLevel, defaulting to
// RiskMedium for an empty or unrecognized value.
func parseRiskLevel(s string) safety.RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return safety.RiskLow
	case "high":
		return safety.RiskHigh
	case "critical":
		return safety.RiskCritical
	default:
		return safety.RiskMedium
	}
}

// stdinApprovalPrompt builds the plain-mode PermissionPromptHandler: a
// PromptFunc that renders the safety gateway's Prompt decision through
// writer's styled ToolApproval prompt rather than a bare fmt.Printf.
func stdinApprovalPrompt(writer *terminal.Writer) PromptFunc {
	return func(call safety.Call, result safety.Result) bool {
		return writer.ToolApproval(call.Tool, result.Step, result.Reason)
	}
}

func providerBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "anthropic":
		return "https://api.anthropic.com/v1"
	case "google":
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	default:
		return "https://openrouter.ai/api/v1"
	}
}

func resolveAPIKeyForRun(cfg *config.Config) string {
	if key, ok := cfg.CustomAPIKeys[cfg.Models.DefaultProvider]; ok && strings.TrimSpace(key) != "" {
		return key
	}
	envVar := map[string]string{
		"openrouter": "OPENROUTER_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"google":     "GOOGLE_API_KEY",
	}[cfg.Models.DefaultProvider]
	return os.Getenv(envVar)
}

// stdoutRenderer implements runloop.Renderer by writing deltas straight to
// stdout — the plain-mode rendering path; pkg/tui.TranscriptRenderer is
// the inline-TUI equivalent.
type stdoutRenderer struct{}

func (stdoutRenderer) SupportsMarkdownStreaming() bool { return false }
func (stdoutRenderer) AppendContent(delta string)      { fmt.Print(delta) }
func (stdoutRenderer) AppendReasoning(delta string)     {}

func replLoop(loop *runloop.RunLoop, registry *tools.Registry, cfg *config.Config, gateway *safety.Gateway, costTracker *cost.Tracker, writer *terminal.Writer, logger *logging.Logger, watcher *filewatch.FileWatcher) error {
	reader := bufio.NewReader(os.Stdin)
	var history []runloop.Message

	defs := registry.List()

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}
		if text == "/changes" {
			for _, change := range watcher.RecentChanges(10) {
				writer.Dim("%s %s (%s)", change.Type, change.Path, change.ToolName)
			}
			continue
		}

		gateway.StartTurn()
		_ = logger.Info(logging.CategoryTurn, "turn_start", "", map[string]any{"model": cfg.Models.DefaultModel})

		history = append(history, runloop.Message{Role: "user", Content: text})
		cancel := runloop.NewCancelSignal()
		req := runloop.Request{
			Model:           cfg.Models.DefaultModel,
			ReasoningEffort: cfg.Models.Reasoning,
			Messages:        history,
			Tools:           defs,
		}

		result, err := terminal.WithSpinner("thinking", func() (*runloop.TurnResult, error) {
			return loop.RunTurn(context.Background(), req, cancel)
		})
		if err != nil {
			_ = logger.Error(logging.CategoryTurn, "turn_error", err.Error(), nil)
			writer.Error("turn error: %v", err)
			continue
		}
		fmt.Println()

		history = append(history, runloop.Message{Role: "assistant", Content: result.Response.Content, ToolCalls: result.Response.ToolCalls})
		if len(result.Response.ToolCalls) > 0 {
			history = append(history, loop.ExecuteToolCalls(context.Background(), req.Model, result.Response.ToolCalls)...)
		}

		if usage := result.Response.Usage; usage != nil {
			if _, err := costTracker.RecordAPICall(req.Model, usage.PromptTokens, usage.CompletionTokens); err != nil {
				writer.Warn("cost tracking: %v", err)
			} else if status := costTracker.CheckBudget(); status.ShouldWarn || status.ShouldStop {
				writer.Warn("%s", status.GetWarningMessage())
				if status.ShouldStop {
					budgetErr := vterrors.New(vterrors.ErrCodeBudgetExceeded, status.GetWarningMessage())
					_ = logger.Error(logging.CategoryCost, "budget_exceeded", budgetErr.Error(), nil)
					return budgetErr
				}
			}
		}
		_ = logger.Info(logging.CategoryTurn, "turn_complete", "", map[string]any{"tool_calls": len(result.Response.ToolCalls)})
	}
}
