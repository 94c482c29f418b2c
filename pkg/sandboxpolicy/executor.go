package sandboxpolicy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ExecResult is the outcome of running a command under a Policy.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Killed   bool
	Error    error
}

// Executor runs shell commands constrained by a Policy: validate, run
// with a context timeout, truncate oversized output.
type Executor struct {
	Policy  Policy
	Timeout time.Duration
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{Policy: policy, Timeout: 5 * time.Minute}
}

// Validate reports whether command may run at all under the policy, ahead
// of the Safety Gateway's own command-policy step (§4.E step 4). This check
// is about *capability* (can the sandbox even permit this path/network
// access); the Safety Gateway's check is about *risk*.
func (e *Executor) Validate(command string) error {
	if e.Policy.Kind() == KindDangerFullAccess || e.Policy.Kind() == KindExternalSandbox {
		return nil
	}
	for _, path := range extractPaths(command) {
		if e.Policy.IsSensitive(path) {
			return fmt.Errorf("sandboxpolicy: access to sensitive path denied: %s", path)
		}
		if looksLikeWrite(command) && !e.Policy.AllowsWrite(path) {
			return fmt.Errorf("sandboxpolicy: write outside writable roots denied: %s", path)
		}
	}
	if usesNetwork(command) && !e.Policy.AllowsNetwork("*") {
		return fmt.Errorf("sandboxpolicy: network access denied under %s", e.Policy.Kind())
	}
	return nil
}

// Execute runs command under the policy's constraints.
func (e *Executor) Execute(ctx context.Context, command, workDir string) *ExecResult {
	start := time.Now()
	result := &ExecResult{}

	if err := e.Validate(command); err != nil {
		result.Error = err
		result.ExitCode = 1
		return result
	}

	timeout := e.Timeout
	limits, hasLimits := resourceLimitsOf(e.Policy)
	if hasLimits && limits.TimeoutSecs > 0 {
		timeout = time.Duration(limits.TimeoutSecs) * time.Second
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := shellCommandContext(ctx, command)
	setSysProcAttr(cmd)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = restrictedEnv()

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if ctx.Err() == context.DeadlineExceeded {
		result.Killed = true
		result.Error = fmt.Errorf("command timed out after %v", timeout)
		result.ExitCode = 124
		return result
	}

	if err != nil {
		if exitErr, ok := asExitError(err); ok {
			result.ExitCode = exitErr
		} else {
			result.Error = err
			result.ExitCode = 1
		}
	}

	if hasLimits && limits.MaxOutputSize > 0 {
		if int64(len(result.Stdout)) > limits.MaxOutputSize {
			result.Stdout = result.Stdout[:limits.MaxOutputSize] + "\n... (output truncated)"
		}
		if int64(len(result.Stderr)) > limits.MaxOutputSize {
			result.Stderr = result.Stderr[:limits.MaxOutputSize] + "\n... (output truncated)"
		}
	}

	return result
}

func resourceLimitsOf(p Policy) (ResourceLimits, bool) {
	if ws, ok := p.(WorkspaceWritePolicy); ok {
		return ws.ResourceLimits, true
	}
	return ResourceLimits{}, false
}

func restrictedEnv() []string {
	safeVars := []string{"PATH", "HOME", "USER", "SHELL", "TERM", "LANG", "LC_ALL", "TZ"}
	var env []string
	for _, key := range safeVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, val))
		}
	}
	return env
}

func looksLikeWrite(command string) bool {
	if strings.Contains(command, ">") {
		return true
	}
	for _, wc := range []string{"rm ", "mv ", "cp ", "mkdir ", "touch ", "chmod ", "chown ", "git commit", "git push"} {
		if strings.Contains(command, wc) {
			return true
		}
	}
	return false
}

func usesNetwork(command string) bool {
	for _, tool := range []string{"curl ", "wget ", "ssh ", "scp ", "rsync ", "nc ", "netcat ", "telnet "} {
		if strings.Contains(command, tool) {
			return true
		}
	}
	return false
}

func extractPaths(command string) []string {
	var paths []string
	for _, part := range strings.Fields(command) {
		if strings.HasPrefix(part, "-") {
			continue
		}
		if strings.HasPrefix(part, "/") || strings.HasPrefix(part, "./") ||
			strings.HasPrefix(part, "../") || strings.HasPrefix(part, "~/") {
			paths = append(paths, expandHome(part))
		}
	}
	return paths
}
