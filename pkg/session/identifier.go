package session

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DetermineSessionID determines the session ID for the current working directory
func DetermineSessionID(cwd string) string {
	if info := getGitMetadata(cwd); info.valid {
		branch := info.branch
		if branch == "" {
			branch = "unknown"
		}
		return fmt.Sprintf("%s-%s", info.repoName, branch)
	}

	// Non-git: directory name + path hash
	dirName := filepath.Base(cwd)
	pathHash := shortHash(cwd)
	return fmt.Sprintf("%s-%s", dirName, pathHash)
}

// shortHash generates a short hash of a string
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:4])
}

// GitInfo returns the repository name and branch the session_start log
// event reports, so a session's log line names the repo state it started
// against even though the session ID itself only encodes repo+branch.
func GitInfo(cwd string) (repo string, branch string) {
	info := getGitMetadata(cwd)
	if !info.valid {
		return "", ""
	}
	branch = info.branch
	if branch == "" {
		branch = "unknown"
	}
	return info.repoName, branch
}

type gitMetadata struct {
	repoName string
	branch   string
	rootPath string
	valid    bool
}

//go:generate mockgen -package=session -destination=mock_git_runner_test.go github.com/vtcode/vtcode/pkg/session gitCommandRunner
type gitCommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

type execGitRunner struct{}

func (execGitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}

type gitDetector struct {
	timeout time.Duration
	runner  gitCommandRunner
	cache   sync.Map
}

const defaultGitTimeout = 3 * time.Second

var defaultGitDetector = newGitDetector()

func newGitDetector() *gitDetector {
	return &gitDetector{
		timeout: defaultGitTimeout,
		runner:  execGitRunner{},
	}
}

func getGitMetadata(cwd string) gitMetadata {
	return defaultGitDetector.metadata(cwd)
}

func (d *gitDetector) metadata(cwd string) gitMetadata {
	if d == nil || cwd == "" {
		return gitMetadata{}
	}
	if cached, ok := d.cache.Load(cwd); ok {
		if info, ok := cached.(gitMetadata); ok {
			return info
		}
	}

	info := gitMetadata{}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	rootOutput, err := d.runner.Run(ctx, cwd, "rev-parse", "--show-toplevel")
	if err != nil {
		d.cache.Store(cwd, info)
		return info
	}
	root := strings.TrimSpace(string(rootOutput))
	if root == "" {
		d.cache.Store(cwd, info)
		return info
	}
	info.rootPath = root
	info.repoName = filepath.Base(root)
	info.valid = true

	branchCtx, branchCancel := context.WithTimeout(context.Background(), d.timeout)
	defer branchCancel()
	branchOutput, err := d.runner.Run(branchCtx, cwd, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		info.branch = strings.TrimSpace(string(branchOutput))
	}

	d.cache.Store(cwd, info)
	return info
}

// setGitDetector allows tests to replace the default detector.
func setGitDetector(det *gitDetector) func() {
	prev := defaultGitDetector
	defaultGitDetector = det
	return func() {
		defaultGitDetector = prev
	}
}
