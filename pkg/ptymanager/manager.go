// Package ptymanager implements the PTY Manager: spawning and tracking
// interactive shell sessions with buffered, yield-semantics reads, using
// github.com/creack/pty for spawn/resize, a buffered read loop, and
// exit-code extraction. Callers reach it through direct Go method calls
// from the run-loop rather than a websocket transport.
package ptymanager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// Size is a terminal's row/column geometry.
type Size struct {
	Rows uint16
	Cols uint16
}

// Session is one tracked PTY-backed process.
type Session struct {
	ID          string
	CommandVec  []string
	WorkingDir  string
	Size        Size
	ExitCode    *int
	LastReadAt  time.Time
	Closed      bool

	mu     sync.Mutex
	ptmx   *os.File
	cmd    *exec.Cmd
	buffer []byte
	done   chan struct{}
}

// Info is the read-only view returned by Manager.ListSessions.
type Info struct {
	ID         string
	CommandVec []string
	WorkingDir string
	ExitCode   *int
	Closed     bool
	LastReadAt time.Time
}

// Manager owns all active PTY sessions and enforces MaxSessions.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	active       int
	MaxSessions  int
	WorkspaceRoot string
}

// New builds a Manager capped at maxSessions concurrently active PTYs.
func New(workspaceRoot string, maxSessions int) *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		MaxSessions:   maxSessions,
		WorkspaceRoot: workspaceRoot,
	}
}

// ResolveWorkingDir joins path to the workspace root (when relative) and
// verifies the resulting directory exists.
func (m *Manager) ResolveWorkingDir(path string) (string, error) {
	dir := m.WorkspaceRoot
	if strings.TrimSpace(path) != "" {
		if filepath.IsAbs(path) {
			dir = path
		} else {
			dir = filepath.Join(m.WorkspaceRoot, path)
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("ptymanager: working dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("ptymanager: %s is not a directory", dir)
	}
	return dir, nil
}

// CreateSession spawns commandVec as a new PTY-backed process.
func (m *Manager) CreateSession(id string, commandVec []string, workingDir string, size Size) (*Session, error) {
	if len(commandVec) == 0 {
		return nil, fmt.Errorf("ptymanager: command vector is empty")
	}

	m.mu.Lock()
	if m.MaxSessions > 0 && m.active >= m.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("ptymanager: max sessions (%d) reached", m.MaxSessions)
	}
	m.mu.Unlock()

	cmd := exec.Command(commandVec[0], commandVec[1:]...)
	cmd.Dir = workingDir
	cmd.Env = os.Environ()

	var ptmx *os.File
	var err error
	if size.Rows > 0 && size.Cols > 0 {
		ptmx, err = pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	} else {
		ptmx, err = pty.Start(cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("ptymanager: spawn: %w", err)
	}

	session := &Session{
		ID:         id,
		CommandVec: commandVec,
		WorkingDir: workingDir,
		Size:       size,
		ptmx:       ptmx,
		cmd:        cmd,
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.active++
	m.mu.Unlock()

	go m.runReadLoop(session)
	return session, nil
}

func (m *Manager) runReadLoop(s *Session) {
	defer close(s.done)
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.buffer = append(s.buffer, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			code := exitCode(err)
			s.mu.Lock()
			s.ExitCode = &code
			closed := s.Closed
			s.mu.Unlock()
			if !closed {
				m.decrementActive()
			}
			return
		}
	}
}

func (m *Manager) decrementActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 {
		m.active--
	}
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ProcessState != nil {
		return exitErr.ProcessState.ExitCode()
	}
	return -1
}

// ReadSessionOutput returns the bytes buffered since the last draining
// call. When drain is true the internal buffer is cleared; otherwise the
// buffer is left intact for a subsequent peek.
func (m *Manager) ReadSessionOutput(id string, drain bool) (string, bool) {
	s := m.get(id)
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := string(s.buffer)
	if drain {
		s.buffer = nil
	}
	s.LastReadAt = time.Now()
	return out, true
}

// IsSessionCompleted reports whether the session's process has exited and
// returns its exit code when it has.
func (m *Manager) IsSessionCompleted(id string) (int, bool) {
	s := m.get(id)
	if s == nil {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExitCode == nil {
		return 0, false
	}
	return *s.ExitCode, true
}

// SendInputToSession writes bytes to the session's stdin. isControlSequence
// is accepted for callers that want to flag the distinction, but needs no
// special handling here since the PTY forwards raw bytes either way.
func (m *Manager) SendInputToSession(id string, data []byte, isControlSequence bool) error {
	s := m.get(id)
	if s == nil {
		return fmt.Errorf("ptymanager: session %s not found", id)
	}
	s.mu.Lock()
	ptmx := s.ptmx
	s.mu.Unlock()
	_, err := ptmx.Write(data)
	return err
}

// Resize adjusts a session's terminal geometry.
func (m *Manager) Resize(id string, size Size) error {
	s := m.get(id)
	if s == nil {
		return fmt.Errorf("ptymanager: session %s not found", id)
	}
	s.mu.Lock()
	ptmx := s.ptmx
	s.Size = size
	s.mu.Unlock()
	return pty.Setsize(ptmx, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
}

// CloseSession terminates the session's process and releases its slot.
// Decrementing the active count is idempotent: closing an already-exited
// session does not double-decrement.
func (m *Manager) CloseSession(id string) error {
	s := m.get(id)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	alreadyExited := s.ExitCode != nil || s.Closed
	s.Closed = true
	ptmx := s.ptmx
	s.mu.Unlock()

	err := ptmx.Close()
	if !alreadyExited {
		m.decrementActive()
	}
	return err
}

// ListSessions returns a read-only snapshot of every tracked session.
func (m *Manager) ListSessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.mu.Lock()
		infos = append(infos, Info{
			ID:         s.ID,
			CommandVec: s.CommandVec,
			WorkingDir: s.WorkingDir,
			ExitCode:   s.ExitCode,
			Closed:     s.Closed,
			LastReadAt: s.LastReadAt,
		})
		s.mu.Unlock()
	}
	return infos
}

func (m *Manager) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// YieldResult is the outcome of one yield-wait poll.
type YieldResult struct {
	SessionID string
	Output    string
	ExitCode  *int // nil while the process is still running
}

// YieldWait polls a session for completion, draining output, and returns
// once either the process completes or yieldInterval elapses — whichever
// comes first — so the run-loop can reattach to a still-running session
// without blocking indefinitely.
func YieldWait(ctx context.Context, m *Manager, id string, yieldInterval time.Duration) YieldResult {
	deadline := time.Now().Add(yieldInterval)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if code, done := m.IsSessionCompleted(id); done {
			output, _ := m.ReadSessionOutput(id, true)
			return YieldResult{SessionID: id, Output: output, ExitCode: &code}
		}
		if time.Now().After(deadline) {
			output, _ := m.ReadSessionOutput(id, true)
			return YieldResult{SessionID: id, Output: output, ExitCode: nil}
		}
		select {
		case <-ctx.Done():
			output, _ := m.ReadSessionOutput(id, true)
			return YieldResult{SessionID: id, Output: output, ExitCode: nil}
		case <-ticker.C:
		}
	}
}

var interactiveEditors = []string{"vi", "vim", "nvim", "nano", "emacs"}
var interactiveShells = []string{"bash -i", "zsh -i", "python -i", "ipython", "irb", "node -i"}
var pagers = []string{"less", "more", "most"}
var rawShells = []string{"bash", "zsh", "sh", "fish", "cmd.exe", "powershell", "pwsh"}

// ValidatePTYCommand rejects interactive editors, interactive shells/REPLs,
// pagers, and raw standalone shells, per the conservative PTY command
// policy named in §4.D. confirm overrides the rejection.
func ValidatePTYCommand(commandVec []string, confirm bool) error {
	if confirm || len(commandVec) == 0 {
		return nil
	}
	head := strings.ToLower(filepath.Base(commandVec[0]))
	full := strings.ToLower(strings.Join(commandVec, " "))

	for _, editor := range interactiveEditors {
		if head == editor {
			return fmt.Errorf("ptymanager: interactive editor %q requires confirm=true", commandVec[0])
		}
	}
	for _, shell := range interactiveShells {
		if strings.Contains(full, shell) {
			return fmt.Errorf("ptymanager: interactive shell/REPL %q requires confirm=true", full)
		}
	}
	for _, pager := range pagers {
		if head == pager {
			return fmt.Errorf("ptymanager: pager %q requires confirm=true", commandVec[0])
		}
	}
	if len(commandVec) == 1 {
		for _, shell := range rawShells {
			if head == shell {
				return fmt.Errorf("ptymanager: raw standalone shell %q requires confirm=true", commandVec[0])
			}
		}
	}
	return nil
}

// DefaultShellCommand returns the OS-appropriate interactive login shell
// command vector, used when no explicit command is given.
func DefaultShellCommand() []string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		if runtime.GOOS == "windows" {
			if _, err := exec.LookPath("pwsh"); err == nil {
				return []string{"pwsh"}
			}
			if _, err := exec.LookPath("powershell"); err == nil {
				return []string{"powershell"}
			}
			return []string{"cmd.exe"}
		}
		shell = "/bin/bash"
	}
	if runtime.GOOS == "windows" {
		return []string{shell}
	}
	return []string{shell, "-l"}
}
