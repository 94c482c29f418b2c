// Package checkpoint implements the Context Optimizer's checkpoint
// lifecycle: create_checkpoint/save_checkpoint/load_checkpoint persist a
// {task_description, completed_steps, current_work, next_steps, key_files,
// token_usage, timestamp} snapshot. File-per-checkpoint JSON, an
// env-var-configurable base directory, and newest-first listing.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vtcode/vtcode/pkg/tokenbudget"
)

const (
	envCheckpointsDir = "VTCODE_CHECKPOINTS_DIR"
	envDataDir        = "VTCODE_DATA_DIR"
)

// State is the persisted checkpoint payload.
type State struct {
	ID               string             `json:"id"`
	SessionID        string             `json:"session_id,omitempty"`
	TaskDescription  string             `json:"task_description"`
	CompletedSteps   []string           `json:"completed_steps"`
	CurrentWork      string             `json:"current_work"`
	NextSteps        []string           `json:"next_steps"`
	KeyFiles         []string           `json:"key_files"`
	TokenUsage       tokenbudget.Stats  `json:"token_usage"`
	Timestamp        time.Time          `json:"timestamp"`
}

// Store manages checkpoint file persistence under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a checkpoint Store. An empty baseDir falls back, in
// order, to $VTCODE_CHECKPOINTS_DIR, $VTCODE_DATA_DIR/checkpoints, or
// ~/.vtcode/checkpoints.
func NewStore(baseDir string) *Store {
	if strings.TrimSpace(baseDir) == "" {
		if dir := strings.TrimSpace(os.Getenv(envCheckpointsDir)); dir != "" {
			baseDir = expandHomePath(dir)
		} else if dir := strings.TrimSpace(os.Getenv(envDataDir)); dir != "" {
			baseDir = filepath.Join(expandHomePath(dir), "checkpoints")
		} else if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			baseDir = filepath.Join(home, ".vtcode", "checkpoints")
		}
	}
	return &Store{baseDir: baseDir}
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

// Create builds a new State from the create_checkpoint arguments, stamping
// it with the current time and a token usage snapshot.
func Create(task, currentWork string, completedSteps, nextSteps, keyFiles []string, usage tokenbudget.Stats) *State {
	return &State{
		TaskDescription: task,
		CompletedSteps:  completedSteps,
		CurrentWork:     currentWork,
		NextSteps:       nextSteps,
		KeyFiles:        keyFiles,
		TokenUsage:      usage,
		Timestamp:       time.Now(),
	}
}

// Save persists state as <ID>.json in the Store's directory, generating an
// ID if one is not already set, alongside any existing checkpoints there.
func (s *Store) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("checkpoint: state is nil")
	}
	if state.ID == "" {
		state.ID = generateID()
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create directory: %w", err)
	}

	path := filepath.Join(s.baseDir, state.ID+".json")
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	return nil
}

// SaveTo persists state to an explicit path, bypassing the Store's base
// directory — the standalone save_checkpoint(path, state) form.
func SaveTo(path string, state *State) error {
	if state == nil {
		return fmt.Errorf("checkpoint: state is nil")
	}
	if state.ID == "" {
		state.ID = generateID()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("checkpoint: create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFrom reads a checkpoint from an explicit path — load_checkpoint(path).
func LoadFrom(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("checkpoint: parse: %w", err)
	}
	return &state, nil
}

// Load loads a checkpoint by ID from the Store's base directory.
func (s *Store) Load(id string) (*State, error) {
	return LoadFrom(filepath.Join(s.baseDir, id+".json"))
}

// List returns all checkpoints in the store, newest first.
func (s *Store) List() ([]*State, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return []*State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read directory: %w", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		state, err := s.Load(id)
		if err != nil {
			continue
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].Timestamp.After(states[j].Timestamp)
	})
	return states, nil
}

// ListBySession filters List to checkpoints belonging to sessionID.
func (s *Store) ListBySession(sessionID string) ([]*State, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var filtered []*State
	for _, state := range all {
		if state.SessionID == sessionID {
			filtered = append(filtered, state)
		}
	}
	return filtered, nil
}

// Delete removes a checkpoint by ID. Deleting a nonexistent ID is not an
// error, matching remove-if-present semantics used throughout the store.
func (s *Store) Delete(id string) error {
	path := filepath.Join(s.baseDir, id+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// GetLatest returns the most recently created checkpoint.
func (s *Store) GetLatest() (*State, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("checkpoint: no checkpoints found")
	}
	return all[0], nil
}

// Prune removes all but the keepCount most recent checkpoints, returning
// the number deleted.
func (s *Store) Prune(keepCount int) (int, error) {
	all, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(all) <= keepCount {
		return 0, nil
	}
	deleted := 0
	for i := keepCount; i < len(all); i++ {
		if err := s.Delete(all[i].ID); err != nil {
			continue
		}
		deleted++
	}
	return deleted, nil
}

func generateID() string {
	return fmt.Sprintf("cp_%d", time.Now().UnixNano())
}

// Summary renders a short human-readable description of state.
func (s *State) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.TaskDescription)
	fmt.Fprintf(&b, "  completed: %d steps\n", len(s.CompletedSteps))
	fmt.Fprintf(&b, "  current: %s\n", s.CurrentWork)
	fmt.Fprintf(&b, "  next: %d steps\n", len(s.NextSteps))
	fmt.Fprintf(&b, "  tokens: %d/%d\n", s.TokenUsage.Total, s.TokenUsage.MaxContextTokens)
	return b.String()
}
