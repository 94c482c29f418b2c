// Package tokenbudget implements the Token Budget Manager: per-component
// token accounting plus accurate token counting backed by tiktoken-go.
package tokenbudget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ComponentKind names a slice of the context window a component consumes.
type ComponentKind string

const (
	ComponentUserMessage      ComponentKind = "user_message"
	ComponentSystemPrompt     ComponentKind = "system_prompt"
	ComponentAssistantMessage ComponentKind = "assistant_message"
	ComponentToolOutput       ComponentKind = "tool_output"
	ComponentToolDefinition   ComponentKind = "tool_definition"
	ComponentOther            ComponentKind = "other"
)

// CompactMode reflects how aggressively the Context Optimizer should act,
// derived purely from usage ratio thresholds (90%/95%).
type CompactMode string

const (
	ModeNormal     CompactMode = "normal"
	ModeCompact    CompactMode = "compact"
	ModeCheckpoint CompactMode = "checkpoint"
)

// Stats is a point-in-time snapshot of token usage.
type Stats struct {
	PerComponent     map[ComponentKind]int `json:"per_component"`
	Total            int                   `json:"total"`
	MaxContextTokens int                   `json:"max_context_tokens"`
}

// UsageRatio returns Total/MaxContextTokens, clamped to [0,1].
func (s Stats) UsageRatio() float64 {
	if s.MaxContextTokens <= 0 {
		return 0
	}
	ratio := float64(s.Total) / float64(s.MaxContextTokens)
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

// CompactMode derives the current mode from the usage ratio: <90% Normal,
// [90,95)% Compact, >=95% Checkpoint.
func (s Stats) CompactMode() CompactMode {
	ratio := s.UsageRatio()
	switch {
	case ratio >= 0.95:
		return ModeCheckpoint
	case ratio >= 0.90:
		return ModeCompact
	default:
		return ModeNormal
	}
}

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
	encoderErr  error
)

func encoderFor(model string) (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoder, encoderErr
}

// CountTokens returns the accurate cl100k_base token count for text,
// falling back to a len/4 estimate if the encoder cannot be initialized.
func CountTokens(text string) int {
	enc, err := encoderFor("")
	if err != nil {
		return EstimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateTokens is a conservative len/4 upper bound, used as the
// Context Optimizer's pre-flight estimator. It is intentionally distinct
// from CountTokens: GetStats is allowed to use the accurate count while
// the optimizer's working estimate uses this one.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Manager tracks per-component token usage against a fixed context budget.
type Manager struct {
	mu     sync.RWMutex
	counts map[ComponentKind]int
	total  int
	max    int
}

// NewManager builds a Manager with the given max context window size.
func NewManager(maxContextTokens int) *Manager {
	return &Manager{
		counts: make(map[ComponentKind]int),
		max:    maxContextTokens,
	}
}

// RecordTokensForComponent adds count tokens to kind's running total. The
// model parameter is accepted so a future multi-encoder implementation
// could vary counting per model, but is currently unused since
// cl100k_base covers every supported provider.
func (m *Manager) RecordTokensForComponent(kind ComponentKind, count int, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[kind] += count
	m.total += count
}

// UsageRatio returns total tokens consumed divided by the max context
// window, clamped to [0,1].
func (m *Manager) UsageRatio() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Total: m.total, MaxContextTokens: m.max}.UsageRatio()
}

// GetStats returns a snapshot of per-component and total token usage.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[ComponentKind]int, len(m.counts))
	for k, v := range m.counts {
		snapshot[k] = v
	}
	return Stats{PerComponent: snapshot, Total: m.total, MaxContextTokens: m.max}
}

// Reset zeroes all counters, used when a checkpoint resets the context.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[ComponentKind]int)
	m.total = 0
}
