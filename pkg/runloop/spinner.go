package runloop

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// statusInterval is how often the placeholder status line redraws.
// tokenInterval is the separate, coarser cadence at which the token
// counter embedded in that line is allowed to change. Uses a done channel
// plus ticker plus select, with its own cadences rather than a fixed
// 80ms tick.
const (
	statusInterval = 150 * time.Millisecond
	tokenInterval  = 500 * time.Millisecond
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// placeholderSpinner renders the run-loop's "thinking" status line: a spinner
// frame, a cancellation hint, and a token counter that only refreshes every
// tokenInterval even though the line itself redraws every statusInterval.
type placeholderSpinner struct {
	out       io.Writer
	mu        sync.Mutex
	message   string
	tokens    int
	frame     int
	startTime time.Time
	done      chan struct{}
	stopOnce  sync.Once

	lastTokenRender time.Time
	renderedTokens  int

	priorLine string // written back by Stop; nothing assigns it, so it is always empty
}

func newPlaceholderSpinner(message string) *placeholderSpinner {
	return &placeholderSpinner{
		out:     os.Stdout,
		message: message,
		done:    make(chan struct{}),
	}
}

// Start begins the animation loop. It is cheap to call from the run-loop's
// own goroutine since rendering happens on a dedicated goroutine.
func (s *placeholderSpinner) Start() {
	s.startTime = time.Now()
	go s.run()
}

func (s *placeholderSpinner) run() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *placeholderSpinner) render() {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.lastTokenRender) >= tokenInterval || s.lastTokenRender.IsZero() {
		s.renderedTokens = s.tokens
		s.lastTokenRender = now
	}
	frame := spinnerFrames[s.frame%len(spinnerFrames)]
	s.frame++
	msg := s.message
	tokens := s.renderedTokens
	elapsed := now.Sub(s.startTime).Round(time.Second)
	s.mu.Unlock()

	fmt.Fprintf(s.out, "\r\033[K%s %s (%d tokens, %s, ctrl-c to cancel)", frame, msg, tokens, elapsed)
}

// SetMessage updates the line's text without resetting the animation.
func (s *placeholderSpinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// AddTokens bumps the raw token counter; it is only reflected on screen at
// the next tokenInterval boundary.
func (s *placeholderSpinner) AddTokens(n int) {
	s.mu.Lock()
	s.tokens += n
	s.mu.Unlock()
}

// Stop halts the animation exactly once and clears the placeholder line.
// It writes priorLine after clearing, but since priorLine is never set the
// earlier screen content is not restored.
func (s *placeholderSpinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		fmt.Fprintf(s.out, "\r\033[K%s", s.priorLine)
	})
}
