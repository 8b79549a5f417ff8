package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var brailleFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line while a slow call is in flight.
// Start and Stop are idempotent.
type Spinner struct {
	out      io.Writer
	message  string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSpinner creates a spinner on stdout
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stdout, message)
}

// NewSpinnerTo creates a spinner that draws on out
func NewSpinnerTo(out io.Writer, message string) *Spinner {
	return &Spinner{out: out, message: message, interval: 80 * time.Millisecond}
}

// Start begins the animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop halts the animation and blanks the line it drew on
func (s *Spinner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning returns whether the spinner is currently active
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Spinner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	started := time.Now()
	drawn := 0
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			fmt.Fprint(s.out, "\r"+strings.Repeat(" ", drawn)+"\r")
			return
		case <-ticker.C:
			line := Color(Cyan, brailleFrames[n%len(brailleFrames)]) + " " + s.message
			if elapsed := time.Since(started); elapsed > 2*time.Second {
				line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
			}
			drawn = max(drawn, visibleLength(line))
			fmt.Fprint(s.out, "\r"+line)
		}
	}
}
