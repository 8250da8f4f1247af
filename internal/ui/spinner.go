package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner shows an animated line while a blocking call runs, such as
// waiting for the SSO redirect.
type Spinner struct {
	mu       sync.Mutex
	label    string
	out      io.Writer
	frame    int
	start    time.Time
	running  bool
	lastLen  int
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer, label string) *Spinner {
	return &Spinner{label: label, out: out}
}

// Start begins the animation. Starting twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.start = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	s.render()
	go s.animate()
}

// Success stops and prints a check mark.
func (s *Spinner) Success() { s.finish(SuccessStyle.Render(SymbolSuccess)) }

// Fail stops and prints a cross.
func (s *Spinner) Fail() { s.finish(ErrorStyle.Render(SymbolFail)) }

func (s *Spinner) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()
	<-s.doneChan
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	defer close(s.doneChan)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s %s...", InfoStyle.Render(spinnerFrames[s.frame]), s.label)
	s.clearLocked()
	fmt.Fprint(s.out, line)
	s.lastLen = len([]rune(line))
}

func (s *Spinner) finish(symbol string) {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	elapsed := time.Since(s.start).Seconds()
	fmt.Fprintf(s.out, "%s %s %s\n", symbol, s.label, MutedStyle.Render(fmt.Sprintf("%.1fs", elapsed)))
	s.lastLen = 0
}

func (s *Spinner) clearLocked() {
	if s.lastLen > 0 {
		fmt.Fprint(s.out, "\r"+strings.Repeat(" ", s.lastLen)+"\r")
	}
}
