package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Spinner displays an animated indicator while a blocking call runs. It
// draws nothing when stdout is not a terminal.
type Spinner struct {
	out       io.Writer
	message   string
	frames    []string
	interval  time.Duration
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	startTime time.Time
}

var defaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner with the given message
func NewSpinner(message string) *Spinner {
	return &Spinner{
		out:      os.Stderr,
		message:  message,
		frames:   defaultFrames,
		interval: 80 * time.Millisecond,
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	if !IsTTY() {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.startTime = time.Now()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.spin()
}

func (s *Spinner) spin() {
	defer close(s.doneCh)

	i := 0
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			fmt.Fprint(s.out, "\r"+strings.Repeat(" ", 60)+"\r")
			return
		case <-ticker.C:
			s.mu.Lock()
			elapsed := time.Since(s.startTime)
			message := s.message
			s.mu.Unlock()

			frame := Color(Cyan, s.frames[i%len(s.frames)])
			if elapsed > time.Second {
				fmt.Fprintf(s.out, "\r%s %s (%.1fs)   ", frame, message, elapsed.Seconds())
			} else {
				fmt.Fprintf(s.out, "\r%s %s   ", frame, message)
			}
			i++
		}
	}
}

// Stop halts the spinner animation
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}
