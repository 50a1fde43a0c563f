package display

import (
	"fmt"
	"io"
	"sync"
)

// Tone is the visual state of a status label
type Tone int

const (
	ToneNeutral Tone = iota
	ToneProgress
	ToneSuccess
	ToneError
)

// String returns a string representation of the tone
func (t Tone) String() string {
	switch t {
	case ToneNeutral:
		return "neutral"
	case ToneProgress:
		return "progress"
	case ToneSuccess:
		return "success"
	case ToneError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is what a status label shows
type Status struct {
	Text string
	Tone Tone
}

// Display is where user-facing state and errors are surfaced
type Display interface {
	// SetStatus replaces the status label
	SetStatus(status Status)
	// Alert shows a message the operator has to notice
	Alert(message string)
}

// Terminal renders a Display as lines on a writer
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	current Status
}

// NewTerminal creates a Terminal writing to w
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// SetStatus prints the status when it changes
func (t *Terminal) SetStatus(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status == t.current {
		return
	}
	t.current = status
	fmt.Fprintf(t.w, "[%s] %s\n", status.Tone, status.Text)
}

// Alert prints the message with a bell so it is noticed at the station
func (t *Terminal) Alert(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.w, "\a!! %s\n", message)
}

// Status returns the last status shown
func (t *Terminal) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
