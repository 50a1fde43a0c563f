package scanning

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Wedge implements the Scanner interface for keyboard-wedge code readers,
// which type each decoded payload followed by a newline. Lines that
// arrive while decoding is stopped are discarded.
type Wedge struct {
	r io.Reader

	mu        sync.Mutex
	onDecoded DecodeFunc
}

// NewWedge creates a Wedge reading payloads from r
func NewWedge(r io.Reader) *Wedge {
	return &Wedge{r: r}
}

// Devices reports the wedge as the only device
func (w *Wedge) Devices(ctx context.Context) ([]Device, error) {
	return []Device{{ID: "wedge", Label: "Keyboard wedge"}}, nil
}

// Start routes decoded lines to onDecoded
func (w *Wedge) Start(ctx context.Context, constraints Constraints, config DecodeConfig, onDecoded DecodeFunc) error {
	if onDecoded == nil {
		return fmt.Errorf("decode callback is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDecoded = onDecoded
	return nil
}

// Stop discards lines until the next Start
func (w *Wedge) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDecoded = nil
	return nil
}

// Camera returns a track without capabilities; a wedge has no optics
func (w *Wedge) Camera(ctx context.Context, constraints Constraints) (Track, error) {
	return wedgeTrack{}, nil
}

// Run reads lines until the reader is exhausted or ctx is done. The read
// itself cannot be interrupted, so on cancellation the reading goroutine is
// left blocked until the reader returns.
func (w *Wedge) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(w.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("reading scanner input: %w", err)
					}
				default:
				}
				return nil
			}
			w.deliver(line)
		}
	}
}

func (w *Wedge) deliver(line string) {
	code := strings.TrimSpace(line)
	if code == "" {
		return
	}

	w.mu.Lock()
	fn := w.onDecoded
	w.mu.Unlock()

	if fn == nil {
		slog.Debug("Discarding code read while decoder stopped")
		return
	}
	fn(code)
}

type wedgeTrack struct{}

func (wedgeTrack) Capabilities() Capabilities { return Capabilities{} }

func (wedgeTrack) ApplyZoom(ctx context.Context, zoom float64) error {
	return fmt.Errorf("zoom not supported")
}

func (wedgeTrack) Stop() error { return nil }
