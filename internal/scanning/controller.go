package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/qr-station/internal/display"
	"github.com/zombor/qr-station/internal/station"
)

const (
	DefaultFPS          = 30
	DefaultPollInterval = time.Second
	defaultZoomStep     = 0.2
)

// Server is the check-in server the controller reports to
type Server interface {
	SubmitScan(ctx context.Context, sub station.ScanSubmission) (*station.ScanReceipt, error)
	ScanStatus(ctx context.Context, scanID string) (*station.ScanStatus, error)
}

// Journal records submissions and their outcome
type Journal interface {
	RecordSubmission(scanID, qrData string, at time.Time) error
	RecordResult(scanID string, status station.ScanStatus, at time.Time) error
}

// TimeSource provides the current time and the poll ticker
type TimeSource interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

func (defaultTimeSource) NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

type noopJournal struct{}

func (noopJournal) RecordSubmission(string, string, time.Time) error        { return nil }
func (noopJournal) RecordResult(string, station.ScanStatus, time.Time) error { return nil }

// State of the scanning session
type State int

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateSubmitting
	StatePolling
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Config tunes the controller
type Config struct {
	FPS int
	// Box is the capture region side, normally the container width
	Box          int
	FacingMode   FacingMode
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.FacingMode == "" {
		c.FacingMode = FacingEnvironment
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// session is one start..stop run. ctx is cancelled when the session ends.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	state  State
	track  Track
}

// job is the server-side work for one decoded code: the submission and
// then the status poll. It outlives the session that started it when the
// station is hidden; Stop, Close and a newer decode cancel it.
type job struct {
	owner   *session
	cancel  context.CancelFunc
	scanID  string
	polling bool
}

// Controller runs scanning sessions: it starts the scanner, submits each
// decoded code, polls the server for the result and resumes decoding.
type Controller struct {
	scanner    Scanner
	server     Server
	display    display.Display
	zoom       ZoomControl
	journal    Journal
	timeSource TimeSource
	cfg        Config

	mu      sync.Mutex
	current *session
	job     *job
	polls   sync.WaitGroup
}

// NewController creates a Controller without zoom control or journal
func NewController(scanner Scanner, server Server, disp display.Display, cfg Config) *Controller {
	return NewControllerWithDeps(scanner, server, disp, nil, nil, nil, cfg)
}

// NewControllerWithDeps creates a Controller with optional collaborators;
// nil values fall back to no-op implementations.
func NewControllerWithDeps(scanner Scanner, server Server, disp display.Display, zoom ZoomControl, journal Journal, timeSrc TimeSource, cfg Config) *Controller {
	if zoom == nil {
		zoom = noopZoom{}
	}
	if journal == nil {
		journal = noopJournal{}
	}
	if timeSrc == nil {
		timeSrc = defaultTimeSource{}
	}
	return &Controller{
		scanner:    scanner,
		server:     server,
		display:    disp,
		zoom:       zoom,
		journal:    journal,
		timeSource: timeSrc,
		cfg:        cfg.withDefaults(),
	}
}

// State returns the state of the current session
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// Polling reports whether a status poll is outstanding
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job != nil && c.job.polling
}

// Start begins a scanning session. ctx bounds the whole session, not just
// startup. Starting while a session is active does nothing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &session{ctx: sctx, cancel: cancel, state: StateStarting}
	c.current = s
	c.mu.Unlock()

	c.display.SetStatus(display.Status{Text: "Scanning...", Tone: display.ToneProgress})

	if err := c.openCamera(s); err != nil {
		c.mu.Lock()
		ended := c.current != s
		c.mu.Unlock()
		if ended || errors.Is(err, errSessionEnded) {
			return nil
		}
		c.teardown(s, err)
		return err
	}

	slog.Info("Scanner started", "fps", c.cfg.FPS, "box", c.cfg.Box)
	return nil
}

var errSessionEnded = errors.New("session ended")

func (c *Controller) openCamera(s *session) error {
	devices, err := c.scanner.Devices(s.ctx)
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoCamera
	}

	if err := c.scanner.Start(s.ctx, c.constraints(), c.decodeConfig(), c.OnDecoded); err != nil {
		return fmt.Errorf("starting decoder: %w", err)
	}

	track, err := c.scanner.Camera(s.ctx, c.constraints())
	if err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}

	c.mu.Lock()
	if c.current != s {
		// Stopped while the camera was opening
		c.mu.Unlock()
		if err := errors.Join(c.release(track), c.scanner.Stop()); err != nil {
			slog.Warn("Failed to release camera", "error", err)
		}
		return errSessionEnded
	}
	s.track = track
	s.state = StateScanning
	c.mu.Unlock()

	c.setupZoom(s.ctx, track)
	return nil
}

func (c *Controller) setupZoom(ctx context.Context, track Track) {
	zoom := track.Capabilities().Zoom
	if zoom == nil {
		c.zoom.Hide()
		return
	}

	r := *zoom
	if r.Step <= 0 {
		r.Step = defaultZoomStep
	}
	c.zoom.Enable(r)
	c.applyZoom(ctx, track, c.zoom.Value())
}

// SetZoom applies a new zoom level to the running camera
func (c *Controller) SetZoom(ctx context.Context, zoom float64) error {
	c.mu.Lock()
	var track Track
	if c.current != nil {
		track = c.current.track
	}
	c.mu.Unlock()

	if track == nil {
		return fmt.Errorf("setting zoom: no camera running")
	}
	return c.applyZoom(ctx, track, zoom)
}

func (c *Controller) applyZoom(ctx context.Context, track Track, zoom float64) error {
	if err := track.ApplyZoom(ctx, zoom); err != nil {
		slog.Warn("Failed to apply zoom", "zoom", zoom, "error", err)
		c.display.Alert("Zoom error: " + err.Error())
		return fmt.Errorf("applying zoom: %w", err)
	}
	return nil
}

// Stop ends the active session and cancels a submission or poll in flight.
// Stopping an idle controller does nothing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	c.current = nil
	j := c.job
	c.job = nil
	track := s.track
	c.mu.Unlock()

	s.cancel()
	if j != nil {
		j.cancel()
	}

	err := errors.Join(c.release(track), c.scanner.Stop())
	c.zoom.Disable()
	c.display.SetStatus(display.Status{Text: "Scanner stopped", Tone: display.ToneNeutral})

	slog.Info("Scanner stopped")
	if err != nil {
		return fmt.Errorf("stopping scanner: %w", err)
	}
	return nil
}

// Hidden releases the camera and the decoder because the station is no
// longer visible. It runs even without an active session. A submission or
// poll in flight keeps running and reports its result, but decoding is not
// resumed.
func (c *Controller) Hidden() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	var track Track
	if s != nil {
		track = s.track
	}
	c.mu.Unlock()

	if s != nil {
		s.cancel()
	}
	if err := c.release(track); err != nil {
		slog.Warn("Failed to release camera", "error", err)
	}
	if err := c.scanner.Stop(); err != nil {
		slog.Warn("Failed to stop decoder", "error", err)
	}
	slog.Info("Station hidden, camera released")
}

// Close stops everything, including work left behind by Hidden, and
// waits for poll goroutines to exit.
func (c *Controller) Close() error {
	err := c.Stop()

	c.mu.Lock()
	j := c.job
	c.job = nil
	c.mu.Unlock()
	if j != nil {
		j.cancel()
	}

	c.polls.Wait()
	return err
}

// OnDecoded handles a recognised code. Decoding is stopped before the
// submission so that at most one submission is in flight; codes arriving
// outside the scanning state are dropped.
func (c *Controller) OnDecoded(qrData string) {
	c.mu.Lock()
	s := c.current
	if s == nil || s.state != StateScanning {
		c.mu.Unlock()
		return
	}
	s.state = StateSubmitting
	stale := c.job
	jctx, cancel := context.WithCancel(context.WithoutCancel(s.ctx))
	j := &job{owner: s, cancel: cancel}
	c.job = j
	c.mu.Unlock()

	if err := c.scanner.Stop(); err != nil {
		slog.Warn("Failed to stop decoder", "error", err)
	}
	if stale != nil {
		stale.cancel()
	}

	receipt, err := c.server.SubmitScan(jctx, station.ScanSubmission{QRData: qrData})

	c.mu.Lock()
	if c.job != j {
		// Cancelled by Stop, Close or a newer decode
		c.mu.Unlock()
		cancel()
		slog.Debug("Submission cancelled", "error", err)
		return
	}
	if err != nil {
		c.job = nil
		resume := c.current == s && s.state == StateSubmitting
		if resume {
			s.state = StateScanning
		}
		c.mu.Unlock()
		cancel()

		slog.Error("Failed to submit scan", "error", err)
		c.display.Alert("Error sending data: " + err.Error())
		if resume {
			c.restartDecoder(s)
		}
		return
	}

	j.scanID = receipt.ScanID
	j.polling = true
	if c.current == s {
		s.state = StatePolling
	}
	c.polls.Add(1)
	c.mu.Unlock()

	if err := c.journal.RecordSubmission(receipt.ScanID, qrData, c.timeSource.Now()); err != nil {
		slog.Warn("Failed to journal submission", "scan_id", receipt.ScanID, "error", err)
	}

	go c.pollLoop(jctx, j)
}

// pollLoop queries the job status on every tick until it is terminal
func (c *Controller) pollLoop(ctx context.Context, j *job) {
	defer c.polls.Done()
	defer j.cancel()

	ticker := c.timeSource.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		status, err := c.server.ScanStatus(ctx, j.scanID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Failed to poll scan status", "scan_id", j.scanID, "error", err)
			continue
		}
		if !status.Terminal() {
			continue
		}

		c.finishPoll(j, *status)
		return
	}
}

func (c *Controller) finishPoll(j *job, status station.ScanStatus) {
	c.mu.Lock()
	if c.job != j {
		// Cancelled between the query and now
		c.mu.Unlock()
		return
	}
	c.job = nil
	s := j.owner
	resume := c.current == s && s.state == StatePolling
	if resume {
		s.state = StateScanning
	}
	c.mu.Unlock()

	if err := c.journal.RecordResult(j.scanID, status, c.timeSource.Now()); err != nil {
		slog.Warn("Failed to journal result", "scan_id", j.scanID, "error", err)
	}

	tone := display.ToneSuccess
	if status.Failed() {
		tone = display.ToneError
	}
	slog.Info("Scan processed", "scan_id", j.scanID, "status", status.Status)
	c.display.SetStatus(display.Status{Text: status.Message, Tone: tone})
	c.display.Alert(status.Message)

	if resume {
		c.restartDecoder(s)
	}
}

// restartDecoder resumes decoding for s. The session may have been stopped
// or hidden while the result was on screen, so ownership is checked again
// once the decoder is running.
func (c *Controller) restartDecoder(s *session) {
	if s.ctx.Err() != nil {
		return
	}
	err := c.scanner.Start(s.ctx, c.constraints(), c.decodeConfig(), c.OnDecoded)

	c.mu.Lock()
	current := c.current == s && s.state == StateScanning
	if err == nil && !current && !c.wantsDecoder() {
		if err := c.scanner.Stop(); err != nil {
			slog.Warn("Failed to stop decoder", "error", err)
		}
	}
	c.mu.Unlock()

	if err != nil && current {
		c.teardown(s, fmt.Errorf("restarting decoder: %w", err))
	}
}

// wantsDecoder reports whether the current session, if any, needs the
// decoder running. Callers hold mu.
func (c *Controller) wantsDecoder() bool {
	if c.current == nil {
		return false
	}
	return c.current.state == StateStarting || c.current.state == StateScanning
}

// teardown ends a session after a failure and surfaces the error
func (c *Controller) teardown(s *session, cause error) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	track := s.track
	c.mu.Unlock()

	s.cancel()
	if err := c.release(track); err != nil {
		slog.Warn("Failed to release camera", "error", err)
	}
	if err := c.scanner.Stop(); err != nil {
		slog.Warn("Failed to stop decoder", "error", err)
	}

	slog.Error("Scanner failed", "error", cause)
	c.display.Alert(cause.Error())
	c.display.SetStatus(display.Status{Text: "An error occurred", Tone: display.ToneError})
}

func (c *Controller) release(track Track) error {
	if track == nil {
		return nil
	}
	if err := track.Stop(); err != nil {
		return fmt.Errorf("releasing camera: %w", err)
	}
	return nil
}

func (c *Controller) constraints() Constraints {
	return Constraints{FacingMode: c.cfg.FacingMode}
}

func (c *Controller) decodeConfig() DecodeConfig {
	return DecodeConfig{FPS: c.cfg.FPS, Box: c.cfg.Box}
}
