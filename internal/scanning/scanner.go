package scanning

import (
	"context"
	"errors"
)

var (
	// ErrNoCamera is returned when the scanner reports no capture device
	ErrNoCamera = errors.New("no camera device found")
	// ErrPermissionDenied is returned by scanners when the operator or the
	// platform refuses access to the camera
	ErrPermissionDenied = errors.New("camera permission denied")
)

// FacingMode selects which camera to use
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Device is a capture device reported by a Scanner
type Device struct {
	ID    string
	Label string
}

// Constraints select the capture device
type Constraints struct {
	FacingMode FacingMode
}

// DecodeConfig tunes continuous decoding
type DecodeConfig struct {
	FPS int
	// Box is the side of the square capture region, in pixels
	Box int
}

// DecodeFunc is invoked with the text of every recognised code. Scanners
// may invoke it repeatedly for the same code.
type DecodeFunc func(qrData string)

// Scanner is the code-reading capability
type Scanner interface {
	// Devices lists the available capture devices
	Devices(ctx context.Context) ([]Device, error)
	// Start begins continuous decoding, calling onDecoded for each code
	Start(ctx context.Context, constraints Constraints, config DecodeConfig, onDecoded DecodeFunc) error
	// Stop halts decoding. Stopping a stopped scanner is not an error.
	Stop() error
	// Camera opens the camera track used for capability probing
	Camera(ctx context.Context, constraints Constraints) (Track, error)
}

// ZoomCapability is the optical zoom range a camera reports
type ZoomCapability struct {
	Min  float64
	Max  float64
	Step float64
}

// Capabilities of a camera track
type Capabilities struct {
	// Zoom is nil when the camera has no optical zoom
	Zoom *ZoomCapability
}

// Track is an open camera resource
type Track interface {
	Capabilities() Capabilities
	ApplyZoom(ctx context.Context, zoom float64) error
	// Stop releases the camera
	Stop() error
}

// ZoomControl is the operator's zoom input
type ZoomControl interface {
	// Enable shows the control bound to the given range
	Enable(r ZoomCapability)
	// Disable greys the control out
	Disable()
	// Hide removes the control for cameras without zoom
	Hide()
	// Value is the control's current position
	Value() float64
}

type noopZoom struct{}

func (noopZoom) Enable(ZoomCapability) {}
func (noopZoom) Disable()              {}
func (noopZoom) Hide()                 {}
func (noopZoom) Value() float64        { return 1 }
