package login

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/qr-station/internal/display"
	"github.com/zombor/qr-station/internal/station"
)

// ErrMissingFields is returned when the username or password is empty
var ErrMissingFields = errors.New("username and password are required")

// Form holds the login form fields as typed by the operator
type Form struct {
	Username  string
	Password  string
	CSRFToken string
}

// Poster sends credentials to the form action
type Poster interface {
	Login(ctx context.Context, action string, creds station.Credentials) error
}

// Handler submits the login form
type Handler struct {
	poster  Poster
	display display.Display
	action  string
}

// NewHandler creates a Handler posting to action
func NewHandler(poster Poster, disp display.Display, action string) *Handler {
	return &Handler{
		poster:  poster,
		display: disp,
		action:  action,
	}
}

// Submit validates the form locally, digests the password and posts the
// credentials. Nothing is sent when a field is missing.
func (h *Handler) Submit(ctx context.Context, form Form) error {
	if form.Username == "" || form.Password == "" {
		h.display.Alert("Please fill in all fields")
		return ErrMissingFields
	}

	creds := station.Credentials{
		Username:  form.Username,
		Password:  Digest(form.Password),
		CSRFToken: form.CSRFToken,
	}

	h.display.SetStatus(display.Status{Text: "Processing...", Tone: display.ToneProgress})

	if err := h.poster.Login(ctx, h.action, creds); err != nil {
		slog.Error("Login failed", "username", form.Username, "error", err)
		h.display.SetStatus(display.Status{Text: "An error occurred while processing your request", Tone: display.ToneError})
		return fmt.Errorf("submitting login: %w", err)
	}

	h.display.SetStatus(display.Status{Text: "Login successful", Tone: display.ToneSuccess})
	return nil
}

// Digest returns the lowercase hex SHA-256 of the password
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// NewCSRFToken returns a random form token. It is not bound to any server
// secret and does not protect against forgery on its own.
func NewCSRFToken() string {
	return "csrf_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
