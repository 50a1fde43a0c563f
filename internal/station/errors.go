package station

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxMessageRunes = 200

// ErrMissingScanID is returned when the server accepts a scan without
// telling us which job to poll.
var ErrMissingScanID = errors.New("server response has no scan_id")

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// newStatusError extracts a readable message from an error body. The
// server uses {"error": ...} for most failures and {"message": ...} for
// rejected scans; anything else is passed through trimmed.
func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		msg = string([]rune(msg)[:maxMessageRunes])
	}
	return &StatusError{Code: code, Message: msg}
}
