package station

// Scan statuses reported by the server. Anything other than StatusPending
// is terminal.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "error"
)

// ScanSubmission is the payload sent when a code is decoded
type ScanSubmission struct {
	QRData string `json:"qr_data"`
}

// ScanReceipt identifies the server-side job created for a submission
type ScanReceipt struct {
	ScanID string `json:"scan_id"`
}

// ScanStatus is the polled result of a scan job
type ScanStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Terminal reports whether no further polling is needed. The server answers
// with an empty or "pending" status while the job has no result yet.
func (s ScanStatus) Terminal() bool {
	return s.Status != "" && s.Status != StatusPending
}

// Failed reports whether the job ended with an error
func (s ScanStatus) Failed() bool {
	return s.Status == StatusFailed
}

// Credentials is the login payload. Password holds the hex digest, never
// the raw password.
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CSRFToken string `json:"csrfToken"`
}
