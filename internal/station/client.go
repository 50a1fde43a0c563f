package station

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds a single request to the check-in server
const DefaultTimeout = 30 * time.Second

// BasicAuth holds optional credentials for a proxy in front of the server
type BasicAuth struct {
	Username string
	Password string
}

// Client talks to the check-in server
type Client struct {
	baseURL *url.URL
	client  *http.Client
	auth    BasicAuth
}

// NewClient creates a Client with a cookie jar, so the session cookie set
// by Login authenticates the scan endpoints afterwards.
func NewClient(baseURL string, timeout time.Duration, auth BasicAuth) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout, Jar: jar}, auth)
}

// NewClientWithHTTP creates a Client with a custom http.Client for testing
func NewClientWithHTTP(baseURL string, httpClient *http.Client, auth BasicAuth) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server url is required")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	return &Client{
		baseURL: u,
		client:  httpClient,
		auth:    auth,
	}, nil
}

// SubmitScan posts a decoded code and returns the job to poll
func (c *Client) SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanReceipt, error) {
	var receipt ScanReceipt
	if err := c.do(ctx, http.MethodPost, c.endpoint("scan"), sub, &receipt); err != nil {
		return nil, fmt.Errorf("submitting scan: %w", err)
	}
	if receipt.ScanID == "" {
		return nil, fmt.Errorf("submitting scan: %w", ErrMissingScanID)
	}

	slog.Debug("Scan submitted", "scan_id", receipt.ScanID)
	return &receipt, nil
}

// ScanStatus queries the current status of a scan job
func (c *Client) ScanStatus(ctx context.Context, scanID string) (*ScanStatus, error) {
	var status ScanStatus
	if err := c.do(ctx, http.MethodGet, c.endpoint("scan-status", scanID), nil, &status); err != nil {
		return nil, fmt.Errorf("getting scan status %s: %w", scanID, err)
	}
	return &status, nil
}

// Login posts credentials to the form action. The action may be absolute
// or relative to the server url. Any 2xx answer counts as success; the
// body is not interpreted.
func (c *Client) Login(ctx context.Context, action string, creds Credentials) error {
	ref, err := url.Parse(action)
	if err != nil {
		return fmt.Errorf("parsing login action: %w", err)
	}

	base := *c.baseURL
	base.Path = strings.TrimRight(base.Path, "/") + "/"
	target := base.ResolveReference(ref)

	if err := c.do(ctx, http.MethodPost, target, creds, nil); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	slog.Info("Logged in", "username", creds.Username)
	return nil
}

// endpoint joins path segments onto the base url. Each segment is escaped
// on its own, so a "/" inside a scan id stays part of that segment.
func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.baseURL
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	raw := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	path, err := url.PathUnescape(raw)
	if err != nil {
		path = raw
	}
	u.Path = path
	u.RawPath = raw
	return &u
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth.Username != "" || c.auth.Password != "" {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newStatusError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
