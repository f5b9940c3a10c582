package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply-client/internal/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultBaseURL is the run service endpoint used when none is configured.
const DefaultBaseURL = "http://localhost:4000"

// Client talks to the autoapply run and profile services.
type Client struct {
	baseURL string
	http    *http.Client
}

// Options configures the client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts *Options) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	httpClient := &http.Client{Timeout: DefaultTimeout}
	if opts != nil {
		if opts.HTTPClient != nil {
			httpClient = opts.HTTPClient
		} else if opts.Timeout > 0 {
			httpClient = &http.Client{Timeout: opts.Timeout}
		}
	}
	return &Client{baseURL: parsed.String(), http: httpClient}, nil
}

type startRunRequest struct {
	UserID      string `json:"userId"`
	ProfileText string `json:"profileText,omitempty"`
}

type startRunResponse struct {
	RunID string `json:"runId"`
}

// StartRun asks the service to begin a new run for userID and returns the
// run id the service assigned. profileText is the rendered profile passed to
// the matching pipeline; it may be empty.
func (c *Client) StartRun(ctx context.Context, token, userID, profileText string) (string, error) {
	body := startRunRequest{UserID: userID, ProfileText: profileText}
	var resp startRunResponse
	if err := c.doJSON(ctx, http.MethodPost, "/trigger", token, body, &resp, "start run"); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", &RequestError{Op: "start run", Message: "service returned no run id"}
	}
	return resp.RunID, nil
}

// GetStatus fetches the current snapshot of the user's run. runID is
// optional; without it the service reports the user's latest run.
func (c *Client) GetStatus(ctx context.Context, token, userID, runID string) (*types.RunSnapshot, error) {
	path := "/status/" + url.PathEscape(userID)
	if runID != "" {
		path += "?runId=" + url.QueryEscape(runID)
	}
	var snap types.RunSnapshot
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &snap, "run status"); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, &RequestError{Op: "run status", Message: err.Error()}
	}
	return &snap, nil
}

// errorResponse is the service's error envelope. Fields beyond "error" are
// ignored.
type errorResponse struct {
	Error string `json:"error"`
}

// doJSON issues one authenticated JSON request and decodes a 2xx response
// into out. Non-2xx statuses map onto the package error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any, op string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RequestError{Op: op, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: op, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, op)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RequestError{Op: op, Cause: fmt.Errorf("invalid response body: %w", err)}
		}
	}
	return nil
}

// statusError converts a non-2xx response into a typed error, carrying the
// service's message when one is present.
func (c *Client) statusError(resp *http.Response, op string) error {
	var envelope errorResponse
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
		_ = json.Unmarshal(data, &envelope)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Op: op}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: op}
	case resp.StatusCode == http.StatusBadRequest && envelope.Error != "":
		return &ValidationError{Message: envelope.Error}
	default:
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: envelope.Error}
	}
}
