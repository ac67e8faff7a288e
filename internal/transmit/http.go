package transmit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// StatusError is returned when the collector answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("collector returned HTTP %d: %s", e.Code, e.Body)
}

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// HTTPSink posts payloads to the collector's REST endpoints.
type HTTPSink struct {
	client      *http.Client
	baseURL     string
	trackPath   string
	summaryPath string
}

// NewHTTPSink creates a sink rooted at baseURL. A nil client uses
// http.DefaultClient; per-request timeouts come from the caller's context.
func NewHTTPSink(client *http.Client, baseURL, trackPath, summaryPath string) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSink{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		trackPath:   trackPath,
		summaryPath: summaryPath,
	}
}

// URLFor returns the endpoint for a payload kind.
func (s *HTTPSink) URLFor(kind Kind) string {
	path := s.trackPath
	if kind == KindSummary {
		path = s.summaryPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

// Deliver performs one POST. The bearer token is attached verbatim; an
// expired token surfaces as a *StatusError.
func (s *HTTPSink) Deliver(ctx context.Context, sess activity.Session, env Envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URLFor(env.Kind), bytes.NewReader(env.Body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sess.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AuthToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s payload: %w", env.Kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// Close is a no-op; the HTTP client is shared.
func (s *HTTPSink) Close() error {
	return nil
}
