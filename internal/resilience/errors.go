package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// UpstreamError reports a non-success response from an external service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Transient reports whether the status indicates a server-side or throttling issue.
func (e *UpstreamError) Transient() bool {
	return IsTransientHTTPStatus(e.StatusCode)
}

// NewUpstreamError builds an UpstreamError, truncating long response bodies.
func NewUpstreamError(service string, statusCode int, body []byte) *UpstreamError {
	const maxBody = 256
	b := strings.TrimSpace(string(body))
	if len(b) > maxBody {
		b = b[:maxBody]
	}
	return &UpstreamError{Service: service, StatusCode: statusCode, Body: b}
}

// IsTransient returns true if the error (or any error in its chain) is an
// UpstreamError with a transient status, or a network-level fault such as a
// timeout, reset or DNS failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"context deadline exceeded",
		"client.timeout exceeded",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
