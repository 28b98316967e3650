package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
)

// TransportError wraps a failure at the dial/HTTP-status/envelope layer:
// a dial error, a non-200 response, or a malformed/unrecognised envelope.
// StatusCode is 0 when the failure never reached an HTTP response (a
// dial error or a decode failure). One type covers all three failure
// modes; GetJSON retries a dial error or a non-200 status, while a
// malformed or unrecognised envelope ends the call at once.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: transport error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("httpclient: transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError reports the upstream's own rate-limit envelope code (the
// -412 sentinel). Code carries the envelope code that triggered it. GetJSON
// leaves Err nil; once the retry budget runs out, the error it returns wraps
// both this value and domain.ErrGiveUp.
type RateLimitError struct {
	URL  string
	Code int
	Err  error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("httpclient: rate limited on %s (envelope code %d)", e.URL, e.Code)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// GetUserFriendlyMessage gives a concise, user-facing summary of a
// httpclient error for log lines an operator actually reads.
func GetUserFriendlyMessage(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return fmt.Sprintf("rate limited by upstream (code %d)", rl.Code)
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode > 0 {
			switch {
			case te.StatusCode >= 400 && te.StatusCode < 500:
				return fmt.Sprintf("upstream rejected request (HTTP %d)", te.StatusCode)
			case te.StatusCode >= 500:
				return fmt.Sprintf("upstream server error (HTTP %d)", te.StatusCode)
			default:
				return fmt.Sprintf("unexpected HTTP status (%d)", te.StatusCode)
			}
		}
		if te.Err != nil {
			errStr := te.Err.Error()
			switch {
			case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no route to host"):
				return "endpoint unreachable"
			case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded"):
				return "connection timeout"
			default:
				return "transport error"
			}
		}
	}

	if errors.Is(err, domain.ErrNoProxyAvailable) {
		return "no proxy available"
	}
	if errors.Is(err, domain.ErrGiveUp) {
		return "retries exhausted"
	}
	return "request failed"
}

// IsRecoverable reports whether err should trigger retry logic rather
// than an immediate give-up: a rate limit, a non-200 status, or a failure
// to reach the upstream at all. A malformed or unrecognised envelope is
// not recoverable.
func IsRecoverable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode > 0 {
			return true
		}
		var ue *url.Error
		return errors.As(te.Err, &ue)
	}
	return false
}
