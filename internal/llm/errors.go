package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Domain errors. Provider implementations wrap one of these around the
// underlying client error so Classify can work without string matching.
var (
	ErrUnconfigured       = errors.New("reasoning provider not configured")
	ErrUnauthorized       = errors.New("reasoning provider rejected credentials")
	ErrModelUnavailable   = errors.New("model not available")
	ErrRateLimited        = errors.New("reasoning provider rate limited")
	ErrServiceUnavailable = errors.New("reasoning provider unavailable")
	ErrMalformedResponse  = errors.New("malformed reasoning response")
	ErrRequestRejected    = errors.New("reasoning request rejected")
	ErrProviderPanic      = errors.New("reasoning provider panicked")
	ErrUnknownProvider    = errors.New("unknown reasoning provider")
)

// Cause is the failure category recorded when the fallback path is taken.
type Cause string

const (
	CauseNone             Cause = ""
	CauseUnconfigured     Cause = "unconfigured"
	CauseUnauthorized     Cause = "unauthorized"
	CauseModelUnavailable Cause = "model_unavailable"
	CauseRateLimited      Cause = "rate_limited"
	CauseTimeout          Cause = "timeout"
	CauseCanceled         Cause = "canceled"
	CauseUnreachable      Cause = "unreachable"
	CauseMalformed        Cause = "malformed_response"
	CausePanic            Cause = "provider_panic"
	CauseUnknown          Cause = "unknown"
)

// Retryable reports whether a later attempt could plausibly succeed.
// Authorization and model errors never are.
func (c Cause) Retryable() bool {
	switch c {
	case CauseRateLimited, CauseTimeout, CauseUnreachable:
		return true
	}
	return false
}

// Classify maps a provider error onto a Cause. It relies on sentinel errors
// and standard library error types only.
func Classify(err error) Cause {
	if err == nil {
		return CauseNone
	}
	switch {
	case errors.Is(err, ErrUnconfigured):
		return CauseUnconfigured
	case errors.Is(err, ErrProviderPanic):
		return CausePanic
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	case errors.Is(err, ErrUnauthorized):
		return CauseUnauthorized
	case errors.Is(err, ErrModelUnavailable):
		return CauseModelUnavailable
	case errors.Is(err, ErrRateLimited):
		return CauseRateLimited
	case errors.Is(err, ErrMalformedResponse):
		return CauseMalformed
	case errors.Is(err, ErrServiceUnavailable):
		return CauseUnreachable
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return CauseTimeout
		}
		return CauseUnreachable
	}
	return CauseUnknown
}

// statusError maps an HTTP status from a provider onto a domain error.
func statusError(provider string, status int) error {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status == http.StatusNotFound:
		sentinel = ErrModelUnavailable
	case status == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		sentinel = context.DeadlineExceeded
	case status >= 500:
		sentinel = ErrServiceUnavailable
	default:
		sentinel = ErrRequestRejected
	}
	return fmt.Errorf("%s api call: status %d: %w", provider, status, sentinel)
}
