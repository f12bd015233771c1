package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/dynergy/tariff-compare/models"
)

// ErrTimeout indicates the request exceeded its budget.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrNetwork indicates a connection-level failure.
type ErrNetwork struct {
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Errorf("network: %w", e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrUpstreamRejected is a non-2xx answer with the engine's detail message.
type ErrUpstreamRejected struct {
	Status int
	Detail string
}

func (e ErrUpstreamRejected) Error() string {
	return fmt.Sprintf("upstream_rejected: status %d: %s", e.Status, e.Detail)
}

// Unauthorized reports whether the engine refused the credential.
func (e ErrUpstreamRejected) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// ErrParse indicates malformed local input or a malformed response body.
type ErrParse struct {
	Err error
}

func (e ErrParse) Error() string {
	return fmt.Errorf("parse: %w", e.Err).Error()
}

func (e ErrParse) Unwrap() error {
	return e.Err
}

// Parsef builds an ErrParse from a format string.
func Parsef(format string, args ...any) error {
	return ErrParse{Err: fmt.Errorf(format, args...)}
}

// classify maps a client.Do error onto the failure taxonomy. Caller
// cancellation is returned untouched so it is never reported as a provider fault.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	return ErrNetwork{Err: err}
}

// Reason converts an adapter error into the FailureReason reported per source.
func Reason(err error) models.FailureReason {
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return models.FailureReason{Kind: models.FailureTimeout}
	}
	var rejected ErrUpstreamRejected
	if errors.As(err, &rejected) {
		return models.FailureReason{Kind: models.FailureUpstreamRejected, Status: rejected.Status, Detail: rejected.Detail}
	}
	var parse ErrParse
	if errors.As(err, &parse) {
		return models.FailureReason{Kind: models.FailureParse, Detail: parse.Err.Error()}
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		return models.FailureReason{Kind: models.FailureNetwork, Detail: network.Err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureReason{Kind: models.FailureTimeout}
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return models.FailureReason{Kind: models.FailureNetwork, Detail: detail}
}

// Classify maps an error from a non-net/http fetcher onto the failure taxonomy.
func Classify(err error) error {
	return classify(err)
}

// Rejected builds the error for a non-2xx answer, pulling the engine's detail
// out of body when present.
func Rejected(status int, body []byte) ErrUpstreamRejected {
	return ErrUpstreamRejected{Status: status, Detail: detailFrom(body, status)}
}
