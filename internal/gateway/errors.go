package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing means the provider is not configured.
	ErrCredentialsMissing = errors.New("provider credentials missing")
	// ErrUpstreamUnavailable covers network failures and non-2xx answers.
	ErrUpstreamUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse means the provider answered with an unexpected shape.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrActionFailed wraps any failure of a payment action.
	ErrActionFailed = errors.New("provider action failed")
	// ErrInvalidParams means the request itself cannot be sent.
	ErrInvalidParams = errors.New("invalid provider parameters")
	// ErrUnknownKind is returned by Call for an unsupported kind.
	ErrUnknownKind = errors.New("unknown provider kind")
)

// statusError is a non-2xx upstream answer. It unwraps to
// ErrUpstreamUnavailable.
type statusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

func (e *statusError) Unwrap() error { return ErrUpstreamUnavailable }

// reasonOf names the failure class of err for Result.Reason.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrCredentialsMissing):
		return "credentials_missing"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	default:
		return "upstream_unavailable"
	}
}

func malformed(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, ErrMalformedResponse, err)
}
