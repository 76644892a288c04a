package music

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind int

const (
	// KindUnavailable covers network errors, timeouts and server errors.
	KindUnavailable Kind = iota
	// KindNotFound means the provider has no matching entity or returned an
	// empty result set.
	KindNotFound
	// KindRateLimited means the provider rejected the call with a quota error.
	KindRateLimited
	// KindMalformed means the response did not have the expected shape.
	KindMalformed
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed_response"
	default:
		return "provider_unavailable"
	}
}

// Transient reports whether a retry may succeed.
func (k Kind) Transient() bool {
	return k == KindUnavailable || k == KindRateLimited
}

// Sentinel errors matching each Kind with errors.Is.
var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrMalformed   = errors.New("malformed response")
)

// Error is returned by provider adapters. Provider and Op identify the call
// that failed.
type Error struct {
	Provider string
	Op       string
	Kind     Kind
	Err      error
}

// NewError builds an Error. A nil err is replaced by the sentinel of kind.
func NewError(provider, op string, kind Kind, err error) *Error {
	if err == nil {
		err = kind.sentinel()
	}
	return &Error{Provider: provider, Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindRateLimited:
		return ErrRateLimited
	case KindMalformed:
		return ErrMalformed
	default:
		return ErrUnavailable
	}
}

// KindOf classifies err. Errors not produced by an adapter, including
// context deadlines, count as KindUnavailable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	}
	return KindUnavailable
}

// AsError converts err into an *Error, attributing unclassified failures to
// provider and op.
func AsError(provider, op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(provider, op, KindUnavailable, err)
	}
	return NewError(provider, op, KindOf(err), err)
}

// Result carries either a value or the classified failure of one provider
// call.
type Result[T any] struct {
	Value T
	Err   *Error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

// Fail wraps a failure.
func Fail[T any](err *Error) Result[T] { return Result[T]{Err: err} }

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }
