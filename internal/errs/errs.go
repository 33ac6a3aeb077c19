// Package errs defines the error kinds shared by the scanning engine and its
// callers. Every kind is a sentinel checked with errors.Is; wrapped errors keep
// both the kind and the underlying cause matchable.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrValidation marks malformed caller input: bad patterns, bad request
// fields. Never retried.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks a missing local root or a missing remote repository.
var ErrNotFound = errors.New("not found")

// ErrRateLimited marks provider quota exhaustion before any useful data was
// returned.
var ErrRateLimited = errors.New("rate limited")

// ErrDecode marks a single file whose content is not valid text. The engine
// recovers from it by skipping the file.
var ErrDecode = errors.New("content is not text")

// ErrTimeout marks an operation that exceeded the caller's deadline.
var ErrTimeout = errors.New("timeout")

// ErrBudgetExhausted is returned by metered fetchers once the API call budget
// is spent. The matcher treats it as a stop signal, not a failure.
var ErrBudgetExhausted = errors.New("api budget exhausted")

// Error attaches a kind to an underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind. A nil err still produces an error carrying msg.
func Wrap(kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation builds an ErrValidation for a named input field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: field + ": " + fmt.Sprintf(format, args...)}
}

// RateLimitError reports provider quota exhaustion with whatever retry hint
// the provider supplied. Zero values mean "unknown".
type RateLimitError struct {
	Reset      time.Time
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := "rate limited by provider"
	if !e.Reset.IsZero() {
		msg += fmt.Sprintf(" (resets at %s)", e.Reset.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryHint returns how long a caller should wait before retrying, computed
// from RetryAfter or Reset relative to now.
func (e *RateLimitError) RetryHint(now time.Time) time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	if !e.Reset.IsZero() && e.Reset.After(now) {
		return e.Reset.Sub(now)
	}
	return 0
}

// Code returns a stable string code for err, suitable for API payloads.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrDecode):
		return "DECODE_FAILED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus maps err to the status code the HTTP layer should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Deadline tags err as ErrTimeout when ctx expired. Callers that hand ctx to
// code returning bare context errors use it to keep the kind.
func Deadline(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, err, "deadline exceeded")
	}
	return err
}

// Public returns a message for err that can be shown to remote callers. It
// names the kind and the tagging message but never the underlying cause,
// which may carry upstream URLs or local paths. Validation errors are
// returned whole since they describe the caller's own input.
func Public(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return (&RateLimitError{Reset: rl.Reset}).Error()
	}
	if Code(err) == "INTERNAL_ERROR" {
		return "internal error"
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg + ": " + e.Kind.Error()
	}
	for _, kind := range []error{ErrNotFound, ErrRateLimited, ErrDecode, ErrTimeout} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
