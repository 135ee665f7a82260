package github

import (
	"context"
	stderrors "errors"
	"log/slog"
)

// Result is the outcome of an authoritative fetch: a value or an error,
// never both.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the fetch succeeded
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the pair in the usual Go shape
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Try runs an authoritative fetch and captures its outcome
func Try[T any](fetch func() (T, error)) Result[T] {
	v, err := fetch()
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Err: err}
	}
	return Result[T]{Value: v}
}

// Safe runs a best-effort fetch. On failure it logs a warning and
// returns fallback; the error never reaches the caller. Cancellation is
// not a failure of the fetch, so callers must check their context.
func Safe[T any](logger *slog.Logger, what string, fallback T, fetch func() (T, error), attrs ...any) T {
	r := Try(fetch)
	if r.OK() {
		return r.Value
	}
	if stderrors.Is(r.Err, context.Canceled) || stderrors.Is(r.Err, context.DeadlineExceeded) {
		logger.Debug(what+" abandoned", append(attrs, "error", r.Err)...)
		return fallback
	}
	logger.Warn(what+" failed, using default", append(attrs, "error", r.Err)...)
	return fallback
}
