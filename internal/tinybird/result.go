// Package tinybird provides a thin client for the Tinybird time-series
// backend. Every query returns a tri-state Result so callers can tell
// "the backend rejected our credentials" apart from real failures; nothing
// upstream of the client may assume success.
package tinybird

// Result is the tri-state outcome of a time-series query:
// success with data, unauthorized, or failed with an error.
// Construct values only through OK, Unauthorized, and Failure.
type Result[T any] struct {
	data         T
	unauthorized bool
	err          error
	ok           bool
}

// OK wraps a successful query result.
func OK[T any](data T) Result[T] {
	return Result[T]{data: data, ok: true}
}

// Unauthorized marks a query rejected by the backend's credential check,
// or one short-circuited because no credential is configured.
func Unauthorized[T any]() Result[T] {
	return Result[T]{unauthorized: true}
}

// Failure wraps a query that failed for any reason other than authorization.
func Failure[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// OK reports whether the query succeeded.
func (r Result[T]) OK() bool { return r.ok }

// Unauthorized reports whether the backend rejected the credential.
func (r Result[T]) Unauthorized() bool { return r.unauthorized }

// Err returns the query error, or nil for success and unauthorized results.
func (r Result[T]) Err() error { return r.err }

// Data returns the query payload. Only meaningful when OK reports true;
// otherwise it is the zero value.
func (r Result[T]) Data() T { return r.data }

// Outcome is the type-erased status of a Result, used by the availability
// policy to classify a batch of heterogeneous query results.
type Outcome struct {
	Unauthorized bool
	Err          error
}

// OutcomeOf extracts the type-erased status of a Result.
func OutcomeOf[T any](r Result[T]) Outcome {
	return Outcome{Unauthorized: r.unauthorized, Err: r.err}
}
