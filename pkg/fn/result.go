package fn

// Result is what a Stage hands to the next one: a value, or the error that
// ends the pipeline.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps a failure. err must be non-nil.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Failed reports whether the result carries an error.
func (r Result[T]) Failed() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
