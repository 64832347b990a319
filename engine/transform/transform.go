// Package transform normalizes validated records. Passes return new records
// and never modify their input.
package transform

import (
	"errors"
	"fmt"
)

// Pass normalizes one record. A pass that does not apply to a record returns
// it unchanged. On error the pass still returns the record it was given.
type Pass[T any] func(T) (T, error)

// Transformer applies an ordered list of passes to every record.
type Transformer[T any] struct {
	names  []string
	passes []Pass[T]
}

// New creates a Transformer with no passes.
func New[T any]() *Transformer[T] {
	return &Transformer[T]{}
}

// Register appends a named pass. Passes are independent, so registration
// order affects only cost.
func (t *Transformer[T]) Register(name string, p Pass[T]) *Transformer[T] {
	t.names = append(t.names, name)
	t.passes = append(t.passes, p)
	return t
}

// Passes lists the registered pass names in order.
func (t *Transformer[T]) Passes() []string {
	return append([]string(nil), t.names...)
}

// Apply runs every pass over every record and returns the normalized
// records, one per input and in input order. Records a pass rejects are kept
// as that pass left them; the rejections are returned alongside.
func (t *Transformer[T]) Apply(items []T) ([]T, []error) {
	out := make([]T, len(items))
	var errs []error
	for i, item := range items {
		for j, p := range t.passes {
			next, err := p(item)
			if err != nil {
				errs = append(errs, &PassError{Pass: t.names[j], Index: i, Err: err})
				continue
			}
			item = next
		}
		out[i] = item
	}
	return out, errs
}

// PassError attributes a pass failure to the record that caused it.
type PassError struct {
	Pass  string
	Index int
	Err   error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("transform: %s: record %d: %v", e.Pass, e.Index, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// ErrMalformed marks source data a pass could not interpret.
var ErrMalformed = errors.New("malformed field")

// DataError reports a record field that could not be normalized.
type DataError struct {
	RecordID int64
	Field    string
	Value    string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("record %d: %s: %s %q", e.RecordID, ErrMalformed, e.Field, e.Value)
}

func (e *DataError) Unwrap() error { return ErrMalformed }
