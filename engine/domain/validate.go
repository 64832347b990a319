package domain

import (
	"errors"
	"fmt"
	"iter"

	"github.com/WessleyAI/vk-insights/engine/fetch"
)

// Warning records a fetch result that was skipped during validation. Err
// wraps one of ErrTransport, ErrBadPayload or ErrSchema.
type Warning struct {
	Index int    `json:"index"`
	URL   string `json:"url,omitempty"`
	Err   error  `json:"-"`
}

// Kind names the warning class.
func (w Warning) Kind() string {
	switch {
	case errors.Is(w.Err, ErrTransport):
		return "TransportError"
	case errors.Is(w.Err, ErrBadPayload):
		return "BadPayloadError"
	case errors.Is(w.Err, ErrSchema):
		return "SchemaValidationError"
	}
	return "Error"
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: result %d: %v", w.Kind(), w.Index, w.Err)
}

// Batch is the validated form of one fetch batch.
type Batch[T Entity] struct {
	Envelopes []Envelope[T]
	Warnings  []Warning
	// Fetched is the number of fetch results fed to Validate.
	Fetched int
}

// Validate decodes every fetch result into an envelope, in input order.
// Results that cannot be decoded are skipped and recorded as warnings; they
// never abort the batch.
func Validate[T Entity](results []fetch.Result) Batch[T] {
	b := Batch[T]{Fetched: len(results)}
	for i, res := range results {
		env, err := decodeResult[T](res)
		if err != nil {
			b.Warnings = append(b.Warnings, Warning{Index: i, URL: res.URL, Err: err})
			continue
		}
		b.Envelopes = append(b.Envelopes, env)
	}
	return b
}

func decodeResult[T Entity](res fetch.Result) (Envelope[T], error) {
	switch {
	case res.Err != nil:
		return Envelope[T]{}, fmt.Errorf("%w: %w", ErrTransport, res.Err)
	case res.Body == nil:
		return Envelope[T]{}, fmt.Errorf("%w: body is not JSON (%d bytes)", ErrBadPayload, len(res.Text))
	}
	return Decode[T](res.Body)
}

// Err distinguishes an empty input from an input where nothing validated.
func (b Batch[T]) Err() error {
	switch {
	case b.Fetched == 0:
		return ErrNothingFetched
	case len(b.Envelopes) == 0:
		return ErrNothingValid
	}
	return nil
}

// Collections yields the non-empty success collections. Empty or absent
// collections contribute nothing.
func (b Batch[T]) Collections() iter.Seq[Collection[T]] {
	return func(yield func(Collection[T]) bool) {
		for _, env := range b.Envelopes {
			if env.Response == nil || len(env.Response.Items) == 0 {
				continue
			}
			if !yield(*env.Response) {
				return
			}
		}
	}
}

// Items flattens all non-empty collections in order.
func (b Batch[T]) Items() []T {
	var out []T
	for c := range b.Collections() {
		out = append(out, c.Items...)
	}
	return out
}

// APIErrors lists the error envelopes in order.
func (b Batch[T]) APIErrors() []APIError {
	var out []APIError
	for _, env := range b.Envelopes {
		if env.Error != nil {
			out = append(out, *env.Error)
		}
	}
	return out
}
