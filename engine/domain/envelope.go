package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is one API response: exactly one of Response and Error is set.
type Envelope[T Entity] struct {
	Response *Collection[T] `json:"response,omitempty"`
	Error    *APIError      `json:"error,omitempty"`
}

// OK reports whether the envelope is a success envelope.
func (e Envelope[T]) OK() bool { return e.Response != nil }

// Decode parses one payload into an envelope. Payloads that are not JSON
// objects fail with ErrBadPayload; objects that break the schema fail with
// ErrSchema.
func Decode[T Entity](data []byte) (Envelope[T], error) {
	var env Envelope[T]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return env, fmt.Errorf("%w: expected object: %v", ErrBadPayload, err)
	}
	if fields == nil {
		return env, fmt.Errorf("%w: expected object, got null", ErrBadPayload)
	}

	resp, hasResp := present(fields, "response")
	apiErr, hasErr := present(fields, "error")
	if hasResp == hasErr {
		return env, fmt.Errorf("%w: %w", ErrSchema, ErrEnvelopeShape)
	}

	if hasErr {
		env.Error = new(APIError)
		if err := json.Unmarshal(apiErr, env.Error); err != nil {
			return Envelope[T]{}, schemaError("error", err)
		}
		return env, nil
	}

	env.Response = new(Collection[T])
	if err := json.Unmarshal(resp, env.Response); err != nil {
		return Envelope[T]{}, schemaError("response", err)
	}
	return env, nil
}

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func schemaError(scope string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %s: %w", ErrSchema, scope, ve)
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		field := te.Field
		if field == "" {
			field = scope
		}
		return fmt.Errorf("%w: %w", ErrSchema, NewValidationError(field, te.Value, ErrWrongType))
	}
	return fmt.Errorf("%w: %s: %w", ErrSchema, scope, err)
}
