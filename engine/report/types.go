package report

import (
	"errors"
	"fmt"

	"github.com/WessleyAI/vk-insights/engine/domain"
	"github.com/WessleyAI/vk-insights/engine/fetch"
	"github.com/WessleyAI/vk-insights/engine/group"
)

// Fetched is the output of the fetch stage.
type Fetched struct {
	BatchID string
	Results []fetch.Result
}

// Validated wraps a fetch batch with its decoded envelopes.
type Validated[T domain.Entity] struct {
	Fetched
	Batch domain.Batch[T]
}

// Normalized holds transformed profiles and the records the passes rejected.
type Normalized struct {
	Validated[domain.Profile]
	Profiles   []domain.Profile
	DataErrors []error
}

// Report is the grouped view of one friends batch.
type Report struct {
	BatchID    string            `json:"batch_id"`
	Field      group.Field       `json:"field"`
	Groups     []group.Group     `json:"groups"`
	Summary    group.Summary     `json:"summary"`
	APIErrors  []domain.APIError `json:"api_errors,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	DataErrors []string          `json:"data_errors,omitempty"`
}

// PhotoDay is the photos of one calendar day with their public links.
type PhotoDay struct {
	Date   string         `json:"date"`
	Links  []string       `json:"links"`
	Photos []domain.Photo `json:"photos"`
}

// PhotoReport is the chronological view of one photos batch.
type PhotoReport struct {
	BatchID   string            `json:"batch_id"`
	Days      []PhotoDay        `json:"days"`
	APIErrors []domain.APIError `json:"api_errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// BatchError reports a batch that produced nothing usable. It wraps
// domain.ErrNothingFetched or domain.ErrNothingValid.
type BatchError struct {
	BatchID  string
	Warnings []string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: %v (%d warnings)", e.BatchID, e.Err, len(e.Warnings))
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsEmpty reports whether err means the batch had nothing to report, as
// opposed to a pipeline failure.
func IsEmpty(err error) bool {
	return errors.Is(err, domain.ErrNothingFetched) || errors.Is(err, domain.ErrNothingValid)
}

func warningStrings(ws []domain.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
