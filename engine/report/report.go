// Package report wires the request generator, fetcher, validator,
// transformer and grouping engine into traced pipelines.
package report

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/vk-insights/engine/domain"
	"github.com/WessleyAI/vk-insights/engine/fetch"
	"github.com/WessleyAI/vk-insights/engine/group"
	"github.com/WessleyAI/vk-insights/engine/transform"
	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/fn"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
)

// DefaultTopAffiliations is the affiliation count kept in summaries.
const DefaultTopAffiliations = 3

// Fetcher resolves a request batch. *fetch.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, reqs iter.Seq[vkapi.Request]) []fetch.Result
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Generator *vkapi.Generator
	Fetcher   Fetcher
	Logger    *slog.Logger
	Metrics   *metrics.Registry
	// Top is the number of affiliations kept in summaries.
	Top int
	// Location decides photo calendar days; nil means UTC.
	Location *time.Location
}

// Service runs friends and photos batches end to end.
type Service struct {
	gen     *vkapi.Generator
	fetcher Fetcher
	log     *slog.Logger
	metrics *metrics.Registry
	top     int
	loc     *time.Location
	passes  *transform.Transformer[domain.Profile]
}

// NewService creates a Service from deps.
func NewService(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	top := deps.Top
	if top <= 0 {
		top = DefaultTopAffiliations
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		gen:     deps.Generator,
		fetcher: deps.Fetcher,
		log:     log.With("component", "report"),
		metrics: deps.Metrics,
		top:     top,
		loc:     loc,
		passes:  transform.Profiles(),
	}
}

// Generator returns the request generator the service uses.
func (s *Service) Generator() *vkapi.Generator { return s.gen }

// --- Pipeline Stages ---

// FetchStage resolves a request sequence under a fresh batch ID.
func (s *Service) FetchStage() fn.Stage[iter.Seq[vkapi.Request], Fetched] {
	return func(ctx context.Context, reqs iter.Seq[vkapi.Request]) fn.Result[Fetched] {
		f := Fetched{BatchID: uuid.NewString()}
		start := time.Now()
		f.Results = s.fetcher.FetchAll(ctx, reqs)

		failed := 0
		for _, r := range f.Results {
			if r.Err != nil {
				failed++
			}
		}
		s.log.Info("batch fetched",
			"batch_id", f.BatchID,
			"requests", len(f.Results),
			"failed", failed,
			"duration", time.Since(start),
		)
		if err := ctx.Err(); err != nil {
			return fn.Err[Fetched](err)
		}
		return fn.Ok(f)
	}
}

// ValidateStage decodes a fetched batch into envelopes of T. It fails with a
// *BatchError when nothing was fetched or nothing validated.
func ValidateStage[T domain.Entity](log *slog.Logger, m *metrics.Registry) fn.Stage[Fetched, Validated[T]] {
	return func(_ context.Context, f Fetched) fn.Result[Validated[T]] {
		b := domain.Validate[T](f.Results)

		apiErrs := len(b.APIErrors())
		m.AddValidated("ok", len(b.Envelopes)-apiErrs)
		m.AddValidated("api_error", apiErrs)
		m.AddValidated("skipped", len(b.Warnings))
		for _, w := range b.Warnings {
			log.Warn("payload skipped", "batch_id", f.BatchID, "kind", w.Kind(), "index", w.Index, "error", w.Err)
		}

		if err := b.Err(); err != nil {
			return fn.Err[Validated[T]](&BatchError{
				BatchID:  f.BatchID,
				Warnings: warningStrings(b.Warnings),
				Err:      err,
			})
		}
		return fn.Ok(Validated[T]{Fetched: f, Batch: b})
	}
}

// TransformStage normalizes every distinct profile in the batch. A friend
// shared by several queried users is kept once, at its first occurrence.
func (s *Service) TransformStage() fn.Stage[Validated[domain.Profile], Normalized] {
	return func(_ context.Context, v Validated[domain.Profile]) fn.Result[Normalized] {
		profiles, errs := s.passes.Apply(uniqueProfiles(v.Batch.Items()))
		for _, err := range errs {
			pass := "unknown"
			var pe *transform.PassError
			if errors.As(err, &pe) {
				pass = pe.Pass
			}
			s.metrics.IncDataError(pass)
			s.log.Warn("record not normalized", "batch_id", v.BatchID, "error", err)
		}
		return fn.Ok(Normalized{Validated: v, Profiles: profiles, DataErrors: errs})
	}
}

func uniqueProfiles(profiles []domain.Profile) []domain.Profile {
	seen := make(map[int64]bool, len(profiles))
	return fn.FilterMap(profiles, func(p domain.Profile) (domain.Profile, bool) {
		if seen[p.ID] {
			return p, false
		}
		seen[p.ID] = true
		return p, true
	})
}

// GroupStage groups normalized profiles by field and summarizes them.
func GroupStage(field group.Field, top int) fn.Stage[Normalized, Report] {
	return func(_ context.Context, n Normalized) fn.Result[Report] {
		return fn.Ok(Report{
			BatchID:    n.BatchID,
			Field:      field,
			Groups:     slices.Collect(group.By(n.Profiles, field)),
			Summary:    group.Summarize(n.Profiles, top),
			APIErrors:  n.Batch.APIErrors(),
			Warnings:   warningStrings(n.Batch.Warnings),
			DataErrors: errorStrings(n.DataErrors),
		})
	}
}

// PhotoStage groups photos chronologically by day in loc.
func PhotoStage(loc *time.Location) fn.Stage[Validated[domain.Photo], PhotoReport] {
	return func(_ context.Context, v Validated[domain.Photo]) fn.Result[PhotoReport] {
		r := PhotoReport{
			BatchID:   v.BatchID,
			APIErrors: v.Batch.APIErrors(),
			Warnings:  warningStrings(v.Batch.Warnings),
		}
		for g := range group.PhotosByDate(v.Batch.Items(), loc) {
			day := PhotoDay{Date: g.Date, Photos: g.Photos}
			for _, p := range g.Photos {
				day.Links = append(day.Links, vkapi.PhotoLink(p.OwnerID, p.ID))
			}
			r.Days = append(r.Days, day)
		}
		return fn.Ok(r)
	}
}

// FriendsPipeline composes fetch, validate, transform and group for field.
func (s *Service) FriendsPipeline(field group.Field) fn.Stage[iter.Seq[vkapi.Request], Report] {
	fetched := fn.TracedStage("fetch", s.FetchStage())
	validated := fn.Then(fetched, fn.TracedStage("validate", ValidateStage[domain.Profile](s.log, s.metrics)))
	normalized := fn.Then(validated, fn.TracedStage("transform", s.TransformStage()))
	return fn.Then(normalized, fn.TracedStage("group", GroupStage(field, s.top)))
}

// PhotosPipeline composes fetch, validate and chronological grouping.
func (s *Service) PhotosPipeline() fn.Stage[iter.Seq[vkapi.Request], PhotoReport] {
	fetched := fn.TracedStage("fetch", s.FetchStage())
	validated := fn.Then(fetched, fn.TracedStage("validate", ValidateStage[domain.Photo](s.log, s.metrics)))
	return fn.Then(validated, fn.TracedStage("group", PhotoStage(s.loc)))
}

// Friends fetches the friends of every id and groups them by field.
func (s *Service) Friends(ctx context.Context, ids []int64, field group.Field) (Report, error) {
	return s.FriendsPipeline(field)(ctx, s.gen.Friends(ids)).Unwrap()
}

// Photos fetches the photos every id is tagged on, grouped by day.
func (s *Service) Photos(ctx context.Context, ids []int64) (PhotoReport, error) {
	return s.PhotosPipeline()(ctx, s.gen.Photos(ids)).Unwrap()
}

// FetchFriends returns the raw friends.get results for ids.
func (s *Service) FetchFriends(ctx context.Context, ids []int64) []fetch.Result {
	return s.fetcher.FetchAll(ctx, s.gen.Friends(ids))
}

// FetchMutual returns the raw friends.getMutual results for pairs.
func (s *Service) FetchMutual(ctx context.Context, pairs []vkapi.Pair) []fetch.Result {
	return s.fetcher.FetchAll(ctx, s.gen.Mutual(pairs))
}
