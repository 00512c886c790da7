// Package aggregator assembles the set of content eligible for a newsletter
// issue from the canonical and legacy collections.
package aggregator

import (
	"context"
	"fmt"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/pkg/logger"
	"github.com/gogotex/newsdesk/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Querier is the part of the repository the aggregator reads through.
type Querier interface {
	Query(ctx context.Context, c repository.Collection, q repository.Query) ([]*content.Object, error)
}

// Source is one input of the eligibility set. Sources are merged in the
// order they are given to New.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) ([]*content.Object, error)
}

const (
	SourceCanonical = "canonical"
	SourceLegacy    = "legacy"
)

// CanonicalSource reads published canonical content, newest first.
func CanonicalSource(q Querier) Source {
	return Source{Name: SourceCanonical, Fetch: func(ctx context.Context) ([]*content.Object, error) {
		return q.Query(ctx, repository.Canonical, repository.Query{
			Filters: []repository.Filter{repository.Eq(repository.FieldStatus, string(content.StatusPublished))},
			OrderBy: []repository.Order{{Field: repository.FieldCreatedAt, Desc: true}},
		})
	}}
}

// LegacySource reads approved or published legacy submissions, newest
// first. It goes away with the legacy collection.
func LegacySource(q Querier) Source {
	return Source{Name: SourceLegacy, Fetch: func(ctx context.Context) ([]*content.Object, error) {
		return q.Query(ctx, repository.Legacy, repository.Query{
			Filters: []repository.Filter{repository.In(repository.FieldStatus,
				string(content.StatusApproved), string(content.StatusPublished))},
			OrderBy: []repository.Order{{Field: repository.FieldCreatedAt, Desc: true}},
		})
	}}
}

// Result is a best-effort eligibility set plus the sources that could not
// be read.
type Result struct {
	Items    []*content.Object
	Failures []content.SourceFailure
}

// Partial returns an *content.AggregationPartialFailure when any source
// failed, nil otherwise.
func (r Result) Partial() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &content.AggregationPartialFailure{Failed: r.Failures}
}

// Aggregator queries its sources concurrently and merges their results.
type Aggregator struct {
	sources []Source
}

func New(sources ...Source) *Aggregator {
	return &Aggregator{sources: sources}
}

// NewDefault wires the canonical source ahead of the legacy one, so canonical
// entries win on duplicate ids.
func NewDefault(q Querier) *Aggregator {
	return New(CanonicalSource(q), LegacySource(q))
}

// Eligible returns every newsletter-ready item across the sources. A failing
// source is logged, counted and reported in Result.Failures while the other
// sources still contribute. An error is returned only when every source
// failed.
func (a *Aggregator) Eligible(ctx context.Context) (Result, error) {
	lists := make([][]*content.Object, len(a.sources))
	errs := make([]error, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			objs, err := src.Fetch(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			lists[i] = ReadyOnly(objs)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := a.sources[i].Name
		metrics.AggregatorSourceFailures.WithLabelValues(name).Inc()
		logger.Warnf("eligibility source %s failed: %v", name, err)
		res.Failures = append(res.Failures, content.SourceFailure{Source: name, Err: err})
	}
	res.Items = Merge(lists...)

	if len(a.sources) > 0 && len(res.Failures) == len(a.sources) {
		return res, fmt.Errorf("%w: %w", content.ErrAllSourcesFailed, res.Partial())
	}
	return res, nil
}

// ReadyOnly keeps the objects tagged newsletter:ready, in order.
func ReadyOnly(objs []*content.Object) []*content.Object {
	out := make([]*content.Object, 0, len(objs))
	for _, o := range objs {
		if content.HasTag(o, content.TagNewsletterReady) {
			out = append(out, o)
		}
	}
	return out
}

// Merge concatenates lists and drops repeated ids. The first occurrence of
// an id wins and relative order is preserved. The result is never nil.
func Merge(lists ...[]*content.Object) []*content.Object {
	seen := make(map[string]struct{})
	out := []*content.Object{}
	for _, list := range lists {
		for _, o := range list {
			if o == nil {
				continue
			}
			if _, dup := seen[o.ID]; dup {
				continue
			}
			seen[o.ID] = struct{}{}
			out = append(out, o)
		}
	}
	return out
}
