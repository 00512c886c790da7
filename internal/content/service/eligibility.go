package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/aggregator"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// EligibilityFilter narrows the eligibility set after aggregation. A nil
// filter keeps everything.
type EligibilityFilter struct {
	ContentType  string
	Tags         []string
	CreatedAfter *time.Time
}

func (f *EligibilityFilter) match(o *content.Object) bool {
	if f == nil {
		return true
	}
	if f.ContentType != "" {
		if ct, ok := content.ContentType(o); !ok || ct != f.ContentType {
			return false
		}
	}
	for _, t := range f.Tags {
		if !content.HasTag(o, t) {
			return false
		}
	}
	if f.CreatedAfter != nil && !o.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	return true
}

func (f *EligibilityFilter) apply(items []*content.Object) []*content.Object {
	out := make([]*content.Object, 0, len(items))
	for _, o := range items {
		if f.match(o) {
			out = append(out, o)
		}
	}
	return out
}

const eligibleCacheKey = "all"

// EligibleForIssue returns the merged eligibility set with the per-source
// failures. Only complete sets are cached, under the generation read before
// the sources were queried.
func (s *contentService) EligibleForIssue(ctx context.Context, f *EligibilityFilter) (aggregator.Result, error) {
	cached := false
	var gen int64
	if s.cache != nil {
		var err error
		gen, err = s.cache.Generation(ctx)
		if err != nil {
			logger.Warnf("eligibility cache read: %v", err)
		} else {
			cached = true
			items, ok, err := s.cache.Get(ctx, gen, eligibleCacheKey)
			if err != nil {
				logger.Warnf("eligibility cache read: %v", err)
			}
			if ok {
				return aggregator.Result{Items: f.apply(items)}, nil
			}
		}
	}

	res, err := s.agg.Eligible(ctx)
	if err != nil {
		return res, err
	}
	if cached && len(res.Failures) == 0 {
		if err := s.cache.Set(ctx, gen, eligibleCacheKey, res.Items); err != nil {
			logger.Warnf("eligibility cache write: %v", err)
		}
	}
	res.Items = f.apply(res.Items)
	return res, nil
}

// GetEligibleForIssue returns just the items. Sources that failed while
// others succeeded are logged by the aggregator and otherwise ignored.
func (s *contentService) GetEligibleForIssue(ctx context.Context, f *EligibilityFilter) ([]*content.Object, error) {
	res, err := s.EligibleForIssue(ctx, f)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// ExportResult describes an exported issue snapshot.
type ExportResult struct {
	IssueID  string   `json:"issueId"`
	URL      string   `json:"url"`
	Count    int      `json:"count"`
	Partial  bool     `json:"partial"`
	Failures []string `json:"failures,omitempty"`
}

// ExportIssue writes the current eligibility set for issueID to the
// exporter and returns where the layout tool can fetch it.
func (s *contentService) ExportIssue(ctx context.Context, issueID string, f *EligibilityFilter) (*ExportResult, error) {
	actor, err := content.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	issueID = strings.TrimSpace(issueID)
	if issueID == "" || strings.ContainsAny(issueID, "/\\") {
		return nil, &content.ValidationError{Errors: []string{"Issue ID must be a non-empty name without slashes"}}
	}
	res, err := s.EligibleForIssue(ctx, f)
	if err != nil {
		return nil, err
	}
	u, err := s.exporter.ExportIssue(ctx, issueID, res.Items)
	if err != nil {
		return nil, fmt.Errorf("export issue %s: %w", issueID, err)
	}
	out := &ExportResult{IssueID: issueID, URL: u, Count: len(res.Items), Partial: len(res.Failures) > 0}
	for _, sf := range res.Failures {
		out.Failures = append(out.Failures, sf.Source)
	}
	logger.Infof("issue %s exported by %s: %d items", issueID, actor.UID, out.Count)
	return out, nil
}
