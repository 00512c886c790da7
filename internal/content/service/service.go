package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/aggregator"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/internal/content/sanitize"
	"github.com/gogotex/newsdesk/internal/content/validate"
	"github.com/gogotex/newsdesk/pkg/logger"
	"github.com/gogotex/newsdesk/pkg/metrics"
)

var (
	// ErrExportDisabled is returned by ExportIssue when no exporter is configured.
	ErrExportDisabled = errors.New("issue export is not configured")
)

// Service defines the content operations used by the handler layer and the
// CLI. Every write requires a content.Actor in the context.
type Service interface {
	CreateContent(ctx context.Context, in CreateInput) (string, error)
	CreateEvent(ctx context.Context, in EventInput) (string, error)
	CreateTask(ctx context.Context, in TaskInput) (string, error)
	CreateLocationContent(ctx context.Context, in LocationInput) (string, error)
	CreateCanvaContent(ctx context.Context, in CanvaInput) (string, error)
	ValidateContentData(title, description string, features content.Features) validate.Result

	GetContent(ctx context.Context, id string) (*content.Object, error)
	ListContent(ctx context.Context, f ListFilter) ([]*content.Object, error)
	Subscribe(ctx context.Context, f ListFilter, fn func([]*content.Object, error)) (repository.CancelFunc, error)

	UpdateContentStatus(ctx context.Context, id string, status content.Status) error
	UpdateContentTags(ctx context.Context, id string, tags []string) error
	SetNewsletterReady(ctx context.Context, id string, ready bool) error
	Submit(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error

	GetEligibleForIssue(ctx context.Context, f *EligibilityFilter) ([]*content.Object, error)
	EligibleForIssue(ctx context.Context, f *EligibilityFilter) (aggregator.Result, error)
	ExportIssue(ctx context.Context, issueID string, f *EligibilityFilter) (*ExportResult, error)
}

// Repository is the persistence the service needs. *repository.Repository
// implements it.
type Repository interface {
	Create(ctx context.Context, o *content.Object) (string, error)
	Get(ctx context.Context, c repository.Collection, id string) (*content.Object, error)
	Query(ctx context.Context, c repository.Collection, q repository.Query) ([]*content.Object, error)
	Update(ctx context.Context, c repository.Collection, id string, p repository.Patch) error
	Subscribe(ctx context.Context, c repository.Collection, q repository.Query, fn func([]*content.Object, error)) (repository.CancelFunc, error)
	HardDelete(ctx context.Context, c repository.Collection, id string) error
}

// EligibilityCache stores complete eligibility sets between writes. Every
// write starts a new generation.
type EligibilityCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string) ([]*content.Object, bool, error)
	Set(ctx context.Context, gen int64, key string, items []*content.Object) error
	Invalidate(ctx context.Context) error
}

// Exporter hands an issue's eligibility set to the layout tool and returns
// a URL it can be fetched from.
type Exporter interface {
	ExportIssue(ctx context.Context, issueID string, items []*content.Object) (string, error)
}

type contentService struct {
	repo      Repository
	sanitizer *sanitize.Sanitizer
	validator *validate.Validator
	agg       *aggregator.Aggregator
	cache     EligibilityCache
	exporter  Exporter
	now       func() time.Time
}

// Option configures the service.
type Option func(*contentService)

func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(c *contentService) { c.sanitizer = s }
}

func WithAggregator(a *aggregator.Aggregator) Option {
	return func(c *contentService) { c.agg = a }
}

func WithCache(ec EligibilityCache) Option {
	return func(c *contentService) { c.cache = ec }
}

func WithExporter(e Exporter) Option {
	return func(c *contentService) { c.exporter = e }
}

func WithClock(now func() time.Time) Option {
	return func(c *contentService) { c.now = now }
}

// New returns a Service on top of repo. Without options it uses the
// standard sanitizer, a fresh validator and the canonical+legacy
// aggregator over repo; caching and export are off.
func New(repo Repository, opts ...Option) Service {
	s := &contentService{
		repo:      repo,
		sanitizer: sanitize.New(),
		validator: validate.New(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.agg == nil {
		s.agg = aggregator.NewDefault(repo)
	}
	return s
}

// ValidateContentData sanitizes like CreateContent does and reports what the
// validator would say, without storing anything.
func (s *contentService) ValidateContentData(title, description string, features content.Features) validate.Result {
	return s.validator.Validate(
		s.sanitizer.Sanitize(title, sanitize.Title),
		s.sanitizer.Sanitize(description, sanitize.Content),
		s.sanitizeFeatures(features),
	)
}

// locate finds id in the canonical collection first and then in the legacy
// one.
func (s *contentService) locate(ctx context.Context, id string) (repository.Collection, *content.Object, error) {
	for _, c := range []repository.Collection{repository.Canonical, repository.Legacy} {
		o, err := s.repo.Get(ctx, c, id)
		if err != nil {
			return "", nil, err
		}
		if o != nil {
			return c, o, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", content.ErrNotFound, id)
}

func (s *contentService) GetContent(ctx context.Context, id string) (*content.Object, error) {
	_, o, err := s.locate(ctx, id)
	return o, err
}

// ListFilter narrows ListContent and Subscribe. Only the canonical
// collection is listed, newest first.
type ListFilter struct {
	Status   content.Status
	Tag      string
	AuthorID string
	Limit    int
}

func (f ListFilter) query() repository.Query {
	q := repository.Query{
		OrderBy: []repository.Order{{Field: repository.FieldCreatedAt, Desc: true}},
		Limit:   f.Limit,
	}
	if f.Status != "" {
		q.Filters = append(q.Filters, repository.Eq(repository.FieldStatus, string(f.Status)))
	}
	if f.Tag != "" {
		q.Filters = append(q.Filters, repository.ArrayContains(repository.FieldTags, f.Tag))
	}
	if f.AuthorID != "" {
		q.Filters = append(q.Filters, repository.Eq(repository.FieldAuthorID, f.AuthorID))
	}
	return q
}

func (s *contentService) ListContent(ctx context.Context, f ListFilter) ([]*content.Object, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", content.ErrInvalidStatus, f.Status)
	}
	return s.repo.Query(ctx, repository.Canonical, f.query())
}

func (s *contentService) Subscribe(ctx context.Context, f ListFilter, fn func([]*content.Object, error)) (repository.CancelFunc, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", content.ErrInvalidStatus, f.Status)
	}
	return s.repo.Subscribe(ctx, repository.Canonical, f.query(), fn)
}

// invalidate drops cached eligibility sets after a write. Failures only
// cost a stale read until the entry expires, so they are logged.
func (s *contentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warnf("eligibility cache invalidate: %v", err)
	}
}

func record(op string, err error) {
	outcome := "ok"
	var verr *content.ValidationError
	var aerr *content.AuthError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		outcome = "invalid"
	case errors.As(err, &aerr):
		outcome = "unauthorized"
	case errors.Is(err, content.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, content.ErrInvalidTransition), errors.Is(err, content.ErrInvalidStatus):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	metrics.ContentWrites.WithLabelValues(op, outcome).Inc()
}
