package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/sanitize"
	"github.com/gogotex/newsdesk/internal/content/validate"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// CreateInput is a generic content submission.
type CreateInput struct {
	Title       string
	Description string
	// ContentType is the logical type. When empty, a content-type tag in
	// Tags is kept, otherwise the object becomes an article.
	ContentType string
	Tags        []string
	Features    content.Features
	// Status is the initial status: draft (default), submitted or published.
	Status content.Status
}

var initialStatuses = map[content.Status]bool{
	content.StatusDraft:     true,
	content.StatusSubmitted: true,
	content.StatusPublished: true,
}

// CreateContent sanitizes, validates and stores a new object in the
// canonical collection. The author is the context actor.
func (s *contentService) CreateContent(ctx context.Context, in CreateInput) (string, error) {
	id, err := s.create(ctx, in)
	record("create", err)
	return id, err
}

func (s *contentService) create(ctx context.Context, in CreateInput) (string, error) {
	actor, err := content.RequireActor(ctx)
	if err != nil {
		return "", err
	}
	status := in.Status
	if status == "" {
		status = content.StatusDraft
	}
	if !initialStatuses[status] {
		return "", fmt.Errorf("%w: content cannot be created as %s", content.ErrInvalidTransition, status)
	}

	tags := s.sanitizer.SanitizeAll(in.Tags, sanitize.Metadata)
	ct := s.sanitizer.Sanitize(in.ContentType, sanitize.Metadata)
	if ct == "" {
		ct, _ = content.ContentType(&content.Object{Tags: tags})
	}

	o := &content.Object{
		Title:       s.sanitizer.Sanitize(in.Title, sanitize.Title),
		Description: s.sanitizer.Sanitize(in.Description, sanitize.Content),
		AuthorID:    actor.UID,
		AuthorName:  s.sanitizer.Sanitize(actor.DisplayName, sanitize.Metadata),
		Tags:        typedTags(ct, content.TypeArticle, tags),
		Features:    s.sanitizeFeatures(in.Features),
		Status:      status,
	}

	res := s.validator.Validate(o.Title, o.Description, o.Features)
	if tagErrs := validate.ValidateTags(o.Tags); len(tagErrs) > 0 {
		res.IsValid = false
		res.Errors = append(res.Errors, tagErrs...)
	}
	if err := res.Err(); err != nil {
		return "", err
	}

	id, err := s.repo.Create(ctx, o)
	if err != nil {
		return "", err
	}
	logger.Infof("content %s created by %s (status %s)", id, actor.UID, o.Status)
	s.invalidate(ctx)
	return id, nil
}

// sanitizeFeatures returns a sanitized copy of fs. Opaque payloads are kept
// as they are; nothing renders them.
func (s *contentService) sanitizeFeatures(fs content.Features) content.Features {
	if len(fs) == 0 {
		return nil
	}
	out := make(content.Features, len(fs))
	for k, f := range fs.Clone() {
		switch v := f.(type) {
		case nil:
			continue
		case *content.LocationFeature:
			v.Address = s.sanitizer.Sanitize(v.Address, sanitize.Location)
			v.Name = s.sanitizer.Sanitize(v.Name, sanitize.Location)
		case *content.TaskFeature:
			v.Category = s.sanitizer.Sanitize(v.Category, sanitize.Metadata)
			v.Unit = s.sanitizer.Sanitize(v.Unit, sanitize.Metadata)
			v.Status = s.sanitizer.Sanitize(v.Status, sanitize.Metadata)
		case *content.CanvaFeature:
			v.DesignID = s.sanitizer.Sanitize(v.DesignID, sanitize.Metadata)
			v.EditURL = cleanURL(v.EditURL)
			v.ExportURL = cleanURL(v.ExportURL)
		}
		out[k] = f
	}
	return out
}

// cleanURL keeps absolute http(s) URLs and drops anything else.
func cleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// typedTags puts the content-type tag first so it wins over any
// content-type the caller supplied.
func typedTags(contentType, fallback string, tags []string) []string {
	if contentType == "" {
		contentType = fallback
	}
	ct := content.MakeTag(content.NamespaceContentType, contentType)
	out := []string{ct}
	for _, t := range tags {
		if t != ct {
			out = append(out, t)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// EventInput creates an event: a date feature and optionally a location.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	IsAllDay    bool
	Location    *content.LocationFeature
	Tags        []string
	ContentType string
	Status      content.Status
}

func (s *contentService) CreateEvent(ctx context.Context, in EventInput) (string, error) {
	fs := content.Features{}
	fs.Set(&content.DateFeature{Start: in.Start, End: in.End, IsAllDay: in.IsAllDay})
	if in.Location != nil {
		fs.Set(in.Location)
	}
	return s.CreateContent(ctx, CreateInput{
		Title:       in.Title,
		Description: in.Description,
		ContentType: orDefault(in.ContentType, content.TypeEvent),
		Tags:        in.Tags,
		Features:    fs,
		Status:      in.Status,
	})
}

// TaskInput creates a volunteer or supply request.
type TaskInput struct {
	Title       string
	Description string
	Category    string
	Qty         float64
	Unit        string
	TaskStatus  string
	Tags        []string
	ContentType string
	Status      content.Status
}

func (s *contentService) CreateTask(ctx context.Context, in TaskInput) (string, error) {
	fs := content.Features{}
	fs.Set(&content.TaskFeature{Category: in.Category, Qty: in.Qty, Unit: in.Unit, Status: in.TaskStatus})
	return s.CreateContent(ctx, CreateInput{
		Title:       in.Title,
		Description: in.Description,
		ContentType: orDefault(in.ContentType, content.TypeTask),
		Tags:        in.Tags,
		Features:    fs,
		Status:      in.Status,
	})
}

// LocationInput creates location-bound content, an article by default.
type LocationInput struct {
	Title       string
	Description string
	Address     string
	Name        string
	Geo         *content.GeoPoint
	Tags        []string
	ContentType string
	Status      content.Status
}

func (s *contentService) CreateLocationContent(ctx context.Context, in LocationInput) (string, error) {
	fs := content.Features{}
	fs.Set(&content.LocationFeature{Address: in.Address, Name: in.Name, Geo: in.Geo})
	return s.CreateContent(ctx, CreateInput{
		Title:       in.Title,
		Description: in.Description,
		ContentType: orDefault(in.ContentType, content.TypeArticle),
		Tags:        in.Tags,
		Features:    fs,
		Status:      in.Status,
	})
}

// CanvaInput creates content linked to a Canva design, an announcement by
// default.
type CanvaInput struct {
	Title       string
	Description string
	DesignID    string
	EditURL     string
	ExportURL   string
	Tags        []string
	ContentType string
	Status      content.Status
}

func (s *contentService) CreateCanvaContent(ctx context.Context, in CanvaInput) (string, error) {
	fs := content.Features{}
	fs.Set(&content.CanvaFeature{DesignID: in.DesignID, EditURL: in.EditURL, ExportURL: in.ExportURL})
	return s.CreateContent(ctx, CreateInput{
		Title:       in.Title,
		Description: in.Description,
		ContentType: orDefault(in.ContentType, content.TypeAnnouncement),
		Tags:        in.Tags,
		Features:    fs,
		Status:      in.Status,
	})
}
