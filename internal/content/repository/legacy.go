package repository

import (
	"reflect"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

// The legacy collection holds submissions written before the unified content
// model. It is read-compatible only for the duration of the migration: once
// every consumer reads the canonical collection, delete this file, the Legacy
// collection constant and the legacy aggregator source.

// LegacySubmission is the pre-migration document shape.
type LegacySubmission struct {
	ID             string     `bson:"_id"`
	Title          string     `bson:"title"`
	Description    string     `bson:"description"`
	SubmitterID    string     `bson:"submitterId"`
	SubmitterName  string     `bson:"submitterName"`
	ContentType    string     `bson:"contentType,omitempty"`
	Categories     []string   `bson:"categories,omitempty"`
	Tags           []string   `bson:"tags"`
	Status         string     `bson:"status"`
	EventDate      *time.Time `bson:"eventDate,omitempty"`
	EventEndDate   *time.Time `bson:"eventEndDate,omitempty"`
	AllDay         bool       `bson:"allDay,omitempty"`
	Location       string     `bson:"location,omitempty"`
	CanvaDesignID  string     `bson:"canvaDesignId,omitempty"`
	CanvaEditURL   string     `bson:"canvaEditUrl,omitempty"`
	CanvaExportURL string     `bson:"canvaExportUrl,omitempty"`
	SubmittedAt    time.Time  `bson:"submittedAt"`
	UpdatedAt      time.Time  `bson:"updatedAt,omitempty"`
	PublishedAt    *time.Time `bson:"publishedAt,omitempty"`
}

// legacyStatusPending is what old clients wrote for freshly submitted items.
const legacyStatusPending = "pending"

var legacyFields = map[string]string{
	FieldCreatedAt:  "submittedAt",
	FieldAuthorID:   "submitterId",
	FieldAuthorName: "submitterName",
}

func legacyField(f string) string {
	if lf, ok := legacyFields[f]; ok {
		return lf
	}
	return f
}

type legacyAdapter struct{}

func (legacyAdapter) encode(o *content.Object) (Document, error) {
	return toDocument(fromObject(o))
}

func (legacyAdapter) decode(d Document) (*content.Object, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	var s LegacySubmission
	if err := bson.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s.toObject(), nil
}

func (legacyAdapter) query(q Query) Query {
	out := Query{Limit: q.Limit}
	for _, f := range q.Filters {
		f.Field = legacyField(f.Field)
		if f.Field == FieldStatus {
			f = legacyStatusFilter(f)
		}
		out.Filters = append(out.Filters, f)
	}
	for _, o := range q.OrderBy {
		o.Field = legacyField(o.Field)
		out.OrderBy = append(out.OrderBy, o)
	}
	return out
}

// patch maps field names. Replacing the tags also replaces the legacy type
// and category fields, which would otherwise resurface as tags on read.
func (legacyAdapter) patch(set Document) Document {
	out := make(Document, len(set))
	for k, v := range set {
		out[legacyField(k)] = v
	}
	if tags, ok := set[FieldTags].([]string); ok {
		ct, _ := content.ContentType(&content.Object{Tags: tags})
		out["contentType"] = ct
		out["categories"] = []string{}
	}
	return out
}

// legacyStatusFilter widens a filter on submitted to the legacy pending value.
func legacyStatusFilter(f Filter) Filter {
	switch f.Op {
	case OpEq:
		if stringValue(f.Value) == string(content.StatusSubmitted) {
			return In(f.Field, string(content.StatusSubmitted), legacyStatusPending)
		}
	case OpIn:
		vals := elements(f.Value)
		for _, v := range vals {
			if stringValue(v) == string(content.StatusSubmitted) {
				return In(f.Field, append(vals, legacyStatusPending)...)
			}
		}
	}
	return f
}

func stringValue(v interface{}) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return ""
}

func (s *LegacySubmission) toObject() *content.Object {
	o := &content.Object{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		AuthorID:    s.SubmitterID,
		AuthorName:  s.SubmitterName,
		Status:      legacyStatus(s.ID, s.Status),
		CreatedAt:   s.SubmittedAt,
		UpdatedAt:   s.UpdatedAt,
		PublishedAt: s.PublishedAt,
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = s.SubmittedAt
	}

	tags := []string{}
	hasType := false
	for _, t := range s.Tags {
		if tag, ok := content.ParseTag(t); ok && tag.Namespace == content.NamespaceContentType {
			hasType = true
		}
	}
	if s.ContentType != "" && !hasType {
		tags = append(tags, content.MakeTag(content.NamespaceContentType, s.ContentType))
	}
	tags = append(tags, s.Tags...)
	for _, c := range s.Categories {
		tags = content.WithTag(tags, content.MakeTag(content.NamespaceCategory, c))
	}
	o.Tags = tags

	fs := content.Features{}
	if s.EventDate != nil {
		fs.Set(&content.DateFeature{Start: *s.EventDate, End: s.EventEndDate, IsAllDay: s.AllDay})
	}
	if s.Location != "" {
		fs.Set(&content.LocationFeature{Address: s.Location})
	}
	if s.CanvaDesignID != "" || s.CanvaEditURL != "" {
		fs.Set(&content.CanvaFeature{DesignID: s.CanvaDesignID, EditURL: s.CanvaEditURL, ExportURL: s.CanvaExportURL})
	}
	if len(fs) > 0 {
		o.Features = fs
	}
	return o
}

func legacyStatus(id, raw string) content.Status {
	if raw == legacyStatusPending {
		return content.StatusSubmitted
	}
	s, err := content.ParseStatus(raw)
	if err != nil {
		logger.Warnf("legacy submission %s has unknown status %q, reading it as submitted", id, raw)
		return content.StatusSubmitted
	}
	return s
}

func fromObject(o *content.Object) *LegacySubmission {
	s := &LegacySubmission{
		ID:            o.ID,
		Title:         o.Title,
		Description:   o.Description,
		SubmitterID:   o.AuthorID,
		SubmitterName: o.AuthorName,
		Tags:          append([]string{}, o.Tags...),
		Status:        string(o.Status),
		SubmittedAt:   o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		PublishedAt:   o.PublishedAt,
	}
	if ct, ok := content.ContentType(o); ok {
		s.ContentType = ct
	}
	if d, ok := content.DateOf(o); ok {
		start := d.Start
		s.EventDate = &start
		s.EventEndDate = d.End
		s.AllDay = d.IsAllDay
	}
	if l, ok := content.LocationOf(o); ok {
		s.Location = l.Address
	}
	if c, ok := content.CanvaOf(o); ok {
		s.CanvaDesignID = c.DesignID
		s.CanvaEditURL = c.EditURL
		s.CanvaExportURL = c.ExportURL
	}
	return s
}
