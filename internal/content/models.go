package content

import "time"

// Object is the single persistent unit for every kind of community content.
// Articles, events, classifieds, tasks and announcements differ only in their
// tags and the feature payloads they carry.
type Object struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	AuthorID    string     `json:"authorId" bson:"authorId"`
	AuthorName  string     `json:"authorName" bson:"authorName"`
	Tags        []string   `json:"tags" bson:"tags"`
	Features    Features   `json:"features,omitempty" bson:"features,omitempty"`
	Status      Status     `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" bson:"publishedAt,omitempty"`
}

// Clone returns a deep copy so callers can mutate tags and features freely.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Tags != nil {
		c.Tags = append([]string(nil), o.Tags...)
	}
	c.Features = o.Features.Clone()
	if o.PublishedAt != nil {
		p := *o.PublishedAt
		c.PublishedAt = &p
	}
	return &c
}

// Actor is the authenticated identity behind a write.
type Actor struct {
	UID         string   `json:"uid"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles,omitempty"`
}

const RoleAdmin = "admin"

// HasRole reports whether the actor carries role r.
func (a Actor) HasRole(r string) bool {
	for _, x := range a.Roles {
		if x == r {
			return true
		}
	}
	return false
}
