package content

import "strings"

// Well-known tag namespaces and values.
const (
	NamespaceContentType = "content-type"
	NamespaceCategory    = "category"
	NamespaceNewsletter  = "newsletter"
	NamespaceFeatured    = "featured"

	TagNewsletterReady = "newsletter:ready"
)

// Content types used by the typed create helpers.
const (
	TypeArticle      = "article"
	TypeEvent        = "event"
	TypeClassified   = "classified"
	TypeTask         = "task"
	TypeAnnouncement = "announcement"
)

// Tag is a parsed namespace:value classifier.
type Tag struct {
	Namespace string
	Value     string
}

func (t Tag) String() string { return t.Namespace + ":" + t.Value }

// ParseTag splits raw on its first ':'. Namespaces are not checked against an
// allow-list; ok is false only when there is no separator or the namespace is
// empty.
func ParseTag(raw string) (Tag, bool) {
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return Tag{Value: raw}, false
	}
	return Tag{Namespace: raw[:i], Value: raw[i+1:]}, true
}

// MakeTag builds the raw form of a namespaced tag.
func MakeTag(namespace, value string) string { return namespace + ":" + value }

// HasTag reports an exact, case-sensitive match against o.Tags.
func HasTag(o *Object, tag string) bool {
	if o == nil {
		return false
	}
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagsByNamespace returns the values of every tag in namespace ns, in their
// original order and with duplicates kept. It never returns nil.
func TagsByNamespace(o *Object, ns string) []string {
	out := []string{}
	if o == nil {
		return out
	}
	for _, raw := range o.Tags {
		if t, ok := ParseTag(raw); ok && t.Namespace == ns {
			out = append(out, t.Value)
		}
	}
	return out
}

// ContentType is the value of the first content-type tag.
func ContentType(o *Object) (string, bool) {
	if o == nil {
		return "", false
	}
	for _, raw := range o.Tags {
		if t, ok := ParseTag(raw); ok && t.Namespace == NamespaceContentType {
			return t.Value, true
		}
	}
	return "", false
}

// WithTag returns tags with tag appended unless already present.
func WithTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return append([]string(nil), tags...)
		}
	}
	return append(append([]string(nil), tags...), tag)
}

// WithoutTag returns tags with every occurrence of tag removed, order kept.
func WithoutTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
