// Package sanitize strips or limits markup in untrusted text fields.
//
// Every write path runs user text through a Sanitizer before validation. The
// sanitizer never fails: it always returns a string, and running it twice
// gives the same result as running it once. Content keeps a safe HTML subset;
// the other policies return plain, unescaped text. When it has to change a
// payload beyond whitespace or entity encoding it raises a security audit
// signal.
package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gogotex/newsdesk/pkg/logger"
	"github.com/gogotex/newsdesk/pkg/metrics"
	"github.com/microcosm-cc/bluemonday"
)

// Policy names a sanitization rule set.
type Policy string

const (
	Title    Policy = "title"
	Content  Policy = "content"
	Metadata Policy = "metadata"
	Location Policy = "location"
)

// DefaultTitleMax caps sanitized titles. Must stay above
// validate.TitleMaxLength.
const DefaultTitleMax = 500

// AuditFunc receives a notification whenever input was altered.
type AuditFunc func(policy Policy, input, output string)

// Sanitizer holds compiled policies. It is safe for concurrent use.
type Sanitizer struct {
	strict   *bluemonday.Policy
	content  *bluemonday.Policy
	titleMax int
	audit    AuditFunc
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithTitleMax overrides the title length cap (in runes).
func WithTitleMax(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.titleMax = n
		}
	}
}

// WithAudit installs an extra audit receiver next to the log and metric.
func WithAudit(fn AuditFunc) Option {
	return func(s *Sanitizer) { s.audit = fn }
}

// New builds a Sanitizer with the standard policies.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		strict:   bluemonday.StrictPolicy(),
		content:  contentPolicy(),
		titleMax: DefaultTitleMax,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func contentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "em", "i", "strong", "b", "u", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return p
}

// Sanitize applies policy to text. Unknown policies fall back to stripping
// all markup.
func (s *Sanitizer) Sanitize(text string, policy Policy) string {
	var out string
	switch policy {
	case Content:
		out = strings.TrimSpace(s.content.Sanitize(text))
	case Title:
		out = s.plain(text, s.titleMax)
	default:
		out = s.plain(text, 0)
	}
	if altered(text, out) {
		s.report(policy, text, out)
	}
	return out
}

// maxPasses bounds plain for pathologically nested encodings.
const maxPasses = 16

// plain strips markup and decodes entities until nothing changes, so
// "&lt;b&gt;" cannot turn into a tag on a later pass.
func (s *Sanitizer) plain(text string, max int) string {
	cur := text
	for i := 0; i < maxPasses; i++ {
		next := truncate(strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(cur))), max)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

// SanitizeAll applies policy to each element, keeping order.
func (s *Sanitizer) SanitizeAll(texts []string, policy Policy) []string {
	if texts == nil {
		return nil
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = s.Sanitize(t, policy)
	}
	return out
}

// altered ignores differences that are only surrounding whitespace or
// entity encoding.
func altered(in, out string) bool {
	return html.UnescapeString(strings.TrimSpace(in)) != html.UnescapeString(out)
}

func (s *Sanitizer) report(policy Policy, in, out string) {
	metrics.SanitizerAltered.WithLabelValues(string(policy)).Inc()
	logger.Audit("sanitizer_altered", map[string]interface{}{
		"policy":    string(policy),
		"inputLen":  len(in),
		"outputLen": len(out),
	})
	if s.audit != nil {
		s.audit(policy, in, out)
	}
}

// truncate cuts s to at most max runes. max <= 0 means no limit.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}
