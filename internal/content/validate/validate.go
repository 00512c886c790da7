// Package validate checks candidate content against the business rules.
//
// Validation is batch: every violated rule is reported in one Result so the
// submitter can fix everything at once.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gogotex/newsdesk/internal/content"
)

const (
	TitleMaxLength       = 200
	DescriptionMaxLength = 10000
)

// Result is the outcome of a validation run.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Err converts an invalid result into a *content.ValidationError.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &content.ValidationError{Errors: append([]string(nil), r.Errors...)}
}

type submission struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"required,max=10000"`
}

// messages maps "<Struct>.<Field>.<tag>" to the user-facing message.
var messages = map[string]string{
	"submission.Title.required":        "Title is required",
	"submission.Title.max":             fmt.Sprintf("Title cannot exceed %d characters", TitleMaxLength),
	"submission.Description.required":  "Description is required",
	"submission.Description.max":       fmt.Sprintf("Description cannot exceed %d characters", DescriptionMaxLength),
	"DateFeature.Start.required":       "Event start date is required",
	"DateFeature.End.gtefield":         "End time cannot precede start time",
	"TaskFeature.Category.required":    "Task category is required",
	"TaskFeature.Qty.gt":               "Task quantity must be greater than zero",
	"TaskFeature.Unit.required":        "Task unit is required",
	"LocationFeature.Address.required": "Location address is required",
	"CanvaFeature.DesignID.required":   "Canva design ID is required",
	"CanvaFeature.EditURL.required":    "Canva edit URL is required",
}

// Validator is stateless apart from its cached rule set and safe for
// concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate checks title, description and every known feature. Unknown
// feature keys pass through untouched.
func (val *Validator) Validate(title, description string, features content.Features) Result {
	var errs []string
	errs = append(errs, val.check(submission{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	})...)

	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := features[content.FeatureKey(k)]
		if f == nil || !content.FeatureKey(k).Known() {
			continue
		}
		errs = append(errs, val.check(trimmed(f))...)
	}
	return Result{IsValid: len(errs) == 0, Errors: nonNil(errs)}
}

// ValidateTags reports tags that lack the namespace:value form.
func ValidateTags(tags []string) []string {
	var errs []string
	for _, t := range tags {
		if _, ok := content.ParseTag(t); !ok {
			errs = append(errs, fmt.Sprintf("Tag %q must use the namespace:value form", t))
		}
	}
	return errs
}

func (val *Validator) check(s interface{}) []string {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.StructNamespace() + "." + fe.Tag()
		if msg, ok := messages[key]; ok {
			out = append(out, msg)
			continue
		}
		out = append(out, fmt.Sprintf("%s failed rule %s", fe.Field(), fe.Tag()))
	}
	return out
}

// trimmed returns a copy of f with required text fields trimmed, so that
// whitespace-only values count as empty.
func trimmed(f content.Feature) interface{} {
	switch v := f.(type) {
	case *content.DateFeature:
		c := *v
		return c
	case *content.LocationFeature:
		c := *v
		c.Address = strings.TrimSpace(c.Address)
		return c
	case *content.TaskFeature:
		c := *v
		c.Category = strings.TrimSpace(c.Category)
		c.Unit = strings.TrimSpace(c.Unit)
		return c
	case *content.CanvaFeature:
		c := *v
		c.DesignID = strings.TrimSpace(c.DesignID)
		c.EditURL = strings.TrimSpace(c.EditURL)
		return c
	}
	return f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
