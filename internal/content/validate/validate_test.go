package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/stretchr/testify/require"
)

func TestValidate_TitleAndDescription(t *testing.T) {
	v := New()

	res := v.Validate("Bake sale", "Saturday at the hall", nil)
	require.True(t, res.IsValid)
	require.Empty(t, res.Errors)
	require.NotNil(t, res.Errors)
	require.NoError(t, res.Err())

	res = v.Validate("", "", nil)
	require.False(t, res.IsValid)
	require.Equal(t, []string{"Title is required", "Description is required"}, res.Errors)

	res = v.Validate("   ", "\t\n", nil)
	require.Equal(t, []string{"Title is required", "Description is required"}, res.Errors)

	res = v.Validate(strings.Repeat("A", 201), "ok", nil)
	require.Equal(t, []string{"Title cannot exceed 200 characters"}, res.Errors)

	res = v.Validate(strings.Repeat("A", 200), strings.Repeat("d", 10001), nil)
	require.Equal(t, []string{"Description cannot exceed 10000 characters"}, res.Errors)

	// limits are in characters, not bytes
	res = v.Validate(strings.Repeat("é", 200), "ok", nil)
	require.True(t, res.IsValid)
}

func TestValidate_DateFeature(t *testing.T) {
	v := New()
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	after := start.Add(time.Hour)

	fs := content.Features{}
	fs.Set(&content.DateFeature{Start: start, End: &after})
	require.True(t, v.Validate("t", "d", fs).IsValid)

	fs.Set(&content.DateFeature{Start: start, End: &start})
	require.True(t, v.Validate("t", "d", fs).IsValid, "end equal to start is allowed")

	fs.Set(&content.DateFeature{Start: start, End: &before})
	require.Equal(t, []string{"End time cannot precede start time"}, v.Validate("t", "d", fs).Errors)

	fs.Set(&content.DateFeature{})
	require.Equal(t, []string{"Event start date is required"}, v.Validate("t", "d", fs).Errors)
}

func TestValidate_TaskLocationCanva(t *testing.T) {
	v := New()
	fs := content.Features{}
	fs.Set(&content.TaskFeature{Category: " ", Qty: 0, Unit: ""})
	fs.Set(&content.LocationFeature{Address: "  "})
	fs.Set(&content.CanvaFeature{})

	res := v.Validate("", "d", fs)
	require.False(t, res.IsValid)
	require.ElementsMatch(t, []string{
		"Title is required",
		"Task category is required",
		"Task quantity must be greater than zero",
		"Task unit is required",
		"Location address is required",
		"Canva design ID is required",
		"Canva edit URL is required",
	}, res.Errors)
	require.Equal(t, "Title is required", res.Errors[0])

	fs = content.Features{}
	fs.Set(&content.TaskFeature{Category: "food", Qty: -2, Unit: "kg"})
	require.Equal(t, []string{"Task quantity must be greater than zero"}, v.Validate("t", "d", fs).Errors)

	fs.Set(&content.TaskFeature{Category: "food", Qty: 0.5, Unit: "kg"})
	fs.Set(&content.CanvaFeature{DesignID: "DAF1", EditURL: "https://canva.com/design/DAF1/edit"})
	require.True(t, v.Validate("t", "d", fs).IsValid)
}

func TestValidate_UnknownFeaturesPass(t *testing.T) {
	v := New()
	fs := content.Features{
		"integ:figma": &content.OpaqueFeature{Key: "integ:figma", Payload: map[string]interface{}{"x": 1}},
		"feat:date":   nil,
	}
	require.True(t, v.Validate("t", "d", fs).IsValid)
}

func TestResult_Err(t *testing.T) {
	res := New().Validate("", "d", nil)
	err := res.Err()
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"Title is required"}, verr.Errors)
}

func TestValidateTags(t *testing.T) {
	require.Empty(t, ValidateTags([]string{"content-type:event", "category:food", "x:"}))
	errs := ValidateTags([]string{"nocolon", ":empty-ns", "ok:yes"})
	require.Equal(t, []string{
		`Tag "nocolon" must use the namespace:value form`,
		`Tag ":empty-ns" must use the namespace:value form`,
	}, errs)
}
