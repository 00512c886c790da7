package content

import "time"

// FeatureKey identifies a structured payload attached to an Object.
type FeatureKey string

// The closed set of keys the registry understands. Any other key is carried
// as an OpaqueFeature.
const (
	FeatureDate     FeatureKey = "feat:date"
	FeatureLocation FeatureKey = "feat:location"
	FeatureTask     FeatureKey = "feat:task"
	FeatureCanva    FeatureKey = "integ:canva"
)

// KnownFeatureKeys lists the keys with a typed variant.
var KnownFeatureKeys = []FeatureKey{FeatureDate, FeatureLocation, FeatureTask, FeatureCanva}

// Known reports whether k has a typed variant.
func (k FeatureKey) Known() bool {
	switch k {
	case FeatureDate, FeatureLocation, FeatureTask, FeatureCanva:
		return true
	}
	return false
}

// Feature is implemented by every feature variant.
type Feature interface {
	FeatureKey() FeatureKey
	isFeature()
}

// DateFeature schedules an object (events, deadlines).
type DateFeature struct {
	Start    time.Time  `json:"start" bson:"start" validate:"required"`
	End      *time.Time `json:"end,omitempty" bson:"end,omitempty" validate:"omitempty,gtefield=Start"`
	IsAllDay bool       `json:"isAllDay" bson:"isAllDay"`
}

// GeoPoint is an optional coordinate for a location.
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// LocationFeature places an object.
type LocationFeature struct {
	Address string    `json:"address" bson:"address" validate:"required"`
	Name    string    `json:"name,omitempty" bson:"name,omitempty"`
	Geo     *GeoPoint `json:"geo,omitempty" bson:"geo,omitempty"`
}

// TaskFeature describes a volunteer or supply request.
type TaskFeature struct {
	Category string  `json:"category" bson:"category" validate:"required"`
	Qty      float64 `json:"qty" bson:"qty" validate:"gt=0"`
	Unit     string  `json:"unit" bson:"unit" validate:"required"`
	Status   string  `json:"status,omitempty" bson:"status,omitempty"`
}

// CanvaFeature links an external design.
type CanvaFeature struct {
	DesignID  string `json:"designId" bson:"designId" validate:"required"`
	EditURL   string `json:"editUrl" bson:"editUrl" validate:"required"`
	ExportURL string `json:"exportUrl,omitempty" bson:"exportUrl,omitempty"`
}

// OpaqueFeature preserves a payload under a key the registry does not know.
type OpaqueFeature struct {
	Key     FeatureKey
	Payload interface{}
}

func (*DateFeature) FeatureKey() FeatureKey     { return FeatureDate }
func (*LocationFeature) FeatureKey() FeatureKey { return FeatureLocation }
func (*TaskFeature) FeatureKey() FeatureKey     { return FeatureTask }
func (*CanvaFeature) FeatureKey() FeatureKey    { return FeatureCanva }
func (f *OpaqueFeature) FeatureKey() FeatureKey { return f.Key }

func (*DateFeature) isFeature()     {}
func (*LocationFeature) isFeature() {}
func (*TaskFeature) isFeature()     {}
func (*CanvaFeature) isFeature()    {}
func (*OpaqueFeature) isFeature()   {}

// Features maps keys to payloads. Several features may be present at once.
type Features map[FeatureKey]Feature

// Set stores f under its own key.
func (fs Features) Set(f Feature) {
	fs[f.FeatureKey()] = f
}

// Clone copies the map and every typed variant.
func (fs Features) Clone() Features {
	if fs == nil {
		return nil
	}
	out := make(Features, len(fs))
	for k, f := range fs {
		out[k] = cloneFeature(f)
	}
	return out
}

func cloneFeature(f Feature) Feature {
	switch v := f.(type) {
	case *DateFeature:
		c := *v
		if v.End != nil {
			e := *v.End
			c.End = &e
		}
		return &c
	case *LocationFeature:
		c := *v
		if v.Geo != nil {
			g := *v.Geo
			c.Geo = &g
		}
		return &c
	case *TaskFeature:
		c := *v
		return &c
	case *CanvaFeature:
		c := *v
		return &c
	case *OpaqueFeature:
		c := *v
		return &c
	}
	return f
}

// HasFeature reports whether o carries a payload under k.
// It always agrees with GetFeature.
func HasFeature(o *Object, k FeatureKey) bool {
	_, ok := GetFeature(o, k)
	return ok
}

// GetFeature returns the payload under k, if any.
func GetFeature(o *Object, k FeatureKey) (Feature, bool) {
	if o == nil || o.Features == nil {
		return nil, false
	}
	f, ok := o.Features[k]
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

func DateOf(o *Object) (*DateFeature, bool) {
	f, ok := GetFeature(o, FeatureDate)
	if !ok {
		return nil, false
	}
	d, ok := f.(*DateFeature)
	return d, ok
}

func LocationOf(o *Object) (*LocationFeature, bool) {
	f, ok := GetFeature(o, FeatureLocation)
	if !ok {
		return nil, false
	}
	l, ok := f.(*LocationFeature)
	return l, ok
}

func TaskOf(o *Object) (*TaskFeature, bool) {
	f, ok := GetFeature(o, FeatureTask)
	if !ok {
		return nil, false
	}
	t, ok := f.(*TaskFeature)
	return t, ok
}

func CanvaOf(o *Object) (*CanvaFeature, bool) {
	f, ok := GetFeature(o, FeatureCanva)
	if !ok {
		return nil, false
	}
	c, ok := f.(*CanvaFeature)
	return c, ok
}
