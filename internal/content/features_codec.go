package content

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feature payloads arrive from untrusted JSON and from documents written by
// older clients, so known keys are decoded weakly: numbers given as strings,
// dates as RFC3339 or plain dates. A payload that cannot be fully decoded
// keeps whatever fields did decode and is left for the validator to judge.

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

var timeType = reflect.TypeOf(time.Time{})

func timeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case primitive.DateTime:
		return v.Time().UTC(), nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unrecognised time %q", v)
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	}
	return data, nil
}

func newVariant(k FeatureKey) Feature {
	switch k {
	case FeatureDate:
		return &DateFeature{}
	case FeatureLocation:
		return &LocationFeature{}
	case FeatureTask:
		return &TaskFeature{}
	case FeatureCanva:
		return &CanvaFeature{}
	}
	return nil
}

// DecodeFeature turns a generic payload into the variant for k. Unknown keys
// yield an OpaqueFeature holding payload as-is.
func DecodeFeature(k FeatureKey, payload interface{}) (Feature, error) {
	payload = normalize(payload)
	f := newVariant(k)
	if f == nil {
		return &OpaqueFeature{Key: k, Payload: payload}, nil
	}
	m, ok := payload.(map[string]interface{})
	if !ok {
		return f, fmt.Errorf("feature %s: expected an object, got %T", k, payload)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timeHook,
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           f,
	})
	if err != nil {
		return f, err
	}
	if err := dec.Decode(m); err != nil {
		return f, fmt.Errorf("feature %s: %w", k, err)
	}
	return f, nil
}

// normalize converts BSON container types into plain Go maps and slices.
func normalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(vv))
		for _, e := range vv {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(vv))
		for k, x := range vv {
			m[k] = normalize(x)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, x := range vv {
			m[k] = normalize(x)
		}
		return m
	case primitive.A:
		out := make([]interface{}, len(vv))
		for i, x := range vv {
			out[i] = normalize(x)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, x := range vv {
			out[i] = normalize(x)
		}
		return out
	case primitive.DateTime:
		return vv.Time().UTC()
	}
	return v
}

func (fs Features) encodable() map[string]interface{} {
	out := make(map[string]interface{}, len(fs))
	for k, f := range fs {
		if f == nil {
			continue
		}
		if o, ok := f.(*OpaqueFeature); ok {
			out[string(k)] = o.Payload
			continue
		}
		out[string(k)] = f
	}
	return out
}

func (fs Features) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.encodable())
}

// UnmarshalJSON decodes every key; decode problems on known keys are not
// fatal so that the validator can report them as rule violations.
func (fs *Features) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*fs = nil
		return nil
	}
	out := make(Features, len(raw))
	for k, v := range raw {
		f, _ := DecodeFeature(FeatureKey(k), v)
		out[FeatureKey(k)] = f
	}
	*fs = out
	return nil
}

func (fs Features) MarshalBSON() ([]byte, error) {
	return bson.Marshal(fs.encodable())
}

func (fs *Features) UnmarshalBSON(data []byte) error {
	elems, err := bson.Raw(data).Elements()
	if err != nil {
		return err
	}
	out := make(Features, len(elems))
	for _, e := range elems {
		var v interface{}
		rv := e.Value()
		if rv.Type == bson.TypeEmbeddedDocument {
			var m bson.M
			if err := rv.Unmarshal(&m); err != nil {
				return fmt.Errorf("feature %s: %w", e.Key(), err)
			}
			v = m
		} else if err := rv.Unmarshal(&v); err != nil {
			return fmt.Errorf("feature %s: %w", e.Key(), err)
		}
		f, _ := DecodeFeature(FeatureKey(e.Key()), v)
		out[FeatureKey(e.Key())] = f
	}
	*fs = out
	return nil
}
