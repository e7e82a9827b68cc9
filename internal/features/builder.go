package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Payload is one decoded request: external field name to raw JSON value.
// Decode with json.Decoder.UseNumber so numbers arrive as json.Number.
type Payload map[string]any

// Vector is an ordered model input aligned to the bundle's feature order.
type Vector struct {
	Values    []float64
	Fallbacks []string // categorical columns that fell back to FallbackCode
}

// Builder projects payloads onto a fixed feature order. The projection plan is
// computed once, so a misaligned order is rejected before any request is served.
type Builder struct {
	encoder *Encoder
	order   []string
	plan    []Field
}

// NewBuilder checks that order and Schema contain exactly the same columns and
// that every categorical column has an encoder.
func NewBuilder(order []string, encoder *Encoder) (*Builder, error) {
	if encoder == nil {
		return nil, fmt.Errorf("features: nil encoder")
	}

	seen := make(map[string]bool, len(order))
	plan := make([]Field, len(order))
	for i, col := range order {
		if seen[col] {
			return nil, &MissingFeatureError{Name: col, Reason: "duplicated in feature order"}
		}
		seen[col] = true

		f, ok := FieldByColumn(col)
		if !ok {
			return nil, &MissingFeatureError{Name: col, Reason: "no request field populates it"}
		}
		if f.Kind == Categorical && !encoder.Has(col) {
			return nil, &MissingFeatureError{Name: col, Reason: "no encoder for categorical column"}
		}
		plan[i] = f
	}
	for _, f := range Schema {
		if !seen[f.Column] {
			return nil, &MissingFeatureError{Name: f.Column, Reason: "absent from feature order"}
		}
	}

	return &Builder{
		encoder: encoder,
		order:   append([]string(nil), order...),
		plan:    plan,
	}, nil
}

// Order returns a copy of the feature order the builder projects onto.
func (b *Builder) Order() []string {
	return append([]string(nil), b.order...)
}

// Build is a pure function of the payload. Absent fields take their schema
// default. A present null is a value like any other: it is an invalid number
// or an unseen category. Every numeric field that cannot be read as a number
// is reported in a single *ValidationError.
func (b *Builder) Build(p Payload) (Vector, error) {
	values := make([]float64, len(b.plan))
	var fallbacks []string
	var invalid []*InvalidNumericError

	for i, f := range b.plan {
		raw, present := p[f.Name]

		switch f.Kind {
		case Numeric:
			if !present {
				values[i] = f.DefaultNum
				continue
			}
			v, ok := toFloat(raw)
			if !ok {
				invalid = append(invalid, &InvalidNumericError{Attribute: f.Name, Value: raw})
				continue
			}
			values[i] = v

		case Categorical:
			text := f.DefaultText
			if present {
				text = toText(raw)
			}
			enc := b.encoder.Encode(f.Column, text)
			if enc.Outcome == FellBack {
				fallbacks = append(fallbacks, f.Column)
			}
			values[i] = float64(enc.Code)
		}
	}

	if len(invalid) > 0 {
		return Vector{}, &ValidationError{Fields: invalid}
	}
	return Vector{Values: values, Fallbacks: fallbacks}, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
