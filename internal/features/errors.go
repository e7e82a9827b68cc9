package features

import (
	"fmt"
	"strings"
)

// InvalidNumericError reports a numeric field that was present but not a number.
type InvalidNumericError struct {
	Attribute string
	Value     any
}

func (e *InvalidNumericError) Error() string {
	return fmt.Sprintf("invalid numeric value for %q: %s", e.Attribute, describe(e.Value))
}

// ValidationError collects every invalid field of one request.
type ValidationError struct {
	Fields []*InvalidNumericError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// Attributes returns the external names of the offending fields.
func (e *ValidationError) Attributes() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Attribute
	}
	return out
}

// MissingFeatureError means the model's feature order and the request schema
// disagree. It is raised while wiring a bundle, never per request.
type MissingFeatureError struct {
	Name   string
	Reason string
}

func (e *MissingFeatureError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing feature %q", e.Name)
	}
	return fmt.Sprintf("missing feature %q: %s", e.Name, e.Reason)
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v (%T)", t, t)
	}
}
