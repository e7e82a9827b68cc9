package features

import "sort"

// FallbackCode is substituted for categories that were not seen during training.
// It coincides with whatever class was assigned code 0 by the training encoder.
const FallbackCode = 0

type Outcome int

const (
	Encoded Outcome = iota
	FellBack
)

func (o Outcome) String() string {
	if o == FellBack {
		return "fell_back"
	}
	return "encoded"
}

// Encoding is the result of encoding one categorical value.
type Encoding struct {
	Code    int
	Outcome Outcome
}

// Encoder maps category strings to the integer codes used at training time.
// It is read-only after construction and safe for concurrent use.
type Encoder struct {
	codes map[string]map[string]int
}

// NewEncoder builds an encoder from per-attribute class lists. The position of a
// class in its list is its code, as with a label encoder's fitted classes.
func NewEncoder(classes map[string][]string) *Encoder {
	e := &Encoder{codes: make(map[string]map[string]int, len(classes))}
	for attr, list := range classes {
		m := make(map[string]int, len(list))
		for i, c := range list {
			if _, dup := m[c]; !dup {
				m[c] = i
			}
		}
		e.codes[attr] = m
	}
	return e
}

// Encode never fails: values (or attributes) unknown to the encoder yield
// FallbackCode with Outcome FellBack. The raw value is matched exactly, without
// case or whitespace normalisation.
func (e *Encoder) Encode(attribute, raw string) Encoding {
	if e == nil {
		return Encoding{Code: FallbackCode, Outcome: FellBack}
	}
	m, ok := e.codes[attribute]
	if !ok {
		return Encoding{Code: FallbackCode, Outcome: FellBack}
	}
	code, ok := m[raw]
	if !ok {
		return Encoding{Code: FallbackCode, Outcome: FellBack}
	}
	return Encoding{Code: code, Outcome: Encoded}
}

func (e *Encoder) Has(attribute string) bool {
	_, ok := e.codes[attribute]
	return ok
}

// Vocabulary returns the sorted, de-duplicated classes known for attribute.
func (e *Encoder) Vocabulary(attribute string) []string {
	m := e.codes[attribute]
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of distinct classes known for attribute.
func (e *Encoder) Size(attribute string) int {
	return len(e.codes[attribute])
}
