// Package features turns loosely typed pricing requests into the ordered numeric
// vector a trained regression model expects.
//
// The request schema declares every accepted field once: its external snake_case
// name, the model column it feeds, its kind and the default substituted when the
// field is absent from the request.
package features

type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Field describes one request attribute.
type Field struct {
	Name        string // external request key
	Column      string // model column name
	Kind        Kind
	DefaultNum  float64
	DefaultText string
}

// Schema is the Default Table: 17 numeric and 8 categorical attributes.
var Schema = []Field{
	{Name: "symboling", Column: "symboling", Kind: Numeric, DefaultNum: 0},
	{Name: "normalized_losses", Column: "normalized-losses", Kind: Numeric, DefaultNum: 120},
	{Name: "wheel_base", Column: "wheel-base", Kind: Numeric, DefaultNum: 98.8},
	{Name: "length", Column: "length", Kind: Numeric, DefaultNum: 174.0},
	{Name: "width", Column: "width", Kind: Numeric, DefaultNum: 65.9},
	{Name: "height", Column: "height", Kind: Numeric, DefaultNum: 53.7},
	{Name: "curb_weight", Column: "curb-weight", Kind: Numeric, DefaultNum: 2555},
	{Name: "engine_size", Column: "engine-size", Kind: Numeric, DefaultNum: 127},
	{Name: "bore", Column: "bore", Kind: Numeric, DefaultNum: 3.33},
	{Name: "stroke", Column: "stroke", Kind: Numeric, DefaultNum: 3.25},
	{Name: "compression_ratio", Column: "compression-ratio", Kind: Numeric, DefaultNum: 10.0},
	{Name: "horsepower", Column: "horsepower", Kind: Numeric, DefaultNum: 104},
	{Name: "peak_rpm", Column: "peak-rpm", Kind: Numeric, DefaultNum: 5125},
	{Name: "city_mpg", Column: "city-mpg", Kind: Numeric, DefaultNum: 25},
	{Name: "highway_mpg", Column: "highway-mpg", Kind: Numeric, DefaultNum: 31},
	{Name: "num_of_doors", Column: "num-of-doors", Kind: Numeric, DefaultNum: 4},
	{Name: "num_of_cylinders", Column: "num-of-cylinders", Kind: Numeric, DefaultNum: 4},

	{Name: "make", Column: "make", Kind: Categorical, DefaultText: "toyota"},
	{Name: "fuel_type", Column: "fuel-type", Kind: Categorical, DefaultText: "gas"},
	{Name: "aspiration", Column: "aspiration", Kind: Categorical, DefaultText: "std"},
	{Name: "body_style", Column: "body-style", Kind: Categorical, DefaultText: "sedan"},
	{Name: "drive_wheels", Column: "drive-wheels", Kind: Categorical, DefaultText: "fwd"},
	{Name: "engine_location", Column: "engine-location", Kind: Categorical, DefaultText: "front"},
	{Name: "engine_type", Column: "engine-type", Kind: Categorical, DefaultText: "ohc"},
	{Name: "fuel_system", Column: "fuel-system", Kind: Categorical, DefaultText: "mpfi"},
}

// Columns returns the model column names in schema order.
func Columns() []string {
	out := make([]string, len(Schema))
	for i, f := range Schema {
		out[i] = f.Column
	}
	return out
}

// CategoricalColumns returns the model column names of the categorical attributes.
func CategoricalColumns() []string {
	var out []string
	for _, f := range Schema {
		if f.Kind == Categorical {
			out = append(out, f.Column)
		}
	}
	return out
}

// FieldByColumn looks up a schema entry by model column name.
func FieldByColumn(column string) (Field, bool) {
	for _, f := range Schema {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}
