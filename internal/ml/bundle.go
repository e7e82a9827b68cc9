package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autoprice/internal/features"

	"github.com/rs/zerolog/log"
)

// Artifact file names inside a bundle directory.
const (
	ModelFile    = "model.json"
	EncodersFile = "label_encoders.json"
	ColumnsFile  = "feature_columns.json"
	StatsFile    = "model_stats.json"
)

// ModelStats is the training summary shipped with a bundle.
type ModelStats struct {
	TrainScore          float64            `json:"train_score"`
	TestScore           float64            `json:"test_score"`
	FeatureImportance   map[string]float64 `json:"feature_importance"`
	CategoricalFeatures []string           `json:"categorical_features,omitempty"`
	NumericFeatures     []string           `json:"numeric_features,omitempty"`
}

// Bundle is the immutable output of training. It is built once at startup and
// shared read-only by every request; nothing mutates it after NewBundle returns.
type Bundle struct {
	model     Regressor
	modelType string
	encoder   *features.Encoder
	order     []string
	stats     ModelStats
	builder   *features.Builder
	loadedAt  time.Time
}

// NewBundle validates the artifacts against each other and against the request
// schema. A feature order that does not match the schema exactly is rejected with
// a *features.MissingFeatureError.
func NewBundle(model Regressor, modelType string, encoders map[string][]string, order []string, stats ModelStats) (*Bundle, error) {
	if model == nil {
		return nil, fmt.Errorf("bundle: nil model")
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("bundle: empty feature order")
	}
	if n := model.NumFeatures(); n != len(order) {
		return nil, fmt.Errorf("bundle: model expects %d features, feature order has %d", n, len(order))
	}

	enc := features.NewEncoder(encoders)
	builder, err := features.NewBuilder(order, enc)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	importance := make(map[string]float64, len(stats.FeatureImportance))
	for k, v := range stats.FeatureImportance {
		importance[k] = v
	}
	stats.FeatureImportance = importance

	return &Bundle{
		model:     model,
		modelType: modelType,
		encoder:   enc,
		order:     append([]string(nil), order...),
		stats:     stats,
		builder:   builder,
		loadedAt:  time.Now(),
	}, nil
}

// LoadBundle reads the four artifact files from dir.
func LoadBundle(dir string) (*Bundle, error) {
	model, modelType, err := LoadModel(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", dir, err)
	}

	var encoders map[string][]string
	if err := readJSON(filepath.Join(dir, EncodersFile), &encoders); err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", dir, err)
	}

	var order []string
	if err := readJSON(filepath.Join(dir, ColumnsFile), &order); err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", dir, err)
	}

	var stats ModelStats
	if err := readJSON(filepath.Join(dir, StatsFile), &stats); err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", dir, err)
	}

	b, err := NewBundle(model, modelType, encoders, order, stats)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", dir, err)
	}

	log.Info().
		Str("bundle_dir", dir).
		Str("model_type", modelType).
		Int("features", len(order)).
		Float64("train_score", stats.TrainScore).
		Float64("test_score", stats.TestScore).
		Msg("artifact bundle loaded")

	return b, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FeatureOrder returns a copy of the model's column order.
func (b *Bundle) FeatureOrder() []string {
	return append([]string(nil), b.order...)
}

func (b *Bundle) ModelType() string { return b.modelType }

func (b *Bundle) Encoder() *features.Encoder { return b.encoder }

// Stats returns a copy of the training summary.
func (b *Bundle) Stats() ModelStats {
	s := b.stats
	s.FeatureImportance = make(map[string]float64, len(b.stats.FeatureImportance))
	for k, v := range b.stats.FeatureImportance {
		s.FeatureImportance[k] = v
	}
	return s
}

func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }
