package ml

import (
	"encoding/json"
	"fmt"
	"sort"

	"autoprice/internal/common"
	"autoprice/internal/features"
)

// RankedFeature encodes on the wire as a [name, importance] pair.
type RankedFeature struct {
	Name       string
	Importance float64
}

func (r RankedFeature) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Name, r.Importance})
}

func (r *RankedFeature) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("ranked feature: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Name); err != nil {
		return fmt.Errorf("ranked feature name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.Importance); err != nil {
		return fmt.Errorf("ranked feature importance: %w", err)
	}
	return nil
}

type StatsReport struct {
	TrainScore  float64         `json:"train_score"`
	TestScore   float64         `json:"test_score"`
	TopFeatures []RankedFeature `json:"top_features"`
}

// OptionsReport maps each categorical column to its sorted distinct values.
type OptionsReport map[string][]string

// Stats returns the scores and the most important features, highest first.
func (s *Service) Stats() StatsReport {
	st := s.bundle.Stats()
	return StatsReport{
		TrainScore:  st.TrainScore,
		TestScore:   st.TestScore,
		TopFeatures: TopFeatures(st.FeatureImportance, s.bundle.order, common.TopFeatureCount),
	}
}

// TopFeatures sorts importances descending and keeps n. Equal importances keep
// the order in which the features appear in order; names outside order go last,
// alphabetically.
func TopFeatures(importance map[string]float64, order []string, n int) []RankedFeature {
	ranked := make([]RankedFeature, 0, len(importance))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if v, ok := importance[name]; ok && !seen[name] {
			ranked = append(ranked, RankedFeature{Name: name, Importance: v})
			seen[name] = true
		}
	}
	var extra []string
	for name := range importance {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		ranked = append(ranked, RankedFeature{Name: name, Importance: importance[name]})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})

	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Options lists the known values of every categorical attribute. Values come from
// the reference dataset when one is loaded, else from the encoder vocabularies.
func (s *Service) Options() OptionsReport {
	out := make(OptionsReport, len(features.CategoricalColumns()))
	for _, col := range features.CategoricalColumns() {
		if s.reference != nil {
			if values, ok := s.reference.Values(col); ok {
				out[col] = values
				continue
			}
		}
		out[col] = s.bundle.encoder.Vocabulary(col)
	}
	return out
}
