package ml

import (
	"encoding/json"
	"strings"
	"testing"

	"autoprice/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopFeatures_SortsAndTruncates(t *testing.T) {
	importance := map[string]float64{}
	order := features.Columns()
	for i, col := range order {
		importance[col] = float64(i)
	}

	top := TopFeatures(importance, order, 10)
	require.Len(t, top, 10)
	assert.Equal(t, order[len(order)-1], top[0].Name)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Importance, top[i].Importance)
	}
}

func TestTopFeatures_TiesFollowFeatureOrder(t *testing.T) {
	importance := map[string]float64{"width": 0.2, "length": 0.2, "height": 0.2, "bore": 0.5}
	order := []string{"height", "bore", "width", "length"}

	top := TopFeatures(importance, order, 10)

	names := make([]string, len(top))
	for i, r := range top {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"bore", "height", "width", "length"}, names)
}

func TestTopFeatures_UnknownNamesGoLast(t *testing.T) {
	importance := map[string]float64{"zeta": 0.1, "alpha": 0.1, "width": 0.1}

	top := TopFeatures(importance, []string{"width"}, 10)

	require.Len(t, top, 3)
	assert.Equal(t, "width", top[0].Name)
	assert.Equal(t, "alpha", top[1].Name)
	assert.Equal(t, "zeta", top[2].Name)
}

func TestTopFeatures_FewerThanN(t *testing.T) {
	top := TopFeatures(map[string]float64{"bore": 1}, []string{"bore"}, 10)
	assert.Len(t, top, 1)

	assert.Empty(t, TopFeatures(nil, nil, 10))
}

func TestRankedFeature_JSONPair(t *testing.T) {
	data, err := json.Marshal(RankedFeature{Name: "engine-size", Importance: 0.6})
	require.NoError(t, err)
	assert.JSONEq(t, `["engine-size",0.6]`, string(data))

	var r RankedFeature
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, RankedFeature{Name: "engine-size", Importance: 0.6}, r)

	assert.Error(t, json.Unmarshal([]byte(`["only-name"]`), &r))
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &r))
}

func TestService_Stats(t *testing.T) {
	svc, _ := newTestService(t, 0)

	stats := svc.Stats()

	assert.Equal(t, 0.98, stats.TrainScore)
	assert.Equal(t, 0.91, stats.TestScore)
	require.Len(t, stats.TopFeatures, 5)
	assert.Equal(t, "engine-size", stats.TopFeatures[0].Name)
	assert.Equal(t, "curb-weight", stats.TopFeatures[1].Name)
	// width precedes make in the feature order
	assert.Equal(t, "width", stats.TopFeatures[3].Name)
	assert.Equal(t, "make", stats.TopFeatures[4].Name)

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"train_score":0.98,"test_score":0.91,"top_features":[["engine-size",0.6]`))
}

func TestService_OptionsFromEncoders(t *testing.T) {
	svc, _ := newTestService(t, 0)

	opts := svc.Options()

	assert.Len(t, opts, 8)
	assert.Equal(t, []string{"audi", "bmw", "toyota", "volvo"}, opts["make"])
	assert.Equal(t, []string{"diesel", "gas"}, opts["fuel-type"])
}

func TestService_OptionsFromReference(t *testing.T) {
	csv := "make,fuel-type,price\nvolvo,gas,1\nalfa-romero,gas,2\nvolvo,diesel,3\n"
	ref, err := ReadReference(strings.NewReader(csv), []string{"make", "fuel-type"})
	require.NoError(t, err)

	svc, err := NewService(linearTestBundle(t), ref, nil, ServiceConfig{})
	require.NoError(t, err)

	opts := svc.Options()
	assert.Equal(t, []string{"alfa-romero", "volvo"}, opts["make"])
	assert.Equal(t, []string{"diesel", "gas"}, opts["fuel-type"])
	// columns absent from the reference fall back to the encoder
	assert.Equal(t, []string{"std", "turbo"}, opts["aspiration"])
}
