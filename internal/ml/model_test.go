package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stump splits feature 0 at 10: left leaf 1, right leaf 2.
func stump(left, right float64) []TreeNode {
	return []TreeNode{
		{FeatureIdx: 0, Threshold: 10, Left: 1, Right: 2},
		{IsLeaf: true, Value: left},
		{IsLeaf: true, Value: right},
	}
}

func TestDecisionTree_Predict(t *testing.T) {
	dt, err := NewDecisionTree(2, stump(100, 200))
	require.NoError(t, err)

	tests := []struct {
		row  []float64
		want float64
	}{
		{[]float64{5, 0}, 100},
		{[]float64{10, 0}, 100}, // threshold goes left
		{[]float64{10.5, 0}, 200},
	}
	for _, tt := range tests {
		got, err := dt.Predict(tt.row)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "row %v", tt.row)
	}

	_, err = dt.Predict([]float64{1})
	assert.Error(t, err)
}

func TestNewDecisionTree_Validation(t *testing.T) {
	tests := []struct {
		name  string
		nodes []TreeNode
	}{
		{"empty", nil},
		{"feature out of range", []TreeNode{{FeatureIdx: 5, Left: 1, Right: 2}, {IsLeaf: true}, {IsLeaf: true}}},
		{"child points backwards", []TreeNode{{FeatureIdx: 0, Left: 0, Right: 1}, {IsLeaf: true}}},
		{"child out of range", []TreeNode{{FeatureIdx: 0, Left: 1, Right: 9}, {IsLeaf: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecisionTree(2, tt.nodes)
			assert.Error(t, err)
		})
	}

	_, err := NewDecisionTree(0, stump(1, 2))
	assert.Error(t, err)
}

func TestForest_AveragesTrees(t *testing.T) {
	f, err := NewForest(1, [][]TreeNode{stump(100, 200), stump(300, 400)})
	require.NoError(t, err)
	assert.Equal(t, 1, f.NumFeatures())

	got, err := f.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 200.0, got)

	got, err = f.Predict([]float64{11})
	require.NoError(t, err)
	assert.Equal(t, 300.0, got)

	_, err = NewForest(1, nil)
	assert.Error(t, err)
}

func TestLinear_Predict(t *testing.T) {
	l, err := NewLinear([]float64{2, -1}, 10)
	require.NoError(t, err)

	got, err := l.Predict([]float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)

	_, err = l.Predict([]float64{3})
	assert.Error(t, err)

	_, err = NewLinear(nil, 1)
	assert.Error(t, err)
}

func TestDecodeModel(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType string
		wantErr  bool
	}{
		{
			name:     "random forest",
			data:     `{"type":"random_forest","n_features":1,"trees":[[{"feature_idx":0,"threshold":1,"left":1,"right":2},{"is_leaf":true,"value":1},{"is_leaf":true,"value":2}]]}`,
			wantType: ModelRandomForest,
		},
		{
			name:     "decision tree",
			data:     `{"type":"decision_tree","n_features":1,"nodes":[{"is_leaf":true,"value":7}]}`,
			wantType: ModelDecisionTree,
		},
		{
			name:     "linear",
			data:     `{"type":"linear","n_features":2,"coefficients":[1,2],"intercept":3}`,
			wantType: ModelLinear,
		},
		{name: "linear width mismatch", data: `{"type":"linear","n_features":3,"coefficients":[1,2]}`, wantErr: true},
		{name: "unknown type", data: `{"type":"xgboost"}`, wantErr: true},
		{name: "malformed", data: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, typ, err := decodeModel([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)
			assert.NotNil(t, model)
		})
	}
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, _, err := LoadModel(filepath.Join(t.TempDir(), ModelFile))
	assert.Error(t, err)
}

func TestLoadModel_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), ModelFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"decision_tree","n_features":1,"nodes":[{"is_leaf":true,"value":42}]}`), 0o644))

	model, typ, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, ModelDecisionTree, typ)

	got, err := model.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}
