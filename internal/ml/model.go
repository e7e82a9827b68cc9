package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model types understood by LoadModel.
const (
	ModelRandomForest = "random_forest"
	ModelDecisionTree = "decision_tree"
	ModelLinear       = "linear"
)

// Regressor maps one feature row to a scalar prediction.
type Regressor interface {
	Predict(row []float64) (float64, error)
	NumFeatures() int
}

// TreeNode is one node of a flattened regression tree. Node 0 is the root and
// children always sit at higher indices than their parent.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	Left       int     `json:"left"`
	Right      int     `json:"right"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

type DecisionTree struct {
	nFeatures int
	nodes     []TreeNode
}

func NewDecisionTree(nFeatures int, nodes []TreeNode) (*DecisionTree, error) {
	if nFeatures <= 0 {
		return nil, fmt.Errorf("tree: n_features must be positive, got %d", nFeatures)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("tree: no nodes")
	}
	for i, n := range nodes {
		if n.IsLeaf {
			continue
		}
		if n.FeatureIdx < 0 || n.FeatureIdx >= nFeatures {
			return nil, fmt.Errorf("tree: node %d splits on feature %d, model has %d", i, n.FeatureIdx, nFeatures)
		}
		if n.Left <= i || n.Left >= len(nodes) || n.Right <= i || n.Right >= len(nodes) {
			return nil, fmt.Errorf("tree: node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return &DecisionTree{nFeatures: nFeatures, nodes: nodes}, nil
}

func (dt *DecisionTree) NumFeatures() int { return dt.nFeatures }

func (dt *DecisionTree) Predict(row []float64) (float64, error) {
	if len(row) != dt.nFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", dt.nFeatures, len(row))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Forest averages the predictions of its trees.
type Forest struct {
	nFeatures int
	trees     []*DecisionTree
}

func NewForest(nFeatures int, trees [][]TreeNode) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest: no trees")
	}
	f := &Forest{nFeatures: nFeatures, trees: make([]*DecisionTree, len(trees))}
	for i, nodes := range trees {
		dt, err := NewDecisionTree(nFeatures, nodes)
		if err != nil {
			return nil, fmt.Errorf("forest: tree %d: %w", i, err)
		}
		f.trees[i] = dt
	}
	return f, nil
}

func (f *Forest) NumFeatures() int { return f.nFeatures }

func (f *Forest) Predict(row []float64) (float64, error) {
	var sum float64
	for i, dt := range f.trees {
		v, err := dt.Predict(row)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.trees)), nil
}

type Linear struct {
	coefficients []float64
	intercept    float64
}

func NewLinear(coefficients []float64, intercept float64) (*Linear, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("linear: no coefficients")
	}
	return &Linear{coefficients: append([]float64(nil), coefficients...), intercept: intercept}, nil
}

func (l *Linear) NumFeatures() int { return len(l.coefficients) }

func (l *Linear) Predict(row []float64) (float64, error) {
	if len(row) != len(l.coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(l.coefficients), len(row))
	}
	y := l.intercept
	for i, c := range l.coefficients {
		y += c * row[i]
	}
	return y, nil
}

// modelFile is the on-disk JSON form of every supported model type.
type modelFile struct {
	Type         string       `json:"type"`
	NFeatures    int          `json:"n_features"`
	Nodes        []TreeNode   `json:"nodes,omitempty"`
	Trees        [][]TreeNode `json:"trees,omitempty"`
	Coefficients []float64    `json:"coefficients,omitempty"`
	Intercept    float64      `json:"intercept,omitempty"`
}

// LoadModel reads a model file and returns the regressor and its type.
func LoadModel(path string) (Regressor, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read model: %w", err)
	}
	return decodeModel(data)
}

func decodeModel(data []byte) (Regressor, string, error) {
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, "", fmt.Errorf("decode model: %w", err)
	}

	var (
		model Regressor
		err   error
	)
	switch mf.Type {
	case ModelRandomForest:
		model, err = NewForest(mf.NFeatures, mf.Trees)
	case ModelDecisionTree:
		model, err = NewDecisionTree(mf.NFeatures, mf.Nodes)
	case ModelLinear:
		model, err = NewLinear(mf.Coefficients, mf.Intercept)
		if err == nil && mf.NFeatures != 0 && mf.NFeatures != len(mf.Coefficients) {
			err = fmt.Errorf("linear: n_features %d but %d coefficients", mf.NFeatures, len(mf.Coefficients))
		}
	default:
		return nil, "", fmt.Errorf("unsupported model type %q", mf.Type)
	}
	if err != nil {
		return nil, "", err
	}
	return model, mf.Type, nil
}
