package artifact

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Supported classifier types.
const (
	TypeLogisticRegression = "logistic_regression"
	TypeDecisionTree       = "decision_tree"
)

// Classifier estimates the probability of the positive (churn) class for one
// encoded row.
type Classifier interface {
	Type() string
	PredictProba(row []float64) (float64, error)
}

// LogisticRegression is a binary linear model.
type LogisticRegression struct {
	coef      []float64
	intercept float64
}

func newLogisticRegression(coef []float64, intercept float64) *LogisticRegression {
	return &LogisticRegression{
		coef:      append([]float64(nil), coef...),
		intercept: intercept,
	}
}

// Type implements Classifier.
func (m *LogisticRegression) Type() string { return TypeLogisticRegression }

// PredictProba returns 1 / (1 + exp(-(w·x + b))). Terms are summed in column
// order so the result is reproducible bit for bit.
func (m *LogisticRegression) PredictProba(row []float64) (float64, error) {
	if len(row) != len(m.coef) {
		return 0, eris.Errorf("artifact: row has %d columns, model expects %d", len(row), len(m.coef))
	}
	z := 0.0
	for i, w := range m.coef {
		// The explicit conversion forbids fusing into an FMA.
		z += float64(w * row[i])
	}
	z += m.intercept
	return 1 / (1 + math.Exp(-z)), nil
}

// TreeNode is one node of a serialized decision tree. Leaves have Left and
// Right set to -1 and carry per-class sample counts in Value.
type TreeNode struct {
	Feature   int       `json:"feature" yaml:"feature"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Left      int       `json:"left" yaml:"left"`
	Right     int       `json:"right" yaml:"right"`
	Value     []float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

func (n TreeNode) leaf() bool { return n.Left < 0 && n.Right < 0 }

// DecisionTree is a binary classification tree stored in pre-order.
type DecisionTree struct {
	nodes []TreeNode
}

// newDecisionTree checks that every split references a real column and that
// children come after their parent, which rules out cycles.
func newDecisionTree(nodes []TreeNode, features int) (*DecisionTree, string) {
	if len(nodes) == 0 {
		return nil, "decision tree has no nodes"
	}
	for i, n := range nodes {
		if n.leaf() {
			if len(n.Value) != 2 {
				return nil, fmt.Sprintf("leaf %d has %d class counts, want 2", i, len(n.Value))
			}
			if n.Value[0] < 0 || n.Value[1] < 0 || n.Value[0]+n.Value[1] <= 0 {
				return nil, fmt.Sprintf("leaf %d has invalid class counts", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return nil, fmt.Sprintf("node %d splits on feature %d, vectorizer has %d", i, n.Feature, features)
		}
		if n.Left <= i || n.Left >= len(nodes) || n.Right <= i || n.Right >= len(nodes) {
			return nil, fmt.Sprintf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return &DecisionTree{nodes: append([]TreeNode(nil), nodes...)}, ""
}

// Type implements Classifier.
func (m *DecisionTree) Type() string { return TypeDecisionTree }

// PredictProba walks from the root, going left when x[feature] <= threshold,
// and returns the churn fraction of the reached leaf.
func (m *DecisionTree) PredictProba(row []float64) (float64, error) {
	idx := 0
	for {
		node := m.nodes[idx]
		if node.leaf() {
			return node.Value[1] / (node.Value[0] + node.Value[1]), nil
		}
		if node.Feature >= len(row) {
			return 0, eris.Errorf("artifact: row has %d columns, tree splits on %d", len(row), node.Feature)
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
