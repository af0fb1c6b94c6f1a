// Package model loads and evaluates the pre-trained inactivity
// classifier. Models are JSON artifacts exported by the training
// pipeline; two kinds exist: "logistic" (weights + intercept, exposes
// probabilities) and "tree" (a serialized decision tree, labels only).
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Classification labels. The positive class is inactivity.
const (
	LabelActive   = 0
	LabelInactive = 1
)

var (
	// ErrDimension is returned when a feature vector's width does not
	// match what the model was trained on.
	ErrDimension = errors.New("feature vector dimension mismatch")
	// ErrUnknownKind is returned when a model artifact declares a kind
	// this build does not support.
	ErrUnknownKind = errors.New("unknown model kind")
)

// Classifier assigns an inactivity label to a feature vector.
type Classifier interface {
	// Predict returns LabelActive or LabelInactive.
	Predict(features []float64) (int, error)
	// Kind identifies the artifact type ("logistic" or "tree").
	Kind() string
}

// ProbabilityClassifier is implemented by models that can score the
// positive class, not just label it.
type ProbabilityClassifier interface {
	Classifier
	// PredictProba returns P(inactive) in [0, 1].
	PredictProba(features []float64) (float64, error)
}

// envelope is the common outer shape of a model artifact.
type envelope struct {
	Kind     string          `json:"kind"`
	Logistic json.RawMessage `json:"logistic,omitempty"`
	Tree     json.RawMessage `json:"tree,omitempty"`
}

// Load reads a model artifact from disk and returns the classifier it
// describes.
func Load(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}

	switch env.Kind {
	case "logistic":
		var m Logistic
		if err := json.Unmarshal(env.Logistic, &m); err != nil {
			return nil, fmt.Errorf("parse logistic model: %w", err)
		}
		if err := m.validate(); err != nil {
			return nil, err
		}
		return &m, nil
	case "tree":
		var m Tree
		if err := json.Unmarshal(env.Tree, &m); err != nil {
			return nil, fmt.Errorf("parse tree model: %w", err)
		}
		if err := m.validate(); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// ---------------------------------------------------------------------------
// Logistic regression
// ---------------------------------------------------------------------------

// Logistic is a binary logistic regression: sigmoid(w·x + b) scores the
// positive (inactive) class.
type Logistic struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Threshold float64   `json:"threshold"`
}

// Compile-time check that Logistic exposes probabilities.
var _ ProbabilityClassifier = (*Logistic)(nil)

func (m *Logistic) validate() error {
	if len(m.Weights) == 0 {
		return errors.New("logistic model has no weights")
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("logistic threshold must be in (0, 1), got %g", m.Threshold)
	}
	return nil
}

// Kind returns "logistic".
func (m *Logistic) Kind() string { return "logistic" }

// PredictProba returns P(inactive) for the feature vector.
func (m *Logistic) PredictProba(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("%w: model expects %d features, got %d",
			ErrDimension, len(m.Weights), len(features))
	}
	z := m.Intercept
	for i, w := range m.Weights {
		z += w * features[i]
	}
	return sigmoid(z), nil
}

// Predict labels the feature vector by thresholding the probability.
func (m *Logistic) Predict(features []float64) (int, error) {
	p, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if p >= m.Threshold {
		return LabelInactive, nil
	}
	return LabelActive, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ---------------------------------------------------------------------------
// Decision tree
// ---------------------------------------------------------------------------

// TreeNode is one node of a serialized decision tree. Leaves carry a
// label; internal nodes route on feature <= threshold.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`  // child index, -1 for leaf
	Right     int     `json:"right"` // child index, -1 for leaf
	Label     int     `json:"label"` // meaningful on leaves only
}

// Tree is a serialized decision tree classifier. It cannot score
// probabilities, only labels.
type Tree struct {
	NumFeatures int        `json:"num_features"`
	Nodes       []TreeNode `json:"nodes"`
}

var _ Classifier = (*Tree)(nil)

func (m *Tree) validate() error {
	if m.NumFeatures <= 0 {
		return errors.New("tree model declares no features")
	}
	if len(m.Nodes) == 0 {
		return errors.New("tree model has no nodes")
	}
	for i, n := range m.Nodes {
		if n.Left >= len(m.Nodes) || n.Right >= len(m.Nodes) {
			return fmt.Errorf("tree node %d points past the node table", i)
		}
		if n.Left != -1 && n.Feature >= m.NumFeatures {
			return fmt.Errorf("tree node %d splits on out-of-range feature %d", i, n.Feature)
		}
	}
	return nil
}

// Kind returns "tree".
func (m *Tree) Kind() string { return "tree" }

// Predict walks the tree from the root to a leaf.
func (m *Tree) Predict(features []float64) (int, error) {
	if len(features) != m.NumFeatures {
		return 0, fmt.Errorf("%w: model expects %d features, got %d",
			ErrDimension, m.NumFeatures, len(features))
	}

	idx := 0
	// Bounded by node count; validate() guarantees child indexes stay
	// inside the table.
	for steps := 0; steps <= len(m.Nodes); steps++ {
		n := m.Nodes[idx]
		if n.Left == -1 && n.Right == -1 {
			return n.Label, nil
		}
		if features[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
		if idx < 0 {
			return 0, errors.New("malformed tree: half-leaf node")
		}
	}
	return 0, errors.New("malformed tree: traversal did not terminate")
}

// ---------------------------------------------------------------------------
// Built-in fallback
// ---------------------------------------------------------------------------

// Fallback returns the built-in logistic model used when no artifact is
// configured. Weights favor recency: merchants quiet for ~90 days score
// inactive, recently active ones do not.
func Fallback() *Logistic {
	return &Logistic{
		Weights: []float64{
			-0.30,    // transaction count
			-0.00001, // total volume
			-0.0001,  // average amount
			0.12,     // days since last transaction
			-0.20,    // distinct active days
			-0.0001,  // max amount
			0.0,      // amount stddev
		},
		Intercept: -1.5,
		Threshold: 0.5,
	}
}
