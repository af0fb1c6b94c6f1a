package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestLoad_Logistic(t *testing.T) {
	path := writeArtifact(t, `{
		"kind": "logistic",
		"logistic": {
			"weights": [0.5, -0.25],
			"intercept": 0.1,
			"threshold": 0.5
		}
	}`)

	clf, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if clf.Kind() != "logistic" {
		t.Errorf("Expected kind logistic, got %s", clf.Kind())
	}

	proba, ok := clf.(ProbabilityClassifier)
	if !ok {
		t.Fatal("Logistic model should expose probabilities")
	}
	p, err := proba.PredictProba([]float64{2, 4})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	// sigmoid(0.1 + 0.5*2 - 0.25*4) = sigmoid(0.1)
	want := 1 / (1 + math.Exp(-0.1))
	if math.Abs(p-want) > 1e-12 {
		t.Errorf("Expected %f, got %f", want, p)
	}
}

func TestLoad_Tree(t *testing.T) {
	// Single split on feature 0 at 50: <=50 inactive, >50 active.
	path := writeArtifact(t, `{
		"kind": "tree",
		"tree": {
			"num_features": 2,
			"nodes": [
				{"feature": 0, "threshold": 50, "left": 1, "right": 2},
				{"feature": 0, "threshold": 0, "left": -1, "right": -1, "label": 1},
				{"feature": 0, "threshold": 0, "left": -1, "right": -1, "label": 0}
			]
		}
	}`)

	clf, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if clf.Kind() != "tree" {
		t.Errorf("Expected kind tree, got %s", clf.Kind())
	}
	if _, ok := clf.(ProbabilityClassifier); ok {
		t.Error("Tree model should not expose probabilities")
	}

	if label, _ := clf.Predict([]float64{40, 0}); label != LabelInactive {
		t.Errorf("Expected inactive for low feature, got %d", label)
	}
	if label, _ := clf.Predict([]float64{60, 0}); label != LabelActive {
		t.Errorf("Expected active for high feature, got %d", label)
	}
}

func TestLoad_UnknownKind(t *testing.T) {
	path := writeArtifact(t, `{"kind": "forest"}`)

	_, err := Load(path)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing artifact")
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	path := writeArtifact(t, `{
		"kind": "logistic",
		"logistic": {"weights": [1], "intercept": 0, "threshold": 1.5}
	}`)

	if _, err := Load(path); err == nil {
		t.Error("Expected error for out-of-range threshold")
	}
}

func TestLogistic_DimensionMismatch(t *testing.T) {
	m := &Logistic{Weights: []float64{1, 2, 3}, Threshold: 0.5}

	if _, err := m.Predict([]float64{1, 2}); !errors.Is(err, ErrDimension) {
		t.Errorf("Expected ErrDimension, got %v", err)
	}
	if _, err := m.PredictProba([]float64{1, 2, 3, 4}); !errors.Is(err, ErrDimension) {
		t.Errorf("Expected ErrDimension, got %v", err)
	}
}

func TestTree_DimensionMismatch(t *testing.T) {
	m := &Tree{
		NumFeatures: 2,
		Nodes:       []TreeNode{{Left: -1, Right: -1, Label: 0}},
	}

	if _, err := m.Predict([]float64{1}); !errors.Is(err, ErrDimension) {
		t.Errorf("Expected ErrDimension, got %v", err)
	}
}

func TestTree_ValidateRejectsBadIndexes(t *testing.T) {
	m := &Tree{
		NumFeatures: 1,
		Nodes:       []TreeNode{{Feature: 0, Threshold: 1, Left: 5, Right: 6}},
	}
	if err := m.validate(); err == nil {
		t.Error("Expected validation error for out-of-range child index")
	}
}

func TestFallback(t *testing.T) {
	m := Fallback()
	if len(m.Weights) != 7 {
		t.Fatalf("Fallback expects 7 features, got %d", len(m.Weights))
	}

	// Busy merchant, transacted 2 days ago: clearly active.
	active := []float64{20, 5000, 250, 2, 15, 500, 50}
	if label, err := m.Predict(active); err != nil || label != LabelActive {
		t.Errorf("Expected active (err=%v), got label %d", err, label)
	}

	// Two transactions, silent for 90 days: inactive.
	stale := []float64{2, 300, 150, 90, 2, 200, 10}
	if label, err := m.Predict(stale); err != nil || label != LabelInactive {
		t.Errorf("Expected inactive (err=%v), got label %d", err, label)
	}

	p, err := m.PredictProba(stale)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if p <= 0.5 || p > 1 {
		t.Errorf("Expected high inactivity probability, got %f", p)
	}
}
