// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package predictor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

const twoClassModel = `{
	"classes": ["normal", "mitm_attack"],
	"centroids": [[0, 0, 0], [10, 10, 10]],
	"scaler": {"mean": [1, 1, 1], "scale": [2, 2, 0]}
}`

func TestLoad(t *testing.T) {
	m, s, err := Load(writeModel(t, twoClassModel))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Width() != 3 {
		t.Errorf("Width = %d, want 3", m.Width())
	}
	classes := m.Classes()
	if len(classes) != 2 || classes[0] != "normal" || classes[1] != "mitm_attack" {
		t.Errorf("Classes = %v", classes)
	}
	if s == nil {
		t.Fatal("scaler missing")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "nope"},
		{"class count mismatch", `{"classes": ["a"], "centroids": [[1], [2]]}`},
		{"no classes", `{"classes": [], "centroids": []}`},
		{"ragged centroids", `{"classes": ["a", "b"], "centroids": [[1, 2], [1]]}`},
		{"empty centroid", `{"classes": ["a"], "centroids": [[]]}`},
		{"scaler width mismatch", `{"classes": ["a"], "centroids": [[1, 2]], "scaler": {"mean": [0], "scale": [1]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Load(writeModel(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
}

func TestPredict(t *testing.T) {
	m, _, err := Load(writeModel(t, twoClassModel))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name     string
		features []float64
		want     string
	}{
		{"near first centroid", []float64{0.5, 0.5, 0.5}, "normal"},
		{"near second centroid", []float64{9, 9, 11}, "mitm_attack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf, err := m.Predict(tt.features)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if label != tt.want {
				t.Errorf("label = %q, want %q", label, tt.want)
			}
			if conf <= 0.5 || conf > 1 {
				t.Errorf("confidence = %v, want in (0.5, 1]", conf)
			}
		})
	}
}

func TestPredict_OnCentroid(t *testing.T) {
	m, _, err := Load(writeModel(t, twoClassModel))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	label, conf, err := m.Predict([]float64{10, 10, 10})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if label != "mitm_attack" {
		t.Errorf("label = %q, want mitm_attack", label)
	}
	if conf < 0.99 {
		t.Errorf("confidence = %v, want near 1 on exact centroid", conf)
	}
}

func TestPredict_WidthMismatch(t *testing.T) {
	m, _, err := Load(writeModel(t, twoClassModel))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, err := m.Predict([]float64{1, 2}); err == nil {
		t.Fatal("expected width error")
	}
}

func TestStandardScaler_Transform(t *testing.T) {
	_, s, err := Load(writeModel(t, twoClassModel))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := s.Transform([]float64{3, 1, 5})
	want := []float64{1, 0, 4} // (3-1)/2, (1-1)/2, (5-1) with zero scale passthrough
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Transform[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
