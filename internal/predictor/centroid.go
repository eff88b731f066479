// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package predictor provides the built-in classification model: a
// nearest-centroid classifier loaded from a JSON export of the training
// pipeline, with an optional fitted standard scaler. The replay engine
// consumes both through interfaces, so deployments can run without a
// model file at all.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"os"

	json "github.com/goccy/go-json"

	"github.com/icswatch/icswatch/internal/logging"
)

// ErrNoModel reports a missing model file. Callers treat it as a
// degraded-but-valid startup state.
var ErrNoModel = errors.New("predictor: model file not found")

// modelFile is the on-disk JSON layout produced by the training export.
type modelFile struct {
	Classes   []string    `json:"classes"`
	Centroids [][]float64 `json:"centroids"`
	Scaler    *struct {
		Mean  []float64 `json:"mean"`
		Scale []float64 `json:"scale"`
	} `json:"scaler"`
}

// Centroid classifies a feature vector by distance to per-class
// centroids. Immutable after load; safe for concurrent use.
type Centroid struct {
	classes   []string
	centroids [][]float64
	width     int
}

// StandardScaler applies the training pipeline's fitted standardization.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// Load reads a model export. Returns ErrNoModel when the path does not
// exist; the scaler return is nil when the export carries none.
func Load(path string) (*Centroid, *StandardScaler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoModel, path)
		}
		return nil, nil, fmt.Errorf("read model: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, nil, fmt.Errorf("parse model %s: %w", path, err)
	}

	if len(mf.Classes) == 0 || len(mf.Classes) != len(mf.Centroids) {
		return nil, nil, fmt.Errorf("model %s: %d classes for %d centroids", path, len(mf.Classes), len(mf.Centroids))
	}
	width := len(mf.Centroids[0])
	if width == 0 {
		return nil, nil, fmt.Errorf("model %s: empty centroid", path)
	}
	for i, c := range mf.Centroids {
		if len(c) != width {
			return nil, nil, fmt.Errorf("model %s: centroid %d width %d, want %d", path, i, len(c), width)
		}
	}

	m := &Centroid{classes: mf.Classes, centroids: mf.Centroids, width: width}

	var scaler *StandardScaler
	if mf.Scaler != nil {
		if len(mf.Scaler.Mean) != width || len(mf.Scaler.Scale) != width {
			return nil, nil, fmt.Errorf("model %s: scaler width mismatch", path)
		}
		scaler = &StandardScaler{mean: mf.Scaler.Mean, scale: mf.Scaler.Scale}
	}

	logging.Info().
		Str("path", path).
		Int("classes", len(m.classes)).
		Int("width", width).
		Bool("scaler", scaler != nil).
		Msg("model loaded")

	return m, scaler, nil
}

// Width returns the feature vector length the model expects.
func (m *Centroid) Width() int { return m.width }

// Classes returns the class labels in model order.
func (m *Centroid) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Predict returns the nearest class and a softmax confidence over the
// negated centroid distances.
func (m *Centroid) Predict(features []float64) (string, float64, error) {
	if len(features) != m.width {
		return "", 0, fmt.Errorf("predictor: got %d features, want %d", len(features), m.width)
	}

	dists := make([]float64, len(m.centroids))
	best := 0
	for i, c := range m.centroids {
		var sum float64
		for j, v := range features {
			d := v - c[j]
			sum += d * d
		}
		dists[i] = math.Sqrt(sum)
		if dists[i] < dists[best] {
			best = i
		}
	}

	// Softmax over negated distances, shifted by the minimum so the
	// exponentials stay in range.
	var total float64
	for _, d := range dists {
		total += math.Exp(dists[best] - d)
	}
	confidence := 1 / total

	return m.classes[best], confidence, nil
}

// Transform standardizes a feature vector. Zero scale entries pass the
// centered value through unscaled.
func (s *StandardScaler) Transform(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		if i >= len(s.mean) {
			out[i] = v
			continue
		}
		centered := v - s.mean[i]
		if s.scale[i] != 0 {
			centered /= s.scale[i]
		}
		out[i] = centered
	}
	return out
}
