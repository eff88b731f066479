// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package classify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/icswatch/icswatch/internal/datasource"
	"github.com/icswatch/icswatch/internal/models"
)

const (
	unknownEndpoint = "Unknown"

	protocolModbus = "Modbus/TCP"
	protocolTCP    = "TCP"
	protocolUDP    = "UDP"
	protocolICMP   = "ICMP"
	protocolOther  = "Other"
)

// extract builds the numeric feature vector for one record: configured
// columns in order, scaled if a scaler is loaded, then truncated or
// zero-padded to the predictor's input width.
func (p *Pipeline) extract(rec datasource.Record) []float64 {
	features := make([]float64, len(p.cfg.FeatureColumns))
	for i, col := range p.cfg.FeatureColumns {
		features[i] = floatField(rec, col)
	}

	if p.scaler != nil {
		features = p.scaler.Transform(features)
	}

	if len(features) > p.cfg.InputWidth {
		return features[:p.cfg.InputWidth]
	}
	for len(features) < p.cfg.InputWidth {
		features = append(features, 0)
	}
	return features
}

// featureSample picks the leading feature columns for verdict display,
// keyed by column name, unscaled. Columns absent from the record are
// skipped rather than reported as zero, so the sample may hold fewer
// than SampleSize entries.
func (p *Pipeline) featureSample(rec datasource.Record) map[string]float64 {
	n := p.cfg.SampleSize
	if n > len(p.cfg.FeatureColumns) {
		n = len(p.cfg.FeatureColumns)
	}
	sample := make(map[string]float64, n)
	for _, col := range p.cfg.FeatureColumns[:n] {
		if _, ok := rec[col]; !ok {
			continue
		}
		sample[col] = floatField(rec, col)
	}
	return sample
}

// groundTruthLabel maps the record's labeled capture category, when
// present, onto a verdict class. Matching is by substring on the
// lowercased category so minor naming variants in the capture files
// still resolve.
func groundTruthLabel(rec datasource.Record) (string, bool) {
	raw, ok := rec["category"]
	if !ok || raw == "" {
		return "", false
	}
	cat := strings.ToLower(raw)
	switch {
	case strings.Contains(cat, "clean"):
		return models.ClassNormal, true
	case strings.Contains(cat, "mitm"):
		return models.ClassMITM, true
	case strings.Contains(cat, "modbusquery") && strings.Contains(cat, "flooding"):
		return models.ClassModbusFlooding, true
	case strings.Contains(cat, "tcpsynflood"):
		return models.ClassTCPSynDDoS, true
	case strings.Contains(cat, "pingflood"):
		return models.ClassPingDDoS, true
	default:
		return "", false
	}
}

// protocolOf derives the display protocol from the capture's presence
// flags. Modbus wins over plain TCP since Modbus frames set both.
func protocolOf(rec datasource.Record) string {
	switch {
	case boolField(rec, "has_modbus"):
		return protocolModbus
	case boolField(rec, "has_tcp"):
		return protocolTCP
	case boolField(rec, "has_udp"):
		return protocolUDP
	case boolField(rec, "has_icmp"):
		return protocolICMP
	default:
		return protocolOther
	}
}

// ipFromRecord decodes a column holding a 32-bit integer encoded IPv4
// address into dotted-quad form. Anything unparseable reads "Unknown".
func ipFromRecord(rec datasource.Record, col string) string {
	raw, ok := rec[col]
	if !ok || raw == "" {
		return unknownEndpoint
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > math.MaxUint32 {
		return unknownEndpoint
	}
	ip := uint32(v)
	return fmt.Sprintf("%d.%d.%d.%d", ip>>24&0xff, ip>>16&0xff, ip>>8&0xff, ip&0xff)
}

// floatField parses a numeric column, contributing 0.0 for missing,
// malformed, or non-finite values.
func floatField(rec datasource.Record, col string) float64 {
	raw, ok := rec[col]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func intField(rec datasource.Record, col string) int {
	return int(floatField(rec, col))
}

func boolField(rec datasource.Record, col string) bool {
	raw, ok := rec[col]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes":
		return true
	}
	return floatField(rec, col) != 0
}
