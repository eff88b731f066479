// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordVerdict(t *testing.T) {
	before := testutil.ToFloat64(ReplayRecordsTotal.WithLabelValues("mitm_attack"))
	attacksBefore := testutil.ToFloat64(AttacksDetected.WithLabelValues("mitm_attack", "high"))

	RecordVerdict("mitm_attack", "mitm_attack", "high", time.Millisecond)

	if got := testutil.ToFloat64(ReplayRecordsTotal.WithLabelValues("mitm_attack")); got != before+1 {
		t.Errorf("replay_records_total = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(AttacksDetected.WithLabelValues("mitm_attack", "high")); got != attacksBefore+1 {
		t.Errorf("attacks_detected_total = %v, want %v", got, attacksBefore+1)
	}
}

func TestRecordVerdict_ErrorClass(t *testing.T) {
	before := testutil.ToFloat64(ClassificationErrors)

	RecordVerdict("error", "", "", time.Millisecond)

	if got := testutil.ToFloat64(ClassificationErrors); got != before+1 {
		t.Errorf("classification_errors_total = %v, want %v", got, before+1)
	}
}

func TestRecordBroadcast(t *testing.T) {
	sent := testutil.ToFloat64(BroadcastMessagesTotal.WithLabelValues("classification"))
	dropped := testutil.ToFloat64(BroadcastDropped.WithLabelValues("classification"))

	RecordBroadcast("classification", false)
	RecordBroadcast("classification", true)

	if got := testutil.ToFloat64(BroadcastMessagesTotal.WithLabelValues("classification")); got != sent+2 {
		t.Errorf("broadcast_messages_total = %v, want %v", got, sent+2)
	}
	if got := testutil.ToFloat64(BroadcastDropped.WithLabelValues("classification")); got != dropped+1 {
		t.Errorf("broadcast_dropped_total = %v, want %v", got, dropped+1)
	}
}

func TestSetReplayState(t *testing.T) {
	SetReplayState(true, 2.5, 40)
	if got := testutil.ToFloat64(ReplayRunning); got != 1 {
		t.Errorf("replay_running = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ReplayPace); got != 2.5 {
		t.Errorf("replay_pace = %v, want 2.5", got)
	}

	SetReplayState(false, 1.0, 0)
	if got := testutil.ToFloat64(ReplayRunning); got != 0 {
		t.Errorf("replay_running = %v, want 0", got)
	}
}

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(DatasourceFetchErrors)

	RecordFetch(time.Millisecond, nil)
	if got := testutil.ToFloat64(DatasourceFetchErrors); got != before {
		t.Errorf("fetch errors advanced on success: %v", got)
	}

	RecordFetch(time.Millisecond, errFake)
	if got := testutil.ToFloat64(DatasourceFetchErrors); got != before+1 {
		t.Errorf("datasource_fetch_errors_total = %v, want %v", got, before+1)
	}
}

type fakeErr struct{}

func (fakeErr) Error() string { return "fake" }

var errFake = fakeErr{}
