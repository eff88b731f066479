// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/icswatch/icswatch/internal/models"
)

func verdict(id int64, class string, src, dst string) *models.Verdict {
	v := &models.Verdict{
		Timestamp:      time.Now().UTC(),
		PacketID:       id,
		SourceIP:       src,
		DestinationIP:  dst,
		Protocol:       "TCP",
		PredictedClass: class,
		Confidence:     0.8,
		Severity:       models.SeverityNormal,
	}
	if class != models.ClassNormal {
		v.AttackType = class
		v.Severity = models.SeverityHigh
	}
	return v
}

func TestAggregator_HistoryCap(t *testing.T) {
	a := New(Config{HistoryCap: 5})

	for i := 0; i < 12; i++ {
		a.Record(verdict(int64(i), models.ClassNormal, "10.0.0.1", "10.0.0.2"))
	}

	if got := a.HistoryLen(); got != 5 {
		t.Fatalf("HistoryLen = %d, want 5", got)
	}
	if got := a.Processed(); got != 12 {
		t.Fatalf("Processed = %d, want 12", got)
	}

	recent := a.Recent(0)
	if len(recent) != 5 {
		t.Fatalf("Recent(0) len = %d, want 5", len(recent))
	}
	// Oldest surviving entry is packet 7.
	for i, v := range recent {
		if want := int64(7 + i); v.PacketID != want {
			t.Errorf("recent[%d].PacketID = %d, want %d", i, v.PacketID, want)
		}
	}
}

func TestAggregator_RecentLimit(t *testing.T) {
	a := New(Config{HistoryCap: 10})
	for i := 0; i < 6; i++ {
		a.Record(verdict(int64(i), models.ClassNormal, "a", "b"))
	}

	recent := a.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) len = %d, want 3", len(recent))
	}
	for i, want := range []int64{3, 4, 5} {
		if recent[i].PacketID != want {
			t.Errorf("recent[%d].PacketID = %d, want %d", i, recent[i].PacketID, want)
		}
	}

	if got := a.Recent(100); len(got) != 6 {
		t.Errorf("Recent(100) len = %d, want 6", len(got))
	}
}

func TestAggregator_AttackCounts(t *testing.T) {
	a := New(Config{})

	a.Record(verdict(1, models.ClassNormal, "a", "b"))
	a.Record(verdict(2, models.ClassMITM, "a", "b"))
	a.Record(verdict(3, models.ClassMITM, "a", "b"))
	a.Record(verdict(4, models.ClassPingDDoS, "a", "b"))

	counts := a.AttackCounts()
	if counts[models.ClassMITM] != 2 {
		t.Errorf("mitm count = %d, want 2", counts[models.ClassMITM])
	}
	if counts[models.ClassPingDDoS] != 1 {
		t.Errorf("ping ddos count = %d, want 1", counts[models.ClassPingDDoS])
	}
	if _, ok := counts[models.ClassNormal]; ok {
		t.Error("normal traffic must not appear in attack counts")
	}

	// Returned map is a copy.
	counts[models.ClassMITM] = 99
	if a.AttackCounts()[models.ClassMITM] != 2 {
		t.Error("AttackCounts leaked internal map")
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := New(Config{HistoryCap: 8})
	for i := 0; i < 5; i++ {
		a.Record(verdict(int64(i), models.ClassTCPSynDDoS, "a", "b"))
	}

	a.Reset()

	if a.HistoryLen() != 0 {
		t.Error("history not cleared")
	}
	if a.Processed() != 0 {
		t.Error("processed not cleared")
	}
	if len(a.AttackCounts()) != 0 {
		t.Error("attack counts not cleared")
	}
	if len(a.Recent(0)) != 0 {
		t.Error("recent not empty")
	}
}

func TestAggregator_TimelineFiltersAndOrder(t *testing.T) {
	a := New(Config{})
	now := time.Now().UTC()

	mk := func(id int64, class string, age time.Duration) *models.Verdict {
		v := verdict(id, class, "10.0.0.1", "10.0.0.2")
		v.Timestamp = now.Add(-age)
		return v
	}

	a.Record(mk(1, models.ClassNormal, time.Minute))
	a.Record(mk(2, models.ClassMITM, 30*time.Minute))
	a.Record(mk(3, models.ClassPingDDoS, 2*time.Hour)) // outside window
	a.Record(mk(4, models.ClassTCPSynDDoS, time.Minute))

	entries := a.Timeline(60)
	if len(entries) != 2 {
		t.Fatalf("Timeline len = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].AttackType != models.ClassTCPSynDDoS {
		t.Errorf("entries[0].AttackType = %q, want tcp_syn_ddos", entries[0].AttackType)
	}
	if entries[1].AttackType != models.ClassMITM {
		t.Errorf("entries[1].AttackType = %q, want mitm_attack", entries[1].AttackType)
	}
}

func TestAggregator_NetworkGraph(t *testing.T) {
	a := New(Config{GraphWindow: 200})

	a.Record(verdict(1, models.ClassNormal, "10.0.0.1", "10.0.0.2"))
	a.Record(verdict(2, models.ClassMITM, "10.0.0.1", "10.0.0.3"))
	a.Record(verdict(3, models.ClassMITM, "10.0.0.3", "10.0.0.1"))

	g := a.NetworkGraph()

	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(g.Edges))
	}

	byID := map[string]models.GraphNode{}
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	n1 := byID["10.0.0.1"]
	if n1.AttackCount != 2 || n1.NormalCount != 1 {
		t.Errorf("10.0.0.1 counts = (%d, %d), want (2, 1)", n1.AttackCount, n1.NormalCount)
	}
	n3 := byID["10.0.0.3"]
	if n3.AttackCount != 2 || n3.NormalCount != 0 {
		t.Errorf("10.0.0.3 counts = (%d, %d), want (2, 0)", n3.AttackCount, n3.NormalCount)
	}

	// Nodes sorted by id.
	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i-1].ID > g.Nodes[i].ID {
			t.Fatalf("nodes not sorted: %q before %q", g.Nodes[i-1].ID, g.Nodes[i].ID)
		}
	}
}

func TestAggregator_NetworkGraphWindow(t *testing.T) {
	a := New(Config{HistoryCap: 1000, GraphWindow: 3})

	for i := 0; i < 10; i++ {
		src := fmt.Sprintf("10.0.0.%d", i)
		a.Record(verdict(int64(i), models.ClassNormal, src, "10.0.1.1"))
	}

	g := a.NetworkGraph()
	if len(g.Edges) != 3 {
		t.Fatalf("edges = %d, want window of 3", len(g.Edges))
	}
	// Only the last three sources plus the shared destination.
	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(g.Nodes))
	}
	if _, ok := func() (models.GraphNode, bool) {
		for _, n := range g.Nodes {
			if n.ID == "10.0.0.9" {
				return n, true
			}
		}
		return models.GraphNode{}, false
	}(); !ok {
		t.Error("newest source missing from graph window")
	}
}

func TestAggregator_ConcurrentAccess(t *testing.T) {
	a := New(Config{HistoryCap: 100})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				a.Record(verdict(int64(i), models.ClassMITM, "a", "b"))
				a.Recent(10)
				a.AttackCounts()
				a.NetworkGraph()
			}
		}(w)
	}
	wg.Wait()

	if got := a.Processed(); got != 800 {
		t.Fatalf("Processed = %d, want 800", got)
	}
	if got := a.HistoryLen(); got != 100 {
		t.Fatalf("HistoryLen = %d, want 100", got)
	}
}
