package registry

import "testing"

func TestWeightedSelectRejectsEmpty(t *testing.T) {
	if _, err := WeightedSelect(nil); err == nil {
		t.Fatal("WeightedSelect(nil): expected error, got nil")
	}
}

func TestWeightedSelectSingleCandidate(t *testing.T) {
	got, err := WeightedSelect([]Candidate{{ID: "only", LoadRatio: 0.5}})
	if err != nil {
		t.Fatalf("WeightedSelect() error: %v", err)
	}
	if got.ID != "only" {
		t.Fatalf("WeightedSelect() = %q, want %q", got.ID, "only")
	}
}

func TestWeightedSelectAllSaturatedKeepsEveryCandidateSelectable(t *testing.T) {
	// Both loads clamp to 0.99, so each candidate keeps weight 0.01 and the
	// draw splits evenly instead of always taking the newer heartbeat.
	candidates := []Candidate{
		{ID: "stale", LoadRatio: 1.0, LastHeartbeatNs: 100},
		{ID: "fresh", LoadRatio: 1.0, LastHeartbeatNs: 200},
	}
	counts := map[string]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		got, err := WeightedSelect(candidates)
		if err != nil {
			t.Fatalf("WeightedSelect() error: %v", err)
		}
		counts[got.ID]++
	}
	if counts["stale"] == 0 || counts["fresh"] == 0 {
		t.Fatalf("WeightedSelect() counts = %+v, want both saturated candidates picked", counts)
	}
}

func TestWeightedSelectStronglyPrefersAnIdleCandidateOverAFullyLoadedOne(t *testing.T) {
	// load is clamped to 0.99 rather than 1.0, so the fully loaded candidate
	// keeps a small nonzero weight and is occasionally still picked.
	candidates := []Candidate{
		{ID: "idle", LoadRatio: 0.0},
		{ID: "full", LoadRatio: 1.0},
	}
	counts := map[string]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		got, err := WeightedSelect(candidates)
		if err != nil {
			t.Fatalf("WeightedSelect() error: %v", err)
		}
		counts[got.ID]++
	}
	if counts["idle"] < trials*9/10 {
		t.Fatalf("WeightedSelect() picked the idle candidate %d/%d times, want at least 90%%", counts["idle"], trials)
	}
}

func TestWeightedSelectDistributesAcrossUnequalLoad(t *testing.T) {
	candidates := []Candidate{
		{ID: "light", LoadRatio: 0.1},
		{ID: "heavy", LoadRatio: 0.8},
	}
	counts := map[string]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		got, err := WeightedSelect(candidates)
		if err != nil {
			t.Fatalf("WeightedSelect() error: %v", err)
		}
		counts[got.ID]++
	}
	// light (weight 0.9) should be picked noticeably more often than heavy (weight 0.2).
	if counts["light"] <= counts["heavy"] {
		t.Fatalf("WeightedSelect() counts = %+v, want light > heavy", counts)
	}
}
