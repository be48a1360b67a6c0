// Package registry maintains the live meeting-controller and media-handler
// registries: registration, heartbeats, weighted-random assignment
// selection, and the background health and cleanup sweeps.
package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
)

// Candidate is anything weighted selection can choose among: a controller
// or a media handler reduced to its load ratio and tie-break timestamp.
type Candidate struct {
	ID              string
	LoadRatio       float64
	LastHeartbeatNs int64
}

// WeightedSelect samples one candidate with probability proportional to
// 1 - min(load, 0.99), using a cryptographically secure source of
// randomness. Candidates are ordered newest heartbeat first before sampling;
// that order decides the pick only when the total weight is not positive.
// Returns an error if candidates is empty.
func WeightedSelect(candidates []Candidate) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to select from")
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LastHeartbeatNs > ordered[j].LastHeartbeatNs
	})

	weights := make([]float64, len(ordered))
	var total float64
	for i, c := range ordered {
		load := c.LoadRatio
		if load > 0.99 {
			load = 0.99
		}
		w := 1 - load
		weights[i] = w
		total += w
	}

	if total <= 0 {
		return &ordered[0], nil
	}

	target, err := randomFloat(total)
	if err != nil {
		return nil, err
	}

	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return &ordered[i], nil
		}
	}
	return &ordered[len(ordered)-1], nil
}

// randomFloat returns a uniformly distributed float64 in [0, max) sampled
// from a CSPRNG, via a large integer draw scaled back down.
func randomFloat(max float64) (float64, error) {
	const precision = 1 << 53
	n, err := rand.Int(rand.Reader, big.NewInt(precision))
	if err != nil {
		return 0, fmt.Errorf("sampling random selection: %w", err)
	}
	return (float64(n.Int64()) / float64(precision)) * max, nil
}
