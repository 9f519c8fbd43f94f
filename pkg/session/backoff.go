package session

import (
	"sort"
	"time"
)

// Threshold starts a cooldown once Failures consecutive wrong PINs are seen.
type Threshold struct {
	Failures int
	Cooldown time.Duration
}

// Backoff is an ordered set of thresholds.
type Backoff []Threshold

// DefaultBackoff: 5 failures -> 30s, 10 -> 5min, 20 -> 30min.
func DefaultBackoff() Backoff {
	return Backoff{
		{Failures: 5, Cooldown: 30 * time.Second},
		{Failures: 10, Cooldown: 5 * time.Minute},
		{Failures: 20, Cooldown: 30 * time.Minute},
	}
}

// cooldownFor returns the cooldown for the given consecutive failure count,
// or 0 when no threshold is reached.
func (b Backoff) cooldownFor(failures int) time.Duration {
	sorted := make(Backoff, len(b))
	copy(sorted, b)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Failures > sorted[j].Failures })

	for _, t := range sorted {
		if failures >= t.Failures {
			return t.Cooldown
		}
	}
	return 0
}
