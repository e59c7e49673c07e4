package repositorycache

import "sync/atomic"

// Metrics counts cache outcomes. A single Metrics may be shared by every
// repository of one namespace across scopes.
type Metrics struct {
	hits          atomic.Int64
	misses        atomic.Int64
	bypasses      atomic.Int64
	failures      atomic.Int64
	invalidations atomic.Int64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Bypasses      int64 `json:"bypasses"`
	Failures      int64 `json:"failures"`
	Invalidations int64 `json:"invalidations"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Bypasses:      m.bypasses.Load(),
		Failures:      m.failures.Load(),
		Invalidations: m.invalidations.Load(),
	}
}

func (m *Metrics) hit()          { m.hits.Add(1) }
func (m *Metrics) miss()         { m.misses.Add(1) }
func (m *Metrics) bypass()       { m.bypasses.Add(1) }
func (m *Metrics) failure()      { m.failures.Add(1) }
func (m *Metrics) invalidation() { m.invalidations.Add(1) }
