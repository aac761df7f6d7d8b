package domain

import (
	"sort"
)

// DefaultCliffCutoff is the relative score drop between consecutive
// accepted candidates past which the remainder is discarded. An
// empirically tuned constant, kept as a configurable default.
const DefaultCliffCutoff = 0.04

// Reducer selects the final candidate set from scored, confirmed
// candidates: the best answer from each independent provider, but only
// while the providers roughly agree.
type Reducer struct {
	cutoff float64
	// preference orders engines for exact score ties; engines listed
	// earlier win. Engines not listed sort after listed ones, by name.
	preference map[string]int
}

// NewReducer creates a Reducer. Pass cutoff <= 0 for the default.
// preferredEngines breaks exact score ties; historically one vendor was
// always preferred, which is kept as configuration rather than policy.
func NewReducer(cutoff float64, preferredEngines ...string) *Reducer {
	if cutoff <= 0 {
		cutoff = DefaultCliffCutoff
	}
	pref := make(map[string]int, len(preferredEngines))
	for i, engine := range preferredEngines {
		pref[engine] = i + 1
	}
	return &Reducer{cutoff: cutoff, preference: pref}
}

// Cutoff returns the configured relative-delta cutoff.
func (r *Reducer) Cutoff() float64 { return r.cutoff }

// Reduce orders candidates by score descending and walks the list,
// keeping at most one candidate per provider engine. Acceptance stops at
// the first relative score drop beyond the cutoff: past that cliff the
// ranking no longer reflects mutual corroboration. The result keeps the
// descending score order. An empty result is the valid "no confirmed
// match" terminal state, not an error.
func (r *Reducer) Reduce(candidates []Candidate) []Candidate {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		pi, pj := r.rank(ordered[i].Place.Engine), r.rank(ordered[j].Place.Engine)
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Place.Engine < ordered[j].Place.Engine
	})

	accepted := make([]Candidate, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for _, c := range ordered {
		if seen[c.Place.Engine] {
			continue
		}
		if len(accepted) > 0 {
			prev := accepted[len(accepted)-1].Score
			if prev > 0 && (prev-c.Score)/prev > r.cutoff {
				break
			}
		}
		accepted = append(accepted, c)
		seen[c.Place.Engine] = true
	}
	return accepted
}

func (r *Reducer) rank(engine string) int {
	if p, ok := r.preference[engine]; ok {
		return p
	}
	// Unlisted engines sort after any explicit preference.
	return len(r.preference) + 1
}
