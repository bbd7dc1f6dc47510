package similarity

import (
	"math"

	"github.com/tkral/annomine/model"
)

// elle dampens an annotation weight so one heavily-replicated annotation
// cannot drown out the rest of a compound's profile.
func elle(w float64) float64 {
	return math.Log10(1 + w)
}

// JPrime computes the compound-compound overlap score for a fixed unit key,
// given the two compounds' hits under that key.
//
// Per data source present on both sides, hits are grouped by (predicate,
// object) pair and weights summed per pair. For each pair in the union,
// wedge = sqrt(elle(ca)*elle(cb)) and vee = elle(ca)+elle(cb)-wedge;
// wedge/vee accumulates where vee > 0 and is averaged over the union, so
// pairs found for only one compound dilute the score instead of being
// ignored. The final value averages the per-source scores across all shared
// sources.
//
// Boundary values: one side without hits scores 0, both sides empty score
// NaN, and compounds sharing no data source score NaN. Callers compare a
// compound against itself as exactly 1 without calling this.
func JPrime(a, b []model.Hit) float64 {
	if len(a) == 0 && len(b) == 0 {
		return math.NaN()
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := sharedSources(a, b)
	if len(shared) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, source := range shared {
		total += jx(bySource(a, source), bySource(b, source))
	}
	return total / float64(len(shared))
}

// jx scores one shared data source.
func jx(a, b []model.Hit) float64 {
	ca := weightByPair(a)
	cb := weightByPair(b)
	union := make(map[model.Pair]struct{}, len(ca)+len(cb))
	for p := range ca {
		union[p] = struct{}{}
	}
	for p := range cb {
		union[p] = struct{}{}
	}
	sum := 0.0
	for p := range union {
		la := elle(ca[p])
		lb := elle(cb[p])
		wedge := math.Sqrt(la * lb)
		vee := la + lb - wedge
		if vee > 0 {
			sum += wedge / vee
		}
	}
	return sum / float64(len(union))
}

func weightByPair(hits []model.Hit) map[model.Pair]float64 {
	m := make(map[model.Pair]float64, len(hits))
	for _, h := range hits {
		m[h.ToPair()] += h.Weight
	}
	return m
}

func bySource(hits []model.Hit, source string) []model.Hit {
	out := make([]model.Hit, 0, len(hits))
	for _, h := range hits {
		if h.DataSource == source {
			out = append(out, h)
		}
	}
	return out
}

func sharedSources(a, b []model.Hit) []string {
	in := make(map[string]bool, len(a))
	for _, h := range a {
		in[h.DataSource] = true
	}
	seen := make(map[string]bool)
	var shared []string
	for _, h := range b {
		if in[h.DataSource] && !seen[h.DataSource] {
			seen[h.DataSource] = true
			shared = append(shared, h.DataSource)
		}
	}
	return shared
}
