package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkral/annomine/model"
)

func hit(source, predicate, object string, weight float64) model.Hit {
	return model.Hit{
		DataSource: source,
		Predicate:  predicate,
		ObjectID:   object,
		Weight:     weight,
	}
}

func TestJPrimeIdenticalProfiles(t *testing.T) {
	a := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("ChEMBL", "inhibits", "P2", 2),
	}
	b := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("ChEMBL", "inhibits", "P2", 2),
	}
	assert.InDelta(t, 1.0, JPrime(a, b), 1e-12,
		"identical profiles: wedge equals vee for every pair")
}

func TestJPrimeDisjointPairs(t *testing.T) {
	a := []model.Hit{hit("ChEMBL", "inhibits", "P1", 1)}
	b := []model.Hit{hit("ChEMBL", "inhibits", "P2", 1)}
	assert.Equal(t, 0.0, JPrime(a, b),
		"no overlapping pair contributes, union dilutes to zero")
}

func TestJPrimeBoundaries(t *testing.T) {
	some := []model.Hit{hit("ChEMBL", "inhibits", "P1", 1)}

	assert.True(t, math.IsNaN(JPrime(nil, nil)), "both empty is undefined")
	assert.Equal(t, 0.0, JPrime(some, nil), "one empty is zero")
	assert.Equal(t, 0.0, JPrime(nil, some))

	other := []model.Hit{hit("DrugBank", "inhibits", "P1", 1)}
	assert.True(t, math.IsNaN(JPrime(some, other)),
		"no shared data source is undefined")
}

func TestJPrimeSymmetry(t *testing.T) {
	a := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("ChEMBL", "binds", "P2", 3),
		hit("DrugBank", "treats", "D1", 1),
	}
	b := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 2),
		hit("DrugBank", "treats", "D2", 1),
	}
	assert.InDelta(t, JPrime(a, b), JPrime(b, a), 1e-12)
}

func TestJPrimeRange(t *testing.T) {
	a := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("ChEMBL", "inhibits", "P2", 5),
	}
	b := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 3),
	}
	v := JPrime(a, b)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.0, "partial overlap scores strictly between the extremes")
}

func TestJPrimeReplicatedAnnotationsSumPerPair(t *testing.T) {
	// Two replicated weight-1 hits on the same pair behave like one
	// weight-2 hit, not like two independent pairs.
	a := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("ChEMBL", "inhibits", "P1", 1),
	}
	b := []model.Hit{hit("ChEMBL", "inhibits", "P1", 2)}
	assert.InDelta(t, 1.0, JPrime(a, b), 1e-12)
}

func TestJPrimeAveragesSharedSources(t *testing.T) {
	// Perfect agreement in ChEMBL, total disagreement in DrugBank: the
	// score is the mean of the per-source scores.
	a := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("DrugBank", "treats", "D1", 1),
	}
	b := []model.Hit{
		hit("ChEMBL", "inhibits", "P1", 1),
		hit("DrugBank", "treats", "D2", 1),
	}
	assert.InDelta(t, 0.5, JPrime(a, b), 1e-12)
}

func TestQuartiles(t *testing.T) {
	assert.Equal(t, [3]float64{}, quartiles(nil))
	assert.Equal(t, [3]float64{1, 1, 1}, quartiles([]float64{1}))
	got := quartiles([]float64{0, 1, 2, 3, 4})
	assert.Equal(t, [3]float64{1, 2, 3}, got)
}
