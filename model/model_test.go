package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKeyIgnoresLookupContext(t *testing.T) {
	base := Hit{
		RecordID:        "r1",
		OriginCompound:  "origin-a",
		MatchedCompound: "matched",
		CompoundKey:     "CHEMBL25",
		CompoundName:    "aspirin",
		Predicate:       "inhibits",
		ObjectID:        "P23219",
		ObjectName:      "COX-1",
		Weight:          1,
		SearchKey:       "mech",
		SearchKind:      "chembl:mechanism",
		DataSource:      "ChEMBL",
	}
	other := base
	other.RecordID = "r2"
	other.OriginCompound = "origin-b"
	other.CompoundName = "Aspirin (USP)"
	assert.Equal(t, base.DedupKey(), other.DedupKey(),
		"same annotation reached via different origins must collide")

	changed := base
	changed.ObjectID = "P35354"
	assert.NotEqual(t, base.DedupKey(), changed.DedupKey())

	reweighted := base
	reweighted.Weight = 0.5
	assert.NotEqual(t, base.DedupKey(), reweighted.DedupKey())
}

func TestDedupKeyFieldBoundaries(t *testing.T) {
	a := Hit{CompoundKey: "ab", Predicate: "c"}
	b := Hit{CompoundKey: "a", Predicate: "bc"}
	assert.NotEqual(t, a.DedupKey(), b.DedupKey(),
		"field concatenation must not be ambiguous")
}

func TestToPair(t *testing.T) {
	h := Hit{Predicate: "inhibits", ObjectID: "P23219"}
	assert.Equal(t, Pair{Predicate: "inhibits", ObjectID: "P23219"}, h.ToPair())
}

func TestUnitSpecStrings(t *testing.T) {
	s := UnitSpec{
		Key:    "mech",
		Kind:   "chembl:mechanism",
		Source: "ChEMBL",
		Params: map[string]string{"taxon": "9606", "min_phase": "3"},
	}
	assert.Equal(t, "min_phase=3, taxon=9606", s.ParamString())
	assert.Equal(t, "mech [chembl:mechanism]", s.String())
	assert.Empty(t, UnitSpec{}.ParamString())
}

func TestInterner(t *testing.T) {
	in := NewInterner()
	a := in.Intern("aaa")
	b := in.Intern("bbb")
	assert.Equal(t, LocalID(0), a)
	assert.Equal(t, LocalID(1), b)
	assert.Equal(t, a, in.Intern("aaa"), "re-interning returns the same id")
	assert.Equal(t, 2, in.Len())

	got, ok := in.Lookup("bbb")
	assert.True(t, ok)
	assert.Equal(t, b, got)
	_, ok = in.Lookup("ccc")
	assert.False(t, ok)

	assert.Equal(t, CompoundID("aaa"), in.Resolve(a))
	assert.Equal(t, CompoundID("bbb"), in.Resolve(b))
}
