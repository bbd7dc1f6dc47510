package provider

import (
	"context"
	"fmt"

	"github.com/tkral/annomine/model"
)

// Static is an in-memory Provider for tests and examples. Compounds absent
// from Hits are reported as not found. Calls counts Find invocations so
// tests can assert that sealed units trigger zero provider calls.
type Static struct {
	Spec  model.UnitSpec
	Hits  map[model.CompoundID][]model.Hit
	Calls int
	// Fail, if set, is returned verbatim for the matching compound.
	Fail map[model.CompoundID]error
}

// Find implements Provider.
func (s *Static) Find(_ context.Context, id model.CompoundID) ([]model.Hit, error) {
	s.Calls++
	if err, ok := s.Fail[id]; ok {
		return nil, err
	}
	rows, ok := s.Hits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrCompoundNotFound, id)
	}
	out := make([]model.Hit, len(rows))
	for i, h := range rows {
		h.OriginCompound = id
		if h.MatchedCompound == "" {
			h.MatchedCompound = id
		}
		Stamp(s.Spec, &h)
		out[i] = h
	}
	return out, nil
}
