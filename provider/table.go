package provider

import (
	"context"
	"fmt"

	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/table"
)

// Table serves annotations from a local hit table instead of a remote
// database. It exists for offline runs and air-gapped replays of previously
// exported provider dumps; the engine treats it exactly like a remote
// provider.
//
// Params: path (required) — the hit table to serve from.
type Table struct {
	spec model.UnitSpec
	byID map[model.CompoundID][]model.Hit
}

// NewTable builds a Table provider from spec.Params["path"].
func NewTable(spec model.UnitSpec) (Provider, error) {
	path, ok := spec.Params["path"]
	if !ok || path == "" {
		return nil, fmt.Errorf("provider: kind %q requires param %q", spec.Kind, "path")
	}
	hits, err := table.ReadHits(path)
	if err != nil {
		return nil, fmt.Errorf("provider: load %s: %w", path, err)
	}
	byID := make(map[model.CompoundID][]model.Hit)
	for _, h := range hits {
		byID[h.OriginCompound] = append(byID[h.OriginCompound], h)
	}
	return &Table{spec: spec, byID: byID}, nil
}

// Find implements Provider.
func (t *Table) Find(_ context.Context, id model.CompoundID) ([]model.Hit, error) {
	rows, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrCompoundNotFound, id)
	}
	out := make([]model.Hit, len(rows))
	for i, h := range rows {
		h.OriginCompound = id
		Stamp(t.spec, &h)
		out[i] = h
	}
	return out, nil
}
