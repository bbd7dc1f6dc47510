package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CompoundID is the user-facing stable identifier for one compound,
// typically an InChIKey or another structural hash. Identity is value
// equality; the same string always denotes the same compound.
type CompoundID string

// LocalID is a dense, run-internal identifier for a compound.
// It is strictly 32-bit and only valid within one interning table.
// Used for hot-path structures (checkpoint done-sets, pair indexing).
type LocalID uint32

// UnitSpec identifies one independently-resumable computation: a named,
// parameterized search (or similarity key) applied to all compounds.
//
// Key must be unique within a run. A UnitSpec is created when a run is
// configured and never mutated afterwards.
type UnitSpec struct {
	// Key is the unique name of this unit within the run.
	Key string `yaml:"key" json:"key"`
	// Kind selects the provider factory from the registry (e.g. "chembl:mechanism").
	Kind string `yaml:"kind" json:"kind"`
	// Source is the human-readable data source label stamped on every Hit.
	Source string `yaml:"source" json:"source"`
	// Params are the unit's resolved parameters.
	Params map[string]string `yaml:"params" json:"params"`
}

// ParamString renders the parameters as a stable "k=v, k=v" list.
func (s UnitSpec) ParamString() string {
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Params[k])
	}
	return strings.Join(parts, ", ")
}

func (s UnitSpec) String() string {
	return fmt.Sprintf("%s [%s]", s.Key, s.Kind)
}

// Pair is a (predicate, object) annotation pair, the grouping unit for
// the J' overlap metric.
type Pair struct {
	Predicate string
	ObjectID  string
}

// RunStats summarizes one unit execution.
type RunStats struct {
	// Kept is the number of compounds whose results were recorded
	// (including not-found compounds, which contribute zero hits).
	Kept int
	// Processed is the number of compounds the loop visited this run.
	Processed int
	// Errored is the number of compounds that were not found.
	Errored int
	// Elapsed is the wall-clock duration of the loop.
	Elapsed time.Duration
}
