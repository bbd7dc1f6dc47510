// Package provider defines the boundary to external annotation databases.
//
// A Provider answers one question: "what annotations exist for this
// compound?" Transport, scraping, caching, and retries live behind the
// interface; the engine only distinguishes "not found" (recoverable) from
// every other failure (unit-fatal).
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tkral/annomine/model"
)

// Provider returns annotations for one compound.
//
// Find must be idempotent and side-effect free from the engine's point of
// view. It returns model.ErrCompoundNotFound (possibly wrapped) when the
// compound does not exist in the provider's database; any other error aborts
// the unit.
type Provider interface {
	Find(ctx context.Context, id model.CompoundID) ([]model.Hit, error)
}

// Factory builds a Provider configured for one unit spec.
type Factory func(spec model.UnitSpec) (Provider, error)

// Stamp fills the run-context fields of a freshly created Hit: record ID,
// unit key/kind, data source, and run timestamp. Providers call it on every
// Hit they return so the fields never drift between implementations.
func Stamp(spec model.UnitSpec, h *model.Hit) {
	h.RecordID = uuid.NewString()
	h.SearchKey = spec.Key
	h.SearchKind = spec.Kind
	if h.DataSource == "" {
		h.DataSource = spec.Source
	}
	if h.Weight == 0 {
		h.Weight = 1
	}
	h.RunAt = time.Now().UTC()
}
