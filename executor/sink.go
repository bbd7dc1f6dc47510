package executor

import (
	"errors"
	"os"

	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/table"
)

// Sink buffers one unit's hits in memory and periodically persists them.
//
// The artifact is always rewritten whole, never appended, so the file under
// the final name is internally consistent even if a crash lands mid-write.
// Sealing — writing the completeness marker — is the terminal step of the
// unit's lifecycle and only ever happens on a successful final flush.
type Sink struct {
	path   string
	extras map[model.CompoundID]map[string]string
	hits   []model.Hit
}

// NewSink creates a sink writing to path. extras supplies pass-through
// columns per origin compound (may be nil).
func NewSink(path string, extras map[model.CompoundID]map[string]string) *Sink {
	return &Sink{path: path, extras: extras}
}

// Preload loads hits already persisted at the sink's path into the buffer,
// keeping only those whose origin compound satisfies keep. Used on resume so
// a whole-file rewrite does not drop progress from a previous process.
// Hits of compounds that were queried but never checkpointed are dropped
// here and re-queried, which keeps the buffer free of duplicates.
func (s *Sink) Preload(keep func(model.CompoundID) bool) error {
	prior, err := table.ReadHits(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, h := range prior {
		if keep == nil || keep(h.OriginCompound) {
			s.hits = append(s.hits, h)
		}
	}
	return nil
}

// Append buffers hits, attaching the pass-through columns of each hit's
// origin compound.
func (s *Sink) Append(hits []model.Hit) {
	for _, h := range hits {
		if extra, ok := s.extras[h.OriginCompound]; ok && len(extra) > 0 {
			merged := make(map[string]string, len(extra)+len(h.Extra))
			for k, v := range extra {
				merged[k] = v
			}
			for k, v := range h.Extra {
				merged[k] = v
			}
			h.Extra = merged
		}
		s.hits = append(s.hits, h)
	}
}

// Flush serializes the full accumulated result set to the sink's path.
// When sealed is true it additionally writes the completeness marker.
func (s *Sink) Flush(sealed bool) error {
	if err := table.WriteHits(s.path, s.hits); err != nil {
		return err
	}
	if sealed {
		return seal.Write(s.path)
	}
	return nil
}

// Len returns the number of buffered hits.
func (s *Sink) Len() int {
	return len(s.hits)
}

// Path returns the output path.
func (s *Sink) Path() string {
	return s.path
}
