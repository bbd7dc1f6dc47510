// Package checkpoint tracks which compounds have been completed for one unit
// of work, durably enough to resume after a crash.
//
// The progress file is a small JSON object beside the in-progress output.
// It is advanced at a bounded cadence (every SaveEvery completions and on
// exhaustion), so an interrupted run loses at most one flush interval of
// completed-but-unflushed progress. It is deleted only after the unit's
// output has been sealed.
package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tkral/annomine/codec"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/seal"
)

var (
	// ErrAlreadyComplete is returned by Open when the output already carries
	// a valid completeness marker: there is nothing left to do.
	ErrAlreadyComplete = errors.New("output already complete")

	// ErrOutputExists is returned by Open when prior progress exists and the
	// caller requested neither a restart nor a resume.
	ErrOutputExists = errors.New("output already exists; pass restart or resume")

	// ErrExhausted is returned by Next once every compound is done.
	ErrExhausted = errors.New("no compounds remaining")
)

// DefaultSaveEvery is the default flush cadence in completed compounds.
const DefaultSaveEvery = 20

// Options configure a Store.
type Options struct {
	// SaveEvery is the flush cadence in completed compounds.
	SaveEvery int
	// Logger receives progress and corruption warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// Codec encodes the progress file. Defaults to codec.Default.
	Codec codec.Codec
}

// WithSaveEvery sets the flush cadence.
func WithSaveEvery(n int) func(*Options) {
	return func(o *Options) { o.SaveEvery = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// state is the on-disk shape of the progress file.
type state struct {
	Start time.Time `json:"start"`
	Last  time.Time `json:"last"`
	Done  []string  `json:"done"`
}

// Store is the durable record of which compounds are completed for one unit.
//
// Not safe for concurrent use: each unit's work loop is single-threaded with
// respect to its Store.
type Store struct {
	outputPath string
	order      []model.CompoundID
	interner   *model.Interner
	done       *roaring.Bitmap
	cursor     int
	start      time.Time
	last       time.Time
	saveEvery  int
	dirty      bool
	logger     *slog.Logger
	codec      codec.Codec
}

// Open prepares checkpoint state for outputPath over items.
//
// If a completeness marker already certifies outputPath, Open returns
// ErrAlreadyComplete without touching any compound. Otherwise prior progress
// is loaded when resume is true, discarded when restart is true, and rejected
// with ErrOutputExists when neither is set. An unreadable or unparseable
// progress file is treated as absent, with a warning — never a fatal error.
func Open(outputPath string, items []model.CompoundID, restart, resume bool, optFns ...func(*Options)) (*Store, error) {
	opts := Options{SaveEvery: DefaultSaveEvery, Logger: slog.Default(), Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SaveEvery < 1 {
		opts.SaveEvery = 1
	}

	complete, err := seal.Verify(outputPath)
	if err != nil {
		return nil, err
	}
	if complete {
		return nil, ErrAlreadyComplete
	}

	s := &Store{
		outputPath: outputPath,
		order:      items,
		interner:   model.NewInterner(),
		done:       roaring.New(),
		start:      time.Now().UTC(),
		saveEvery:  opts.SaveEvery,
		logger:     opts.Logger,
		codec:      opts.Codec,
	}
	for _, id := range items {
		s.interner.Intern(id)
	}

	prior, found := s.load()
	switch {
	case found && restart:
		s.logger.Warn("replacing prior progress", "path", s.progressPath(), "done", len(prior.Done))
	case found && resume:
		s.logger.Warn("resuming prior progress", "path", s.progressPath(), "done", len(prior.Done))
		s.start = prior.Start
		for _, id := range prior.Done {
			// Progress entries for compounds no longer in the input are
			// carried through untouched; they simply never come up.
			lid := s.interner.Intern(model.CompoundID(id))
			s.done.Add(uint32(lid))
		}
	case found:
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputPath)
	}

	// Write immediately so a fresh run is visible on disk before any
	// provider call is made.
	if err := s.flush(); err != nil {
		return nil, err
	}
	return s, nil
}

// Next returns the next pending compound in the caller-supplied order,
// skipping compounds already done. Fails with ErrExhausted once none remain.
func (s *Store) Next() (model.CompoundID, error) {
	for s.cursor < len(s.order) {
		id := s.order[s.cursor]
		s.cursor++
		lid, _ := s.interner.Lookup(id)
		if !s.done.Contains(uint32(lid)) {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// Done merges ids into the completed set. The set is flushed whenever the
// completed count crosses the save cadence and once everything is done.
// A flush failure is logged and retried on the next call; it never aborts
// the run.
func (s *Store) Done(ids ...model.CompoundID) {
	for _, id := range ids {
		lid := s.interner.Intern(id)
		if !s.done.Contains(uint32(lid)) {
			s.done.Add(uint32(lid))
			s.dirty = true
		}
	}
	if !s.dirty {
		return
	}
	if s.Count()%s.saveEvery == 0 || s.Remaining() == 0 {
		if err := s.flush(); err != nil {
			s.logger.Warn("progress flush failed; will retry", "path", s.progressPath(), "error", err)
		}
	}
}

// IsDone reports whether id is already completed.
func (s *Store) IsDone(id model.CompoundID) bool {
	lid, ok := s.interner.Lookup(id)
	return ok && s.done.Contains(uint32(lid))
}

// Count returns the number of completed compounds.
func (s *Store) Count() int {
	return int(s.done.GetCardinality())
}

// Remaining returns the number of compounds not yet completed.
func (s *Store) Remaining() int {
	n := 0
	for _, id := range s.order {
		lid, _ := s.interner.Lookup(id)
		if !s.done.Contains(uint32(lid)) {
			n++
		}
	}
	return n
}

// Flush forces a durable write of the progress file.
func (s *Store) Flush() error {
	return s.flush()
}

// Discard removes the progress file. Called after the output is sealed;
// from then on the completeness marker is the source of truth.
func (s *Store) Discard() error {
	err := os.Remove(s.progressPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) progressPath() string {
	dir, name := filepath.Split(s.outputPath)
	return filepath.Join(dir, "."+name+".progress.json")
}

func (s *Store) load() (state, bool) {
	data, err := os.ReadFile(s.progressPath())
	if errors.Is(err, os.ErrNotExist) {
		return state{}, false
	}
	if err != nil {
		s.logger.Warn("unreadable progress file; restarting", "path", s.progressPath(), "error", err)
		return state{}, false
	}
	var st state
	if err := s.codec.Unmarshal(data, &st); err != nil || st.Done == nil {
		s.logger.Warn("invalid progress file; restarting", "path", s.progressPath(), "error", err)
		return state{}, false
	}
	return st, true
}

func (s *Store) flush() error {
	s.last = time.Now().UTC()
	st := state{Start: s.start, Last: s.last, Done: make([]string, 0, s.Count())}
	it := s.done.Iterator()
	for it.HasNext() {
		st.Done = append(st.Done, string(s.interner.Resolve(model.LocalID(it.Next()))))
	}
	data, err := s.codec.Marshal(st)
	if err != nil {
		return err
	}
	path := s.progressPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	s.dirty = false
	return nil
}
