// Package executor drives one unit of work: it walks the pending compounds
// of a checkpoint, calls the annotation provider once per compound, and
// accumulates typed hit records in a result sink.
//
// The one ordering invariant everything else leans on: a compound is never
// marked done before the hits it produced are durably flushed. A crash can
// cause re-querying, never "done but lost".
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tkral/annomine/checkpoint"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/provider"
)

// UnitError wraps a provider failure with the unit and compound context the
// operator needs to act on it.
type UnitError struct {
	Key      string
	Kind     string
	Compound model.CompoundID
	Err      error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s [%s] failed on compound %s: %v", e.Key, e.Kind, e.Compound, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Options configure a Runner.
type Options struct {
	// SaveEvery is the flush-and-checkpoint cadence in compounds.
	SaveEvery int
	// Logger receives progress lines. Defaults to slog.Default().
	Logger *slog.Logger
	// Resume preloads previously persisted hits before the loop starts.
	Resume bool
}

// Runner executes one unit spec against a provider.
type Runner struct {
	provider provider.Provider
	opts     Options
}

// NewRunner creates a Runner. The provider is injected rather than reached
// through a package-level singleton so tests and alternative transports can
// swap it freely.
func NewRunner(p provider.Provider, optFns ...func(*Options)) *Runner {
	opts := Options{SaveEvery: checkpoint.DefaultSaveEvery, Logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SaveEvery < 1 {
		opts.SaveEvery = 1
	}
	return &Runner{provider: p, opts: opts}
}

// WithSaveEvery sets the flush cadence.
func WithSaveEvery(n int) func(*Options) {
	return func(o *Options) { o.SaveEvery = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// WithResume enables sink preloading for resumed runs.
func WithResume(resume bool) func(*Options) {
	return func(o *Options) { o.Resume = resume }
}

// Run processes every pending compound of cp, appending hits to sink.
//
// A not-found compound is logged, counted as errored, and still marked done:
// "this provider has nothing for X" is an answer, not a failure. Any other
// provider error aborts the unit wrapped in *UnitError. On success the sink
// is flushed sealed, and the checkpoint is discarded.
func (r *Runner) Run(ctx context.Context, spec model.UnitSpec, total int, cp *checkpoint.Store, sink *Sink) (model.RunStats, error) {
	log := r.opts.Logger.With("unit", spec.Key, "kind", spec.Kind)
	log.Info("starting unit", "pending", cp.Remaining(), "total", total, "save_every", r.opts.SaveEvery)

	if r.opts.Resume {
		if err := sink.Preload(cp.IsDone); err != nil {
			return model.RunStats{}, fmt.Errorf("preload %s: %w", sink.Path(), err)
		}
	}

	started := time.Now()
	stats := model.RunStats{Kept: cp.Count()}
	var pending []model.CompoundID

	flush := func(last bool) error {
		// Hits first, then the checkpoint. Never the other way around.
		if err := sink.Flush(last); err != nil {
			return err
		}
		cp.Done(pending...)
		pending = pending[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			// Lose at most one flush interval; sealed outputs are untouched.
			return stats, err
		}
		id, err := cp.Next()
		if errors.Is(err, checkpoint.ErrExhausted) {
			break
		}
		if err != nil {
			return stats, err
		}

		hits, err := r.provider.Find(ctx, id)
		switch {
		case errors.Is(err, model.ErrCompoundNotFound):
			log.Info("compound not found", "compound", id)
			stats.Errored++
		case err != nil:
			return stats, &UnitError{Key: spec.Key, Kind: spec.Kind, Compound: id, Err: err}
		default:
			sink.Append(hits)
		}
		stats.Processed++
		stats.Kept++
		pending = append(pending, id)

		done := cp.Count() + len(pending)
		if done%r.opts.SaveEvery == 0 {
			if err := flush(false); err != nil {
				return stats, fmt.Errorf("flush %s: %w", sink.Path(), err)
			}
			log.Info("progress", "annotations", sink.Len(), "compounds", done, "total", total)
		}
	}

	if err := flush(true); err != nil {
		return stats, fmt.Errorf("final flush %s: %w", sink.Path(), err)
	}
	if err := cp.Discard(); err != nil {
		return stats, err
	}
	stats.Elapsed = time.Since(started)
	log.Info("unit complete",
		"annotations", sink.Len(),
		"kept", stats.Kept,
		"processed", stats.Processed,
		"errored", stats.Errored,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	return stats, nil
}
