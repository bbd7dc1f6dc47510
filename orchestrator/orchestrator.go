// Package orchestrator validates and drives a batch of unit specs sharing
// one input compound set, then concatenates the sealed per-unit outputs into
// one sealed final artifact with a human-readable manifest.
//
// Failure policy is fail-fast: every spec is validated before any provider
// is touched, and the first unit that fails execution aborts the run.
// Already-sealed units stay sealed, so a later invocation with --proceed
// picks up exactly where the run stopped. We chose fail-fast over
// best-effort continuation because partial batches were the source of the
// "is this output trustworthy" confusion this engine exists to remove.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tkral/annomine/checkpoint"
	"github.com/tkral/annomine/executor"
	"github.com/tkral/annomine/input"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/provider"
	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/table"
)

// Status is the lifecycle state of one unit spec within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusSkipped    Status = "skipped"
	StatusRunning    Status = "running"
	StatusSealed     Status = "sealed"
	StatusFailed     Status = "failed"
)

// forbiddenParams may not appear in a unit's params: they are either owned
// by the orchestrator or would silently collide with meta configuration.
var forbiddenParams = map[string]bool{
	"key":     true,
	"kind":    true,
	"source":  true,
	"to":      true,
	"dir":     true,
	"out_dir": true,
	"out-dir": true,
	"input":   true,
}

// ConfigError is a configuration-level failure detected at validation time,
// before any external call is made.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config error: " + e.Msg
	}
	return fmt.Sprintf("config error in unit %s: %s", e.Key, e.Msg)
}

// Options configure a Runner.
type Options struct {
	// Replace forces recomputation of sealed units.
	Replace bool
	// Proceed resumes partially-completed units from their checkpoints.
	Proceed bool
	// SaveEvery is the checkpoint cadence passed to every unit.
	SaveEvery int
	// Suffix is the artifact filename suffix (".tsv", ".tsv.zst", ".tsv.lz4").
	Suffix string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// UnitResult is the outcome of one unit spec.
type UnitResult struct {
	Spec   model.UnitSpec
	Status Status
	Stats  model.RunStats
	Output string
	Rows   int
	Err    error
}

// Report is the outcome of a whole run.
type Report struct {
	Units        []UnitResult
	FinalPath    string
	ManifestPath string
	Elapsed      time.Duration
}

// Runner owns the lifetime of all unit specs and their checkpoints for one
// run. Units execute sequentially: no two units ever contend for the same
// checkpoint file or output path.
type Runner struct {
	registry *provider.Registry
	opts     Options
}

// NewRunner creates a Runner using the given provider registry.
func NewRunner(registry *provider.Registry, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SaveEvery < 1 {
		opts.SaveEvery = checkpoint.DefaultSaveEvery
	}
	if opts.Suffix == "" {
		opts.Suffix = ".tsv"
	}
	return &Runner{registry: registry, opts: opts}
}

// Validate checks every spec before anything runs: unique non-empty keys,
// resolvable kinds, no forbidden parameter names, and constructible
// providers. Cheap to detect now, expensive to discover three hours in.
func (r *Runner) Validate(specs []model.UnitSpec) (map[string]provider.Provider, error) {
	providers := make(map[string]provider.Provider, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Key == "" {
			return nil, &ConfigError{Msg: "unit key must not be empty"}
		}
		if seen[spec.Key] {
			return nil, &ConfigError{Key: spec.Key, Msg: "duplicate unit key"}
		}
		seen[spec.Key] = true
		for p := range spec.Params {
			if forbiddenParams[p] {
				return nil, &ConfigError{Key: spec.Key, Msg: fmt.Sprintf("forbidden parameter %q", p)}
			}
		}
		p, err := r.registry.Build(spec)
		if err != nil {
			return nil, &ConfigError{Key: spec.Key, Msg: err.Error()}
		}
		providers[spec.Key] = p
		r.opts.Logger.Info("unit looks ok", "unit", spec.Key, "kind", spec.Kind)
	}
	return providers, nil
}

// Run validates all specs, executes each to a sealed output (or skips units
// already sealed), and concatenates everything into one sealed final
// artifact plus a manifest.
func (r *Runner) Run(ctx context.Context, specs []model.UnitSpec, in *input.Table, outDir string) (*Report, error) {
	started := time.Now()
	log := r.opts.Logger

	providers, err := r.Validate(specs)
	if err != nil {
		return nil, err
	}
	log.Info("all units look ok", "units", len(specs))

	report := &Report{
		FinalPath:    filepath.Join(outDir, "combined"+r.opts.Suffix),
		ManifestPath: filepath.Join(outDir, "combined_manifest.tsv"),
	}

	for _, spec := range specs {
		res := r.runUnit(ctx, spec, providers[spec.Key], in, outDir)
		report.Units = append(report.Units, res)
		if res.Err != nil {
			report.Elapsed = time.Since(started)
			return report, res.Err
		}
	}

	if err := r.finalize(report); err != nil {
		report.Elapsed = time.Since(started)
		return report, err
	}
	report.Elapsed = time.Since(started)
	log.Info("run complete",
		"units", len(report.Units),
		"final", report.FinalPath,
		"elapsed", report.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

func (r *Runner) runUnit(ctx context.Context, spec model.UnitSpec, prov provider.Provider, in *input.Table, outDir string) UnitResult {
	res := UnitResult{
		Spec:   spec,
		Status: StatusValidating,
		Output: filepath.Join(outDir, spec.Key+r.opts.Suffix),
	}
	log := r.opts.Logger

	if r.opts.Replace {
		if err := seal.Remove(res.Output); err != nil {
			res.Status, res.Err = StatusFailed, err
			return res
		}
	}

	cp, err := checkpoint.Open(res.Output, in.IDs, r.opts.Replace, r.opts.Proceed,
		checkpoint.WithSaveEvery(r.opts.SaveEvery),
		checkpoint.WithLogger(log),
	)
	if errors.Is(err, checkpoint.ErrAlreadyComplete) {
		log.Info("skipping unit (already sealed)", "unit", spec.Key, "output", res.Output)
		res.Status = StatusSkipped
		return res
	}
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	res.Status = StatusRunning
	if err := r.writeUnitMetadata(res.Output, spec); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	runner := executor.NewRunner(prov,
		executor.WithSaveEvery(r.opts.SaveEvery),
		executor.WithLogger(log),
		executor.WithResume(r.opts.Proceed),
	)
	sink := executor.NewSink(res.Output, in.Extras)
	stats, err := runner.Run(ctx, spec, len(in.IDs), cp, sink)
	res.Stats = stats
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.Status = StatusSealed
	return res
}

// writeUnitMetadata writes the per-unit metadata sidecar describing the spec
// that produced the artifact.
func (r *Runner) writeUnitMetadata(output string, spec model.UnitSpec) error {
	path := strings.TrimSuffix(output, r.opts.Suffix) + ".metadata.json"
	data, err := metadataJSON(spec)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (r *Runner) finalize(report *Report) error {
	var combined []model.Hit
	header := []string{"key", "kind", "source", "params", "rows", "output"}
	var manifest [][]string

	for i := range report.Units {
		res := &report.Units[i]
		// Nothing is read back without its marker checking out, even if we
		// sealed it minutes ago.
		ok, err := seal.Verify(res.Output)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unit %s output %s lost its completeness marker", res.Spec.Key, res.Output)
		}
		hits, err := table.ReadHits(res.Output)
		if err != nil {
			return err
		}
		res.Rows = len(hits)
		combined = append(combined, hits...)
		manifest = append(manifest, []string{
			res.Spec.Key,
			res.Spec.Kind,
			res.Spec.Source,
			res.Spec.ParamString(),
			strconv.Itoa(res.Rows),
			filepath.Base(res.Output),
		})
	}

	if err := seal.Remove(report.FinalPath); err != nil {
		return err
	}
	if err := table.WriteHits(report.FinalPath, combined); err != nil {
		return err
	}
	if err := seal.Write(report.FinalPath); err != nil {
		return err
	}
	return table.Write(report.ManifestPath, header, manifest)
}
