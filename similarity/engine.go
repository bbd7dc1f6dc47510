// Package similarity computes pairwise compound-compound overlap (J') from
// shared annotations.
//
// This is the second instantiation of the resumable batch pattern: the unit
// of caching is one unit key's full pairwise matrix, stored long-form as a
// sealed partial artifact. A partial whose completeness marker verifies is
// reused without recomputation; anything else is computed fresh. A post-hoc
// quality gate decides which keys are trustworthy enough to concatenate into
// the final artifact.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tkral/annomine/codec"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/table"
)

// Columns of the long-form similarity artifact.
var Columns = []string{"key", "compound_1", "compound_2", "value"}

// Options configure an Engine.
type Options struct {
	// MinCompounds is the minimum number of distinct compounds a key needs
	// both to be computed at all and to pass the quality gate.
	MinCompounds int
	// MinHits is the minimum number of hits a key needs to pass the gate.
	MinHits int
	// MinNonzero is the minimum count of nonzero real (non-NaN) matrix
	// values a key needs to pass the gate.
	MinNonzero int
	// Workers bounds the pair-computation parallelism per key.
	// Defaults to GOMAXPROCS.
	Workers int
	// Suffix is the artifact filename suffix (".tsv", ".tsv.zst", ".tsv.lz4").
	Suffix string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats summarize one key's partial result for the quality gate.
type Stats struct {
	NCompounds int        `json:"n_compounds"`
	NHits      int        `json:"n_hits"`
	NNonzero   int        `json:"n_nonzero_real_values"`
	Quartiles  [3]float64 `json:"quartiles"`
}

// KeyResult is the outcome for one unit key.
type KeyResult struct {
	Key    string
	Path   string
	Stats  Stats
	Reused bool
	Passed bool
}

// Report is the outcome of one similarity run.
type Report struct {
	Keys      []KeyResult
	FinalPath string
}

// Engine computes and caches per-key pairwise similarity.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Suffix == "" {
		opts.Suffix = ".tsv"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{opts: opts}
}

// Run partitions hits by unit key, computes (or reuses) each key's partial
// matrix, applies the quality gate, and concatenates gate-passing keys into
// one sealed long-form artifact under outDir.
//
// Partials of keys that fail the gate are retained for inspection.
func (e *Engine) Run(ctx context.Context, hits []model.Hit, outDir string) (*Report, error) {
	log := e.opts.Logger
	byKey := make(map[string][]model.Hit)
	for _, h := range hits {
		byKey[h.SearchKey] = append(byKey[h.SearchKey], h)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := &Report{FinalPath: filepath.Join(outDir, "similarity"+e.opts.Suffix)}
	var passing []KeyResult
	for _, key := range keys {
		keyHits := byKey[key]
		if n := countCompounds(keyHits); n < e.opts.MinCompounds {
			log.Info("skipping key (too few compounds)", "key", key, "compounds", n, "min", e.opts.MinCompounds)
			continue
		}
		res, err := e.keyResult(ctx, key, keyHits, outDir)
		if err != nil {
			return nil, err
		}
		res.Passed = e.gate(res.Stats)
		if !res.Passed {
			log.Warn("key failed quality gate; excluded from final output",
				"key", key,
				"compounds", res.Stats.NCompounds,
				"hits", res.Stats.NHits,
				"nonzero", res.Stats.NNonzero,
			)
		} else {
			passing = append(passing, res)
		}
		report.Keys = append(report.Keys, res)
	}

	if err := e.finalize(report.FinalPath, passing); err != nil {
		return nil, err
	}
	log.Info("similarity complete", "keys", len(report.Keys), "passing", len(passing), "final", report.FinalPath)
	return report, nil
}

func (e *Engine) gate(s Stats) bool {
	return s.NCompounds >= e.opts.MinCompounds &&
		s.NHits >= e.opts.MinHits &&
		s.NNonzero >= e.opts.MinNonzero
}

// keyResult returns the sealed partial for key, reusing a hash-verified
// cached one when present.
func (e *Engine) keyResult(ctx context.Context, key string, hits []model.Hit, outDir string) (KeyResult, error) {
	path := filepath.Join(outDir, "partials", key+e.opts.Suffix)
	res := KeyResult{Key: key, Path: path}

	ok, err := seal.Verify(path)
	if err != nil {
		// A broken marker pairing is fatal for reads, but here the cache is
		// merely stale: recompute and reseal rather than fail the run.
		if !seal.IsIntegrity(err) {
			return res, err
		}
		e.opts.Logger.Warn("partial failed integrity check; recomputing", "key", key, "path", path)
		ok = false
	}
	if ok {
		stats, err := readStats(path)
		if err == nil {
			e.opts.Logger.Info("reusing cached partial", "key", key, "path", path)
			res.Stats, res.Reused = stats, true
			return res, nil
		}
		e.opts.Logger.Warn("cached partial has no readable stats; recomputing", "key", key, "error", err)
	}

	stats, rows, err := e.compute(ctx, key, hits)
	if err != nil {
		return res, err
	}
	if err := seal.Remove(path); err != nil {
		return res, err
	}
	if err := table.Write(path, Columns, rows); err != nil {
		return res, err
	}
	if err := writeStats(path, stats); err != nil {
		return res, err
	}
	if err := seal.Write(path); err != nil {
		return res, err
	}
	res.Stats = stats
	return res, nil
}

// compute builds the long-form upper-triangle matrix (diagonal included)
// for one key. Each pair's value is independent given the key's hit set, so
// rows are computed in parallel across a bounded worker group.
func (e *Engine) compute(ctx context.Context, key string, hits []model.Hit) (Stats, [][]string, error) {
	byCompound := make(map[model.CompoundID][]model.Hit)
	for _, h := range hits {
		byCompound[h.OriginCompound] = append(byCompound[h.OriginCompound], h)
	}
	compounds := make([]model.CompoundID, 0, len(byCompound))
	for c := range byCompound {
		compounds = append(compounds, c)
	}
	sort.Slice(compounds, func(i, j int) bool { return compounds[i] < compounds[j] })

	n := len(compounds)
	values := make([][]float64, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]float64, n-i)
			for j := i; j < n; j++ {
				if i == j {
					// Identity: a compound with hits under this key is
					// perfectly similar to itself.
					row[j-i] = 1
					continue
				}
				row[j-i] = JPrime(byCompound[compounds[i]], byCompound[compounds[j]])
			}
			values[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, nil, fmt.Errorf("similarity: key %s: %w", key, err)
	}

	stats := Stats{NCompounds: n, NHits: len(hits)}
	var rows [][]string
	var reals []float64
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := values[i][j-i]
			rows = append(rows, []string{
				key,
				string(compounds[i]),
				string(compounds[j]),
				strconv.FormatFloat(v, 'g', -1, 64),
			})
			if !math.IsNaN(v) {
				reals = append(reals, v)
				if v != 0 {
					stats.NNonzero++
				}
			}
		}
	}
	stats.Quartiles = quartiles(reals)
	return stats, rows, nil
}

func (e *Engine) finalize(path string, passing []KeyResult) error {
	var rows [][]string
	for _, res := range passing {
		header, keyRows, err := table.Read(res.Path)
		if err != nil {
			return err
		}
		if len(header) != len(Columns) {
			return fmt.Errorf("similarity: %s: unexpected columns %v", res.Path, header)
		}
		rows = append(rows, keyRows...)
	}
	if err := seal.Remove(path); err != nil {
		return err
	}
	if err := table.Write(path, Columns, rows); err != nil {
		return err
	}
	return seal.Write(path)
}

func countCompounds(hits []model.Hit) int {
	seen := make(map[model.CompoundID]bool, len(hits))
	for _, h := range hits {
		seen[h.OriginCompound] = true
	}
	return len(seen)
}

// quartiles returns the 25th/50th/75th percentile of vs. Zeros for empty
// input: the stats sidecar is JSON and NaN does not survive encoding.
func quartiles(vs []float64) [3]float64 {
	if len(vs) == 0 {
		return [3]float64{}
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	q := func(p float64) float64 {
		idx := p * float64(len(sorted)-1)
		lo := int(math.Floor(idx))
		hi := int(math.Ceil(idx))
		if lo == hi {
			return sorted[lo]
		}
		frac := idx - float64(lo)
		return sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return [3]float64{q(0.25), q(0.5), q(0.75)}
}

func statsPath(partial string) string {
	return partial + ".stats.json"
}

func readStats(partial string) (Stats, error) {
	var s Stats
	data, err := os.ReadFile(statsPath(partial))
	if err != nil {
		return s, err
	}
	return s, codec.Default.Unmarshal(data, &s)
}

func writeStats(partial string, s Stats) error {
	data, err := codec.Default.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(partial), data, 0o644)
}
