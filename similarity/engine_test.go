package similarity

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func keyHit(key string, compound model.CompoundID, object string) model.Hit {
	return model.Hit{
		SearchKey:      key,
		OriginCompound: compound,
		DataSource:     "ChEMBL",
		Predicate:      "inhibits",
		ObjectID:       object,
		Weight:         1,
	}
}

func engineHits() []model.Hit {
	return []model.Hit{
		keyHit("mech", "aaa", "P1"),
		keyHit("mech", "aaa", "P2"),
		keyHit("mech", "bbb", "P1"),
		keyHit("mech", "ccc", "P9"),
		keyHit("lone", "aaa", "P1"),
	}
}

func newTestEngine() *Engine {
	return NewEngine(Options{
		MinCompounds: 2,
		MinHits:      1,
		MinNonzero:   1,
		Workers:      2,
		Logger:       quiet,
	})
}

func TestEngineRun(t *testing.T) {
	dir := t.TempDir()
	report, err := newTestEngine().Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)

	// "lone" has one compound and is skipped outright.
	require.Len(t, report.Keys, 1)
	res := report.Keys[0]
	assert.Equal(t, "mech", res.Key)
	assert.True(t, res.Passed)
	assert.False(t, res.Reused)
	assert.Equal(t, 3, res.Stats.NCompounds)
	assert.Equal(t, 4, res.Stats.NHits)

	ok, err := seal.Verify(res.Path)
	require.NoError(t, err)
	assert.True(t, ok, "partial must be sealed")
	ok, err = seal.Verify(report.FinalPath)
	require.NoError(t, err)
	assert.True(t, ok, "final artifact must be sealed")

	header, rows, err := table.Read(report.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)
	// Upper triangle including the diagonal for 3 compounds.
	require.Len(t, rows, 6)

	values := map[[2]string]string{}
	for _, row := range rows {
		assert.Equal(t, "mech", row[0])
		values[[2]string{row[1], row[2]}] = row[3]
	}
	assert.Equal(t, "1", values[[2]string{"aaa", "aaa"}], "diagonal is exactly 1")
	assert.Equal(t, "1", values[[2]string{"bbb", "bbb"}])
	assert.NotEqual(t, "0", values[[2]string{"aaa", "bbb"}], "shared P1 scores nonzero")
	assert.Equal(t, "0", values[[2]string{"aaa", "ccc"}], "disjoint pairs score zero")
}

func TestEngineReusesSealedPartial(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine()
	_, err := e.Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)

	partial := filepath.Join(dir, "partials", "mech.tsv")
	before, err := os.ReadFile(partial)
	require.NoError(t, err)

	report, err := e.Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)
	require.Len(t, report.Keys, 1)
	assert.True(t, report.Keys[0].Reused)

	after, err := os.ReadFile(partial)
	require.NoError(t, err)
	assert.Equal(t, before, after, "reused partial is not rewritten")
}

func TestEngineRecomputesCorruptPartial(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine()
	_, err := e.Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)

	partial := filepath.Join(dir, "partials", "mech.tsv")
	require.NoError(t, os.WriteFile(partial, []byte("garbage"), 0o644))

	report, err := e.Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)
	require.Len(t, report.Keys, 1)
	assert.False(t, report.Keys[0].Reused, "stale cache is recomputed, not trusted")

	ok, err := seal.Verify(partial)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngineGateExcludesKey(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(Options{
		MinCompounds: 2,
		MinHits:      100, // unreachable
		MinNonzero:   1,
		Logger:       quiet,
	})
	report, err := e.Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)
	require.Len(t, report.Keys, 1)
	assert.False(t, report.Keys[0].Passed)

	assert.FileExists(t, report.Keys[0].Path, "failing partial is retained for inspection")

	_, rows, err := table.Read(report.FinalPath)
	require.NoError(t, err)
	assert.Empty(t, rows, "failing key is excluded from the final artifact")
}

// Lowering any gate threshold can only admit more keys, never fewer.
func TestGateMonotonicity(t *testing.T) {
	strict := NewEngine(Options{MinCompounds: 3, MinHits: 4, MinNonzero: 4, Logger: quiet})
	loose := NewEngine(Options{MinCompounds: 2, MinHits: 1, MinNonzero: 1, Logger: quiet})

	samples := []Stats{
		{NCompounds: 2, NHits: 1, NNonzero: 1},
		{NCompounds: 3, NHits: 4, NNonzero: 4},
		{NCompounds: 3, NHits: 2, NNonzero: 5},
		{NCompounds: 10, NHits: 50, NNonzero: 40},
	}
	for _, s := range samples {
		if strict.gate(s) {
			assert.True(t, loose.gate(s), "stats %+v", s)
		}
	}
}

func TestEngineStatsSidecar(t *testing.T) {
	dir := t.TempDir()
	report, err := newTestEngine().Run(context.Background(), engineHits(), dir)
	require.NoError(t, err)

	stats, err := readStats(report.Keys[0].Path)
	require.NoError(t, err)
	assert.Equal(t, report.Keys[0].Stats, stats)
	assert.Positive(t, stats.NNonzero)
}
