package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkral/annomine/checkpoint"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/provider"
	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var testSpec = model.UnitSpec{Key: "mech", Kind: "static", Source: "ChEMBL"}

func staticProvider() *provider.Static {
	return &provider.Static{
		Spec: testSpec,
		Hits: map[model.CompoundID][]model.Hit{
			"A": {
				{Predicate: "inhibits", ObjectID: "P1"},
				{Predicate: "inhibits", ObjectID: "P2"},
			},
			"C": {
				{Predicate: "binds", ObjectID: "P3"},
			},
		},
	}
}

func openCheckpoint(t *testing.T, output string, items []model.CompoundID, resume bool) *checkpoint.Store {
	t.Helper()
	cp, err := checkpoint.Open(output, items, false, resume,
		checkpoint.WithLogger(quiet), checkpoint.WithSaveEvery(2))
	require.NoError(t, err)
	return cp
}

// The canonical three-compound run: A yields two hits, B is not in the
// provider's database, C yields one hit.
func TestRunMixedOutcomes(t *testing.T) {
	output := filepath.Join(t.TempDir(), "mech.tsv")
	items := []model.CompoundID{"A", "B", "C"}
	cp := openCheckpoint(t, output, items, false)
	sink := NewSink(output, nil)

	r := NewRunner(staticProvider(), WithLogger(quiet), WithSaveEvery(2))
	stats, err := r.Run(context.Background(), testSpec, len(items), cp, sink)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Errored)

	ok, err := seal.Verify(output)
	require.NoError(t, err)
	assert.True(t, ok, "successful unit must be sealed")

	hits, err := table.ReadHits(output)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	assert.NoFileExists(t, filepath.Join(filepath.Dir(output), ".mech.tsv.progress.json"),
		"checkpoint is discarded after sealing")
}

func TestRunFatalProviderError(t *testing.T) {
	output := filepath.Join(t.TempDir(), "mech.tsv")
	items := []model.CompoundID{"A", "B", "C"}
	cp := openCheckpoint(t, output, items, false)

	p := staticProvider()
	boom := errors.New("connection reset")
	p.Fail = map[model.CompoundID]error{"B": boom}

	r := NewRunner(p, WithLogger(quiet), WithSaveEvery(2))
	_, err := r.Run(context.Background(), testSpec, len(items), cp, NewSink(output, nil))
	require.Error(t, err)

	var ue *UnitError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "mech", ue.Key)
	assert.Equal(t, model.CompoundID("B"), ue.Compound)
	assert.ErrorIs(t, err, boom)

	ok, sealErr := seal.Verify(output)
	require.NoError(t, sealErr)
	assert.False(t, ok, "failed unit must never be sealed")
}

func TestRunResumeDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "mech.tsv")
	items := []model.CompoundID{"A", "B", "C"}

	// First process: dies after the first cadence flush (A and B done).
	p := staticProvider()
	boom := errors.New("process killed")
	p.Fail = map[model.CompoundID]error{"C": boom}
	cp := openCheckpoint(t, output, items, false)
	r := NewRunner(p, WithLogger(quiet), WithSaveEvery(2))
	_, err := r.Run(context.Background(), testSpec, len(items), cp, NewSink(output, nil))
	require.Error(t, err)

	persisted, err := table.ReadHits(output)
	require.NoError(t, err)
	assert.Len(t, persisted, 2, "flush at cadence persisted A's hits")

	// Second process resumes; C now succeeds.
	delete(p.Fail, "C")
	cp2 := openCheckpoint(t, output, items, true)
	r2 := NewRunner(p, WithLogger(quiet), WithSaveEvery(2), WithResume(true))
	stats, err := r2.Run(context.Background(), testSpec, len(items), cp2, NewSink(output, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed, "only C is re-queried")
	assert.Equal(t, 3, stats.Kept)

	hits, err := table.ReadHits(output)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "prior hits kept, no duplicates")
	assert.Equal(t, 4, p.Calls, "A, B, C(fail), then C again")

	ok, err := seal.Verify(output)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunContextCancellation(t *testing.T) {
	output := filepath.Join(t.TempDir(), "mech.tsv")
	items := []model.CompoundID{"A", "B", "C"}
	cp := openCheckpoint(t, output, items, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(staticProvider(), WithLogger(quiet))
	_, err := r.Run(ctx, testSpec, len(items), cp, NewSink(output, nil))
	assert.ErrorIs(t, err, context.Canceled)

	ok, sealErr := seal.Verify(output)
	require.NoError(t, sealErr)
	assert.False(t, ok)
}

func TestSinkPassThroughColumns(t *testing.T) {
	output := filepath.Join(t.TempDir(), "mech.tsv")
	items := []model.CompoundID{"A"}
	cp := openCheckpoint(t, output, items, false)
	extras := map[model.CompoundID]map[string]string{
		"A": {"cohort": "nsaid"},
	}
	r := NewRunner(staticProvider(), WithLogger(quiet))
	_, err := r.Run(context.Background(), testSpec, len(items), cp, NewSink(output, extras))
	require.NoError(t, err)

	hits, err := table.ReadHits(output)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "nsaid", h.Extra["cohort"])
	}
}

func TestSinkPreloadMissingFile(t *testing.T) {
	sink := NewSink(filepath.Join(t.TempDir(), "absent.tsv"), nil)
	require.NoError(t, sink.Preload(nil))
	assert.Equal(t, 0, sink.Len())
}
