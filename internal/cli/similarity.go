package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkral/annomine/seal"
	"github.com/tkral/annomine/similarity"
	"github.com/tkral/annomine/table"
)

var simFlags struct {
	hits         string
	outDir       string
	minCompounds int
	minHits      int
	minNonzero   int
	workers      int
	suffix       string
}

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Compute pairwise compound similarity (J') from a sealed hit table",
	Long: `Similarity partitions a sealed hit table by unit key and computes, per
key, the full pairwise compound-compound overlap matrix. Each key's matrix
is cached as a sealed partial and reused on the next invocation; keys
failing the quality gate are excluded from the final concatenation but
their partials are retained for inspection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ok, err := seal.Verify(simFlags.hits)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not sealed; refusing to compute similarity from possibly-partial hits", simFlags.hits)
		}
		hits, err := table.ReadHits(simFlags.hits)
		if err != nil {
			return err
		}
		logger.Info("read hits", "count", len(hits), "path", simFlags.hits)
		if err := os.MkdirAll(simFlags.outDir, 0o755); err != nil {
			return err
		}

		engine := similarity.NewEngine(similarity.Options{
			MinCompounds: simFlags.minCompounds,
			MinHits:      simFlags.minHits,
			MinNonzero:   simFlags.minNonzero,
			Workers:      simFlags.workers,
			Suffix:       simFlags.suffix,
			Logger:       logger,
		})
		report, err := engine.Run(ctx, hits, simFlags.outDir)
		if err != nil {
			return err
		}
		for _, k := range report.Keys {
			logger.Info("key summary",
				"key", k.Key,
				"compounds", k.Stats.NCompounds,
				"hits", k.Stats.NHits,
				"nonzero", k.Stats.NNonzero,
				"reused", k.Reused,
				"passed", k.Passed,
			)
		}
		return nil
	},
}

func init() {
	similarityCmd.Flags().StringVar(&simFlags.hits, "hits", "", "sealed hit table (e.g. combined.tsv from run)")
	similarityCmd.Flags().StringVar(&simFlags.outDir, "out-dir", "", "output directory")
	similarityCmd.Flags().IntVar(&simFlags.minCompounds, "min-compounds", 2, "minimum distinct compounds per key")
	similarityCmd.Flags().IntVar(&simFlags.minHits, "min-hits", 1, "minimum hits per key")
	similarityCmd.Flags().IntVar(&simFlags.minNonzero, "min-nonzero", 1, "minimum nonzero real matrix values per key")
	similarityCmd.Flags().IntVar(&simFlags.workers, "workers", 0, "pair-computation workers per key (0 = GOMAXPROCS)")
	similarityCmd.Flags().StringVar(&simFlags.suffix, "suffix", ".tsv", "artifact suffix (.tsv, .tsv.zst, .tsv.lz4)")
	_ = similarityCmd.MarkFlagRequired("hits")
	_ = similarityCmd.MarkFlagRequired("out-dir")
	rootCmd.AddCommand(similarityCmd)
}
