package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tkral/annomine/input"
	"github.com/tkral/annomine/internal/config"
	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/orchestrator"
	"github.com/tkral/annomine/provider"
)

var runFlags struct {
	input   string
	runFile string
	outDir  string
	replace bool
	proceed bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every search in a run file against an input compound table",
	Long: `Run validates every unit in the run file, executes each against the
configured provider, and concatenates all sealed outputs into one sealed
combined artifact plus a manifest.

Units whose output is already sealed are skipped unless --replace is given.
A run that crashed or was interrupted resumes from its checkpoints with
--proceed, re-querying only compounds not yet recorded as done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rf, err := config.Load(runFlags.runFile)
		if err != nil {
			return err
		}
		in, err := input.Read(runFlags.input)
		if err != nil {
			return err
		}
		logger.Info("read input compounds", "count", len(in.IDs), "path", runFlags.input)
		if err := os.MkdirAll(runFlags.outDir, 0o755); err != nil {
			return err
		}

		registry := provider.Default
		if rf.Meta.Rate > 0 {
			registry = limitedRegistry(provider.Default, rate.Limit(rf.Meta.Rate), rf.Meta.Burst)
		}

		runner := orchestrator.NewRunner(registry, orchestrator.Options{
			Replace:   runFlags.replace,
			Proceed:   runFlags.proceed,
			SaveEvery: rf.Meta.SaveEvery,
			Suffix:    rf.Meta.Suffix,
			Logger:    logger,
		})
		report, err := runner.Run(ctx, rf.Search, in, runFlags.outDir)
		if report != nil {
			for _, u := range report.Units {
				logger.Info("unit summary",
					"unit", u.Spec.Key,
					"status", string(u.Status),
					"kept", u.Stats.Kept,
					"processed", u.Stats.Processed,
					"errored", u.Stats.Errored,
					"rows", u.Rows,
				)
			}
		}
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

// limitedRegistry derives a registry whose providers are wrapped with a
// shared-parameter rate limiter. Each unit gets its own limiter: providers
// are independent services, and one slow database should not starve another.
func limitedRegistry(base *provider.Registry, r rate.Limit, burst int) *provider.Registry {
	reg := provider.NewRegistry()
	for _, kind := range base.Kinds() {
		factory, err := base.Resolve(kind)
		if err != nil {
			continue
		}
		reg.Register(kind, func(spec model.UnitSpec) (provider.Provider, error) {
			p, err := factory(spec)
			if err != nil {
				return nil, err
			}
			return provider.NewLimited(p, r, burst), nil
		})
	}
	return reg
}

func init() {
	runCmd.Flags().StringVar(&runFlags.input, "input", "", "input compound table (.txt, .csv, or TSV)")
	runCmd.Flags().StringVar(&runFlags.runFile, "runfile", "", "YAML run file listing searches")
	runCmd.Flags().StringVar(&runFlags.outDir, "out-dir", "", "output directory")
	runCmd.Flags().BoolVar(&runFlags.replace, "replace", false, "recompute units even if already sealed")
	runCmd.Flags().BoolVar(&runFlags.proceed, "proceed", false, "resume partially-completed units from their checkpoints")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("runfile")
	_ = runCmd.MarkFlagRequired("out-dir")
	rootCmd.AddCommand(runCmd)
}
