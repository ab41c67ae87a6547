package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"gridvolt/internal/casebuilder"
	"gridvolt/internal/config"
	"gridvolt/internal/dataset"
	"gridvolt/internal/metrics"
	"gridvolt/internal/powerflow"
	"gridvolt/internal/server"
	"gridvolt/internal/trainer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// version is set at link time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	opts := &trainOptions{}
	root := &cobra.Command{
		Use:          "gridvolt",
		Short:        "Fit a linear bus-voltage predictor on load-change power-flow cases",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Run:          opts.run,
	}
	opts.bind(root)

	root.AddCommand(
		newTrainCmd(),
		newCasesCmd(),
		newBuildersCmd(),
		newMappingCmd(),
		newPatternCmd(),
		newVersionCmd(),
	)
	return root
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run a training session (same as the bare command)",
		Args:  cobra.NoArgs,
		Run:   opts.run,
	}
	opts.bind(cmd)
	return cmd
}

type trainOptions struct {
	cfgPath      string
	overrides    config.Overrides
	learningRate float64
	steps        int
}

func (t *trainOptions) bind(cmd *cobra.Command) {
	o := &t.overrides
	flags := cmd.Flags()
	flags.StringVar(&t.cfgPath, "config", "", "Path to YAML config")
	flags.StringVar(&o.CaseFile, "case", "", "IEEE common format case file")
	flags.StringVar(&o.Builder, "builder", "", "Training case builder name")
	flags.IntVar(&o.TrainPoints, "train-points", 0, "Number of training cases")
	flags.Float64Var(&t.learningRate, "learning-rate", 0, "Gradient descent learning rate")
	flags.IntVar(&t.steps, "steps", 0, "Number of training steps")
	flags.IntVar(&o.LogEvery, "log-every", 0, "Log every N steps")
	flags.IntVar(&o.NumWorkers, "num-workers", 0, "Goroutines generating training cases")
	flags.Int64Var(&o.Seed, "seed", 0, "Seed for the test case scale factor")
	flags.StringVar(&o.PatternFile, "pattern-file", "", "Network operation patterns to match the case against")
	flags.StringVar(&o.MetricsAddr, "metrics-addr", "", "Serve /metrics and /status on this address")
}

// resolve loads the config and applies flags; learning rate and steps apply
// whenever given, so 0 can be set from the command line.
func (t *trainOptions) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(t.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	o := t.overrides
	if cmd.Flags().Changed("learning-rate") {
		o.LearningRate = &t.learningRate
	}
	if cmd.Flags().Changed("steps") {
		o.TrainSteps = &t.steps
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (t *trainOptions) run(cmd *cobra.Command, args []string) {
	cfg, err := t.resolve(cmd)
	if err != nil {
		log.Fatal(err)
	}
	if err := train(cfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

func train(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	status := &trainer.Status{}
	if cfg.MetricsAddr != "" {
		srv := server.Start(cfg.MetricsAddr, server.NewRouter(status, reg))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics server shutdown: %v", err)
			}
		}()
	}

	svc := casebuilder.NewService(casebuilder.Options{
		NumWorkers:    cfg.NumWorkers,
		Seed:          cfg.Seed,
		Solver:        powerflow.DefaultOptions(),
		BusMapping:    cfg.BusMapping,
		BranchMapping: cfg.BranchMapping,
		PatternFile:   cfg.PatternFile,
	})

	res, err := trainer.Run(ctx, trainer.RunConfig{
		Provider:     svc,
		CaseFile:     cfg.CaseFile,
		Builder:      cfg.Builder,
		TrainPoints:  cfg.TrainPoints,
		Steps:        cfg.TrainSteps,
		LearningRate: cfg.LearningRate,
		LogEvery:     cfg.LogEvery,
		Collectors:   metrics.NewCollectors(reg),
		Status:       status,
	})
	if err != nil {
		return err
	}
	info := svc.Info()
	log.Printf("case=%s name=%q pattern=%q size=%d steps=%d final_loss=%.6f",
		info.Filename, info.Name, info.Pattern, res.Model.Size(), res.Model.Steps(), res.FinalLoss)
	return nil
}

func newCasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases <root>...",
		Short: "List IEEE common format cases with their bus and branch counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := dataset.DiscoverAll(args)
			if err != nil {
				return err
			}
			for _, c := range found {
				net, err := powerflow.LoadIEEECDF(c.Path)
				if err != nil {
					log.Printf("case=%s skipped: %v", c.Path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tbuses=%d\tbranches=%d\n", c.Path, net.NumActiveBuses(), net.NumActiveBranches())
			}
			return nil
		},
	}
}

func newBuildersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "builders",
		Short: "List training case builders",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range casebuilder.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping <case> <bus-file> <branch-file>",
		Short: "Write bus and branch index mapping files for a case",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := powerflow.LoadIEEECDF(args[0])
			if err != nil {
				return err
			}
			m := casebuilder.MappingOf(net)
			if err := m.Save(args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buses=%d branches=%d\n", len(m.Bus), len(m.Branch))
			return nil
		},
	}
}

func newPatternCmd() *cobra.Command {
	var busFile, branchFile, out string
	cmd := &cobra.Command{
		Use:   "pattern <case>...",
		Short: "Print the network operation pattern of each case",
		Long: "Print the network operation pattern of each case relative to a mapping. " +
			"Without mapping files the first case's buses and branches form the mapping. " +
			"Cases with an already seen pattern are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mapping *casebuilder.Mapping
			if busFile != "" || branchFile != "" {
				m, err := casebuilder.LoadMapping(busFile, branchFile)
				if err != nil {
					return err
				}
				mapping = m
			}
			var patterns []casebuilder.Pattern
			for _, path := range args {
				net, err := powerflow.LoadIEEECDF(path)
				if err != nil {
					return err
				}
				if mapping == nil {
					mapping = casebuilder.MappingOf(net)
				}
				if p, ok := casebuilder.MatchPattern(patterns, mapping, net); ok {
					log.Printf("case=%s pattern=%s", path, p.Name)
					continue
				}
				p := mapping.PatternOf(fmt.Sprintf("Pattern-%d", len(patterns)+1), net)
				patterns = append(patterns, p)
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if out != "" {
				return casebuilder.SavePatterns(out, patterns)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&busFile, "bus-mapping", "", "Bus id to index mapping file")
	cmd.Flags().StringVar(&branchFile, "branch-mapping", "", "Branch id to index mapping file")
	cmd.Flags().StringVar(&out, "out", "", "Also write the patterns to this file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gridvolt version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gridvolt %s\n", version)
		},
	}
}
