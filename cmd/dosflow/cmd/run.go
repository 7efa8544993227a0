package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dosflow/dosflow/simulation"
)

type runOptions struct {
	monitor    bool
	port       int
	parallel   int
	output     string
	duration   float64
	traceEdges bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario and record it.",
		Long: "`run` steps the model to the end of the scenario and writes " +
			"the logged signals and run information into a SQLite file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("duration") {
				cfg.Duration = opts.duration
			}

			if flags.Changed("output") {
				cfg.Logger.Output = opts.output
			}

			if flags.Changed("parallel") {
				cfg.Parallel = opts.parallel
			}

			if flags.Changed("monitor") {
				cfg.Monitor.Enabled = opts.monitor
			}

			if flags.Changed("port") {
				cfg.Monitor.Port = opts.port
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			b := simulation.MakeBuilder().WithConfig(cfg)
			if !cfg.Monitor.Enabled {
				b = b.WithoutMonitoring()
			}

			if opts.traceEdges {
				b = b.WithEdgeTrace()
			}

			s, err := b.Build()
			if err != nil {
				return err
			}
			defer s.Terminate()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.Run(ctx); err != nil {
				return fmt.Errorf("run %s: %w", cfg.Name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d ticks recorded in %s.sqlite3\n",
				s.Model().Now(), s.OutputPath())

			return nil
		},
	}

	flags := runCmd.Flags()
	flags.BoolVar(&opts.monitor, "monitor", false, "serve the web monitor")
	flags.IntVar(&opts.port, "port", 0, "port of the web monitor, random if 0")
	flags.IntVar(&opts.parallel, "parallel", 0, "goroutines per topological level")
	flags.StringVarP(&opts.output, "output", "o", "", "recording file name without extension")
	flags.Float64Var(&opts.duration, "duration", 0, "simulated seconds")
	flags.BoolVar(&opts.traceEdges, "trace-edges", false, "record every payload pushed onto an edge")

	return runCmd
}

