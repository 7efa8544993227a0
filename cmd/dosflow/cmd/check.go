package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosflow/dosflow/model"
	"github.com/dosflow/dosflow/sim/graph"
)

func newCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the scenario and the model without running it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			t, err := model.Wire(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			m, err := t.Graph.Build()
			if err != nil {
				var verrs graph.ValidationErrors
				if errors.As(err, &verrs) {
					for _, e := range verrs {
						fmt.Fprintf(out, "  %s\n", e)
					}
				}

				return fmt.Errorf("model %s does not validate: %w", cfg.Name, err)
			}

			fmt.Fprintf(out, "model %s: %d nodes, %d edges, %d ticks\n",
				cfg.Name, len(m.Nodes()), len(m.Edges()), cfg.Ticks())

			for i, level := range m.Levels() {
				fmt.Fprintf(out, "  level %d:", i)
				for _, n := range level {
					fmt.Fprintf(out, " %s", n.Name())
				}
				fmt.Fprintln(out)
			}

			return nil
		},
	}
}
