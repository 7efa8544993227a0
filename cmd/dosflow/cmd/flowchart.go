package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosflow/dosflow/model"
)

func newFlowchartCommand(root *rootOptions) *cobra.Command {
	var output string

	flowchartCmd := &cobra.Command{
		Use:   "flowchart",
		Short: "Write the model as a Graphviz digraph.",
		Long: "`flowchart` writes the nodes and edges of the model in DOT. " +
			"Bootstrap edges are dashed and unbounded edges dotted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			t, err := model.Wire(cfg)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()

				w = f
			}

			return t.Graph.Flowchart(w)
		},
	}

	flowchartCmd.Flags().StringVarP(&output, "output", "o", "", "DOT file, stdout if empty")

	return flowchartCmd
}
