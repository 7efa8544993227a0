// Package cmd provides the command-line interface of dosflow.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/dosflow/dosflow/config"
	"github.com/dosflow/dosflow/internal/logging"
)

type rootOptions struct {
	configFile string
	envFiles   []string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configFile, o.envFiles...)
}

// NewRootCommand creates the dosflow command with all its subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dosflow",
		Short: "dosflow runs the integrated model of a segmented-mirror telescope.",
		Long: `dosflow runs the integrated model of a segmented-mirror ` +
			`telescope: wind loads, the structural plant, and the mount, ` +
			`M1 and M2 control loops, stepped at the sampling rate.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"scenario YAML file")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env", []string{".env"},
		"files of DOSFLOW_* variables loaded before the environment is read")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newCheckCommand(opts),
		newFlowchartCommand(opts),
	)

	return rootCmd
}

// Execute runs the command line and exits, flushing what was registered to
// run at exit.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
