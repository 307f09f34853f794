package cmd

import (
	"github.com/spf13/cobra"

	"exptrack/internal/config"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exptrack",
		Short: "Orchestrates tracked simulation experiments and metric aggregation",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "experiment config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newReportCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}
