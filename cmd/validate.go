package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"exptrack/internal/config"
	"exptrack/internal/invoker"
	"exptrack/internal/parse"
)

var flagValidateSweep string

// newValidateCmd checks a configuration without running anything: parsing
// method resolution, experiment script presence, and sweep document shape
// are exactly the failures that would otherwise abort a batch at startup.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration without running experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := parse.Resolve(cfg.Parsing); err != nil {
				return fmt.Errorf("parsing-setup: %w", err)
			}
			if _, err := invoker.New(cfg.Execution); err != nil {
				return fmt.Errorf("execution-setup: %w", err)
			}
			if flagValidateSweep != "" {
				doc, err := config.LoadSweep(flagValidateSweep)
				if err != nil {
					return err
				}
				fmt.Printf("Sweep: %d agent(s), %d run(s) per sweep\n",
					doc.Setup.Agents, doc.Setup.RunsPerSweep)
			}
			fmt.Println("Configuration OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&flagValidateSweep, "sweep", "", "sweep config file to validate too")
	return cmd
}
