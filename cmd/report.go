package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"exptrack/internal/report"
	"exptrack/internal/tracker"
)

var (
	flagFormat string
	flagDir    string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize runs recorded in the offline tracking store",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := flagDir
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if cfg.Tracking.Mode != "offline" {
					return fmt.Errorf("report reads the offline store; pass --dir or configure offline tracking")
				}
				dir = cfg.Tracking.Dir
			}
			store, err := tracker.OpenStore(dir)
			if err != nil {
				return err
			}
			defer store.Close()
			return report.Generate(store, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().StringVar(&flagDir, "dir", "", "offline tracking store directory")
	return cmd
}
