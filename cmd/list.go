package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"exptrack/internal/metrics"
	"exptrack/internal/parse"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered parsing methods and metric-type handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsNames, logfileNames, artifactsNames := parse.MethodNames()
			fmt.Println("Parsing methods:")
			fmt.Printf("  metrics:   %s\n", strings.Join(metricsNames, ", "))
			fmt.Printf("  logfile:   %s\n", strings.Join(logfileNames, ", "))
			fmt.Printf("  artifacts: %s\n", strings.Join(artifactsNames, ", "))
			fmt.Println("\nMetric types:")
			for _, name := range metrics.HandlerNames() {
				fmt.Printf("  - %s\n", name)
			}
			return nil
		},
	}
}
