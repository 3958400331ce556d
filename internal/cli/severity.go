package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSeverityCommand creates the severity review command.
func NewSeverityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "severity",
		Short: "Recalculate severity for all stored signals",
		Long: `Run the batch severity review: recompute each node's severity from
its source's trust metrics and its corroboration state, write back only
changed rows, and record a field correction for each change.

Examples:
  signalgraph severity --db file:./signalgraph.db
  signalgraph severity --db file:./signalgraph.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.openService()
			if err != nil {
				return fmt.Errorf("failed to open service: %w", err)
			}
			defer svc.Close()

			report, err := svc.RecalculateSeverity(context.Background(), nil)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Severity review: %d reviewed, %d corrected, %d unchanged, %d skipped\n",
				report.Reviewed, report.Corrected, report.Unchanged, report.Skipped)
			return nil
		},
	}
	return cmd
}
