package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/civiclens/signalgraph/internal/ledger"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	RunID string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the causal event history of a run",
		Long: `Print one run's persisted events in seq order, indented by causal
depth so the parent/child chains are visible.

Examples:
  signalgraph events --db file:./signalgraph.db --run 8f14e45f-...
  signalgraph events --db file:./signalgraph.db --run 8f14e45f-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	svc, err := opts.openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	events, err := svc.EventsByRun(context.Background(), opts.RunID)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), events)
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintf(w, "No events found for run %s.\n", opts.RunID)
		return nil
	}

	depths := causalDepths(events)
	for _, ev := range events {
		indent := strings.Repeat("  ", depths[ev.Seq])
		fmt.Fprintf(w, "%s%d %s %s\n", indent, ev.Seq, ev.TS.Format("15:04:05.000"), ev.EventType)
		if opts.Verbose {
			fmt.Fprintf(w, "%s  %s\n", indent, string(ev.Payload))
		}
	}
	return nil
}

// causalDepths computes each event's depth in its causal tree. Events
// arrive in seq order, so a parent's depth is always known before its
// children's.
func causalDepths(events []ledger.StoredEvent) map[int64]int {
	depths := make(map[int64]int, len(events))
	for _, ev := range events {
		if ev.ParentSeq == nil {
			depths[ev.Seq] = 0
			continue
		}
		depths[ev.Seq] = depths[*ev.ParentSeq] + 1
	}
	return depths
}
