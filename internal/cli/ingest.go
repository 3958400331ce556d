package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/civiclens/signalgraph/internal/signal"
	"github.com/civiclens/signalgraph/pkg/signalgraph"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	SourceURL string
	InputPath string
}

// ingestInput is the JSON batch shape read from a file or stdin.
type ingestInput struct {
	SourceURL  string               `json:"sourceUrl"`
	Candidates []signal.PendingNode `json:"candidates"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest an extracted signal batch",
		Long: `Read a JSON batch of extracted signal candidates and run it through
identity resolution to settlement. Candidates without embeddings are
embedded via the configured provider, subject to the run budget.

Input shape:
  {"sourceUrl": "https://...", "candidates": [{"nodeType": "event", "title": "...", ...}]}

Examples:
  signalgraph ingest --db file:./signalgraph.db --input batch.json
  cat batch.json | signalgraph ingest --db file:./signalgraph.db
  signalgraph ingest --input batch.json --source https://override.example --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.InputPath, "input", "", "path to JSON batch file (default: stdin)")
	cmd.Flags().StringVar(&opts.SourceURL, "source", "", "override the batch source URL")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	input, err := readBatch(opts.InputPath)
	if err != nil {
		return err
	}
	if opts.SourceURL != "" {
		input.SourceURL = opts.SourceURL
	}

	svc, err := opts.openService()
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	res, err := svc.IngestBatch(context.Background(), input.SourceURL, input.Candidates)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return outputIngestText(cmd, res, opts.Verbose)
}

func readBatch(path string) (*ingestInput, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var input ingestInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to parse batch JSON: %w", err)
	}
	return &input, nil
}

func outputIngestText(cmd *cobra.Command, res *signalgraph.IngestResult, verbose bool) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s settled: %d events persisted\n", res.RunID, res.EventsPersisted)
	fmt.Fprintf(w, "  Accepted:        %d\n", res.Summary.Accepted)
	fmt.Fprintf(w, "  Cross-source:    %d\n", res.Summary.CrossSource)
	fmt.Fprintf(w, "  Same-source:     %d\n", res.Summary.SameSource)
	if verbose {
		fmt.Fprintf(w, "  Embeddings used: %d\n", res.EmbeddingsUsed)
		for _, id := range res.Summary.AcceptedNodeIDs {
			fmt.Fprintf(w, "  New node: %s\n", id)
		}
	}
	return nil
}
