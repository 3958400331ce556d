// Package cli implements the signalgraph command line interface on top
// of the library facade. Commands construct a service from shared flags,
// run one operation, and render the result as text or JSON.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civiclens/signalgraph/pkg/signalgraph"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	ConfigPath string
	Dims       int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the signalgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "signalgraph",
		Short: "Community signal ingestion core",
		Long:  "Ingest extracted community signals, resolve duplicate identities across sources, and review trust-derived severity.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "libsql database URL (default: file:./signalgraph.db)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().IntVar(&opts.Dims, "dims", 0, "embedding dimensions (default: from config or 4)")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewSeverityCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	return cmd
}

// openService builds a service from the config file (if given), env, and
// flag overrides, in that precedence order.
func (opts *RootOptions) openService() (*signalgraph.Service, error) {
	var cfg *signalgraph.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = signalgraph.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = signalgraph.NewConfigFromEnv()
	}
	if opts.Database != "" {
		cfg.DBURL = opts.Database
	}
	if opts.Dims > 0 {
		cfg.EmbeddingDims = opts.Dims
	}
	return signalgraph.NewService(cfg)
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
