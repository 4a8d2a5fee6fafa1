package commands

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/querychat/internal/devserver"
	"github.com/diogo/querychat/internal/logging"
)

// NewServeDevCmd creates the local development backend command
func NewServeDevCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		latency time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run a local stand-in for the query backend",
		Long: `Serve POST /query with canned job data so querychat can be tried
without the retrieval backend. Replies look like the real service's:
response_message plus retrieved_jobs or trending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := flags.logLevel
			if level == "" {
				level = "info"
			}
			// No TUI owns the terminal here, so access logs go to stderr
			log := logging.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}, level)

			srv := devserver.New(
				devserver.WithLogger(log),
				devserver.WithLatency(latency),
			)
			return srv.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", devserver.DefaultAddr, "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay every reply by this long")
	return cmd
}
