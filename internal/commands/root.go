// Package commands provides CLI commands for querychat.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/querychat/internal/models"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// NewRootCmd creates the querychat command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	deps = deps.withDefaults()
	flags := &globalFlags{}
	var fileFlag string

	rootCmd := &cobra.Command{
		Use:   "querychat [message]",
		Short: "Terminal chat client for a /query backend",
		Long: `querychat sends your questions to a query backend and shows its replies.

Examples:
  querychat chat                          Start the interactive chat window
  querychat "Show me data analyst jobs"   Send a single query
  querychat -f question.txt               Read the query from a file
  echo "What is trending?" | querychat    Read the query from stdin
  querychat serve-dev                     Run a local stand-in backend
  querychat config set base_url http://localhost:5000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "querychat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			text, ok, err := readQuery(cmd.InOrStdin(), fileFlag, args)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}

			s, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()
			return runQuery(cmd.Context(), deps, s, cmd.OutOrStdout(), cmd.ErrOrStderr(), text)
		},
	}

	flags.register(rootCmd)
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read the query from a file")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(NewChatCmd(deps, flags))
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewPingCmd(deps, flags))
	rootCmd.AddCommand(NewServeDevCmd(flags))

	return rootCmd
}

// readQuery picks the query source: -f file, then piped stdin, then the
// positional argument. File and stdin text lose surrounding whitespace,
// such as the trailing newline from echo; an argument is sent as typed.
func readQuery(in io.Reader, file string, args []string) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}

	if hasPipedInput(in) {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, true, nil
		}
	}

	if len(args) > 0 {
		return args[0], true, nil
	}
	return "", false, nil
}

// shutdownSignals cancel the command context; serve-dev shuts down gracefully on either
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// signalContext returns a context cancelled by the first shutdown signal
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

// Execute runs the root command
func Execute() {
	models.Version = Version

	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := NewRootCmd(nil).ExecuteContext(ctx); err != nil {
		var shown *reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// reportedError marks an error that has already been shown to the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
