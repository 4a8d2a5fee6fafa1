package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPingCmd creates the backend reachability check
func NewPingCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			client, err := deps.NewClient(s.cfg, s.log)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer client.Close()

			if err := client.Ping(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatErrorMessage(err, "Backend unreachable"))
				return &reportedError{err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", client.BaseURL())
			return nil
		},
	}
}
