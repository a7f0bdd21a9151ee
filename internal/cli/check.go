package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yubzen/specpilot/internal/agent"
	"github.com/yubzen/specpilot/internal/stream"
)

func newCheckCmd(rt *runtime) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the CLI executable is installed and runnable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := rt.service()
			defer svc.Dispose()

			avail := svc.CheckAvailability(cmd.Context())
			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := json.NewEncoder(out).Encode(svc.GetStatus()); err != nil {
					return err
				}
			} else if avail.Available {
				version := avail.Version
				if version == "" {
					version = "unknown version"
				}
				fmt.Fprintf(out, "%s is available (%s)\n", rt.cfg.CLI.Executable, version)
			}
			if !avail.Available {
				return &agent.Error{
					Code:    stream.CodeNotAvailable,
					Message: fmt.Sprintf("%s is not available; install it or set cli.executable in %s", rt.cfg.CLI.Executable, rt.resolvedConfigPath()),
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the service status as JSON")
	return cmd
}
