// File: cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/taskdroid-cli/internal/adb"
	"github.com/xkilldash9x/taskdroid-cli/internal/observability"
)

// newDevicesCmd creates the `devices` command.
func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Lists connected Android devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			devices, err := adb.ListDevices(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No devices connected.")
				return nil
			}
			for _, serial := range devices {
				fmt.Fprintln(cmd.OutOrStdout(), serial)
			}
			return nil
		},
	}
}
