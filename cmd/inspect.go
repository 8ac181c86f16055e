// File: cmd/inspect.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/taskdroid-cli/internal/apk"
	"github.com/xkilldash9x/taskdroid-cli/internal/observability"
)

// newInspectCmd creates the `inspect` command.
func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <apk path>",
		Short: "Prints package metadata for an APK file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			info, err := apk.NewAnalyzer(logger).Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Package:  %s\n", info.PackageName)
			fmt.Fprintf(out, "Label:    %s\n", info.Label)
			if info.VersionName != "" {
				fmt.Fprintf(out, "Version:  %s\n", info.VersionName)
			}
			if info.LaunchableActivity != "" {
				fmt.Fprintf(out, "Activity: %s\n", info.LaunchableActivity)
			}
			return nil
		},
	}
}
