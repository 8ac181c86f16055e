// File: cmd/install.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/adb"
	"github.com/xkilldash9x/taskdroid-cli/internal/apk"
	"github.com/xkilldash9x/taskdroid-cli/internal/observability"
)

// newInstallCmd creates the `install` command.
func newInstallCmd() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install <apk path>",
		Short: "Installs an APK on the connected device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			serial, err := resolveSerial(ctx, logger, cfg.Device.Serial)
			if err != nil {
				return err
			}
			runner := adb.NewRunner(logger, serial)
			installer := apk.NewInstaller(logger, runner)

			apkPath := args[0]
			if err := installer.Install(ctx, apkPath); err != nil {
				return err
			}

			// Verify the install when the package name is recoverable.
			if info, err := apk.NewAnalyzer(logger).Inspect(ctx, apkPath); err == nil {
				present, err := installer.IsPackagePresent(ctx, info.PackageName)
				if err != nil {
					logger.Warn("Could not verify installed package", zap.Error(err))
				} else if !present {
					return fmt.Errorf("package %s not present after install", info.PackageName)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s)\n", info.Label, info.PackageName)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Installed.")
			}
			return nil
		},
	}
	return installCmd
}
