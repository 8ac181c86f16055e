// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/adb"
	"github.com/xkilldash9x/taskdroid-cli/internal/agent"
	"github.com/xkilldash9x/taskdroid-cli/internal/annotate"
	"github.com/xkilldash9x/taskdroid-cli/internal/device"
	"github.com/xkilldash9x/taskdroid-cli/internal/knowledge"
	"github.com/xkilldash9x/taskdroid-cli/internal/observability"
	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
	"github.com/xkilldash9x/taskdroid-cli/internal/vlm"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <task description>",
		Short: "Runs the agent against a connected device",
		Long: `Run starts the agent loop. The task description tells the model what to
achieve; with --mode auto the description itself is classified as either a
concrete task or an open-ended exploration.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("vlm.provider", cmd.Flags().Lookup("provider")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			taskDesc := strings.Join(args, " ")
			appPackage, _ := cmd.Flags().GetString("app")
			mode, _ := cmd.Flags().GetString("mode")

			runID := uuid.New().String()
			logger.Info("Starting agent run",
				zap.String("run_id", runID),
				zap.String("task", taskDesc),
				zap.String("app", appPackage),
				zap.String("mode", mode))

			serial, err := resolveSerial(ctx, logger, cfg.Device.Serial)
			if err != nil {
				return err
			}
			runner := adb.NewRunner(logger, serial)

			operator, err := device.New(ctx, logger, runner, cfg.Device.RemoteTempDir)
			if err != nil {
				return fmt.Errorf("initializing device: %w", err)
			}

			gateway, err := vlm.NewGateway(ctx, logger, cfg.VLM)
			if err != nil {
				return fmt.Errorf("initializing model gateway: %w", err)
			}

			if mode == "auto" {
				mode, err = classifyMode(ctx, logger, gateway, taskDesc)
				if err != nil {
					return err
				}
			}
			if mode != agent.ModeTask && mode != agent.ModeExplore {
				return fmt.Errorf("unsupported mode %q (expected task, explore or auto)", mode)
			}

			if appPackage != "" {
				if err := operator.LaunchApp(ctx, appPackage); err != nil {
					return fmt.Errorf("launching %s: %w", appPackage, err)
				}
				logger.Info("Waiting for app to load",
					zap.String("app", appPackage),
					zap.Duration("wait", cfg.Agent.AppLoadWait))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(cfg.Agent.AppLoadWait):
				}
				defer func() {
					if err := operator.CloseApp(context.WithoutCancel(ctx), appPackage); err != nil {
						logger.Warn("Failed to close app", zap.Error(err))
					}
				}()
			}

			store, err := knowledge.NewStore(logger, cfg.Knowledge.DocsDir)
			if err != nil {
				return fmt.Errorf("initializing knowledge store: %w", err)
			}

			taskDir := filepath.Join(os.TempDir(), "taskdroid", runID)
			navigator, err := agent.NewNavigator(
				logger, cfg, runID, taskDir, taskDesc,
				operator, gateway,
				annotate.New(logger, cfg.Agent.GridRows, cfg.Agent.GridCols),
				store,
				ui.NewExtractor(logger, cfg.Device.MinElementDist),
			)
			if err != nil {
				return fmt.Errorf("initializing navigator: %w", err)
			}

			return navigator.Run(ctx, mode)
		},
	}

	runCmd.Flags().StringP("app", "a", "", "package name of the app to launch before the run")
	runCmd.Flags().StringP("mode", "m", "auto", "agent mode: task, explore or auto")
	runCmd.Flags().StringP("provider", "p", "", "VLM provider: gemini or openai")
	return runCmd
}

// resolveSerial picks the device to talk to. An explicit serial wins; with
// exactly one connected device it is used implicitly; anything else is an
// error the user has to resolve.
func resolveSerial(ctx context.Context, logger *zap.Logger, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	devices, err := adb.ListDevices(ctx, logger)
	if err != nil {
		return "", fmt.Errorf("listing devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return "", fmt.Errorf("no devices connected; plug in a device or start an emulator")
	case 1:
		logger.Info("Using the only connected device", zap.String("serial", devices[0]))
		return devices[0], nil
	default:
		return "", fmt.Errorf("%d devices connected; select one with --device", len(devices))
	}
}

// classifyMode asks the model whether the description is a concrete task or
// an exploration request.
func classifyMode(ctx context.Context, logger *zap.Logger, gateway *vlm.Gateway, taskDesc string) (string, error) {
	response, err := gateway.GetResponse(ctx, agent.ClassifierPrompt(taskDesc), nil)
	if err != nil {
		return "", fmt.Errorf("classifying task description: %w", err)
	}
	verdict := strings.ToUpper(strings.TrimSpace(response))
	mode := agent.ModeTask
	if strings.Contains(verdict, "EXPLORE") {
		mode = agent.ModeExplore
	}
	logger.Info("Classified task description", zap.String("mode", mode))
	return mode, nil
}
