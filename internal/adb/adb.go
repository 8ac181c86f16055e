// File: internal/adb/adb.go

// Package adb wraps the Android Debug Bridge binary. Every device
// interaction in the application funnels through Runner, which handles
// per-device routing, output capture and log redaction.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner executes adb commands against a single device.
type Runner struct {
	logger *zap.Logger
	serial string
	// execCommand is swapped out in tests.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a Runner bound to the given device serial. An empty
// serial lets adb pick the only attached device.
func NewRunner(logger *zap.Logger, serial string) *Runner {
	return &Runner{
		logger:      logger.Named("adb"),
		serial:      serial,
		execCommand: exec.CommandContext,
	}
}

// NewRunnerWithExec creates a Runner with a custom command factory; used by
// tests to fake adb output.
func NewRunnerWithExec(logger *zap.Logger, serial string, execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd) *Runner {
	r := NewRunner(logger, serial)
	r.execCommand = execCommand
	return r
}

// Serial returns the device serial this runner is bound to.
func (r *Runner) Serial() string { return r.serial }

// Run executes "adb [-s serial] args..." and returns trimmed stdout.
// A non-zero exit status is returned as an error carrying stderr.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if r.serial != "" {
		full = append(full, "-s", r.serial)
	}
	full = append(full, args...)

	r.logger.Debug("Executing adb command", zap.String("cmd", redact(full)))

	cmd := r.execCommand(ctx, "adb", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errOut := strings.TrimSpace(stderr.String())
		if errOut == "" {
			errOut = err.Error()
		}
		r.logger.Warn("adb command failed",
			zap.String("cmd", redact(full)),
			zap.String("stderr", errOut))
		return "", fmt.Errorf("adb %s: %s", full[len(full)-1], errOut)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Shell executes "adb shell args...".
func (r *Runner) Shell(ctx context.Context, args ...string) (string, error) {
	return r.Run(ctx, append([]string{"shell"}, args...)...)
}

// redact hides text input payloads so typed secrets never reach the logs.
func redact(args []string) string {
	for i, a := range args {
		if a == "text" && i > 0 && args[i-1] == "input" && i+1 < len(args) {
			masked := make([]string, len(args))
			copy(masked, args)
			masked[i+1] = "<hidden>"
			return "adb " + strings.Join(masked, " ")
		}
	}
	return "adb " + strings.Join(args, " ")
}

// ListDevices returns the serials of all attached devices in the "device"
// state, skipping offline and unauthorized entries.
func ListDevices(ctx context.Context, logger *zap.Logger) ([]string, error) {
	r := NewRunner(logger, "")
	out, err := r.Run(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return parseDeviceList(out), nil
}

// parseDeviceList extracts serials from "adb devices" output.
func parseDeviceList(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}
