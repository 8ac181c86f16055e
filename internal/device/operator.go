// File: internal/device/operator.go

// Package device implements the DeviceOperator, the narrow I/O adapter
// between the agent and a physical or emulated Android device. It captures
// screen state (screenshots, UI hierarchy dumps) and applies input
// primitives (taps, swipes, key events, text).
package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/adb"
)

// Keycodes for the Android key events the agent uses.
const (
	keyHome      = 3
	keyBack      = 4
	keyEnter     = 66
	keyDelete    = 67
	keyAppSwitch = 187
)

// Operator is the stateful handle on a connected device. It holds the screen
// dimensions probed at construction time and the on-device scratch directory
// where captures land before being pulled to the host.
type Operator struct {
	runner    *adb.Runner
	logger    *zap.Logger
	remoteDir string

	width  int
	height int
}

// New creates an Operator, prepares the on-device scratch directory and
// probes the screen resolution.
func New(ctx context.Context, logger *zap.Logger, runner *adb.Runner, remoteDir string) (*Operator, error) {
	op := &Operator{
		runner:    runner,
		logger:    logger.Named("device"),
		remoteDir: remoteDir,
	}

	if _, err := runner.Shell(ctx, "mkdir", "-p", remoteDir); err != nil {
		return nil, fmt.Errorf("preparing device temp dir: %w", err)
	}

	w, h, err := op.probeResolution(ctx)
	if err != nil {
		return nil, err
	}
	op.width, op.height = w, h
	op.logger.Info("Device operator ready",
		zap.String("serial", runner.Serial()),
		zap.Int("width", w), zap.Int("height", h))
	return op, nil
}

// Width returns the device screen width in pixels.
func (o *Operator) Width() int { return o.width }

// Height returns the device screen height in pixels.
func (o *Operator) Height() int { return o.height }

// probeResolution parses "wm size" output of the form "Physical size: WxH".
func (o *Operator) probeResolution(ctx context.Context) (int, int, error) {
	out, err := o.runner.Shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, fmt.Errorf("querying screen size: %w", err)
	}
	idx := strings.Index(out, "Physical size:")
	if idx < 0 {
		return 0, 0, fmt.Errorf("unexpected wm size output: %q", out)
	}
	var w, h int
	res := strings.TrimSpace(out[idx+len("Physical size:"):])
	if _, err := fmt.Sscanf(res, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("parsing screen size %q: %w", res, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("degenerate screen size %dx%d", w, h)
	}
	return w, h, nil
}

// -- App management --

// LaunchApp starts an application by package name via the monkey launcher.
func (o *Operator) LaunchApp(ctx context.Context, pkg string) error {
	_, err := o.runner.Shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return fmt.Errorf("launching %s: %w", pkg, err)
	}
	return nil
}

// CloseApp force-stops an application.
func (o *Operator) CloseApp(ctx context.Context, pkg string) error {
	_, err := o.runner.Shell(ctx, "am", "force-stop", pkg)
	return err
}

// -- UI state capture --

// CaptureScreen takes a screenshot on the device and pulls it into localDir.
// It returns the local path of the PNG.
func (o *Operator) CaptureScreen(ctx context.Context, prefix, localDir string) (string, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", err
	}
	remote := o.remoteDir + "/" + prefix + ".png"
	local := filepath.Join(localDir, prefix+".png")

	if _, err := o.runner.Shell(ctx, "screencap", "-p", remote); err != nil {
		return "", fmt.Errorf("screencap: %w", err)
	}
	if _, err := o.runner.Run(ctx, "pull", remote, local); err != nil {
		return "", fmt.Errorf("pulling screenshot: %w", err)
	}
	return local, nil
}

// GetUIDump dumps the UI hierarchy to XML on the device and pulls it into
// localDir. It returns the local path of the XML file.
func (o *Operator) GetUIDump(ctx context.Context, prefix, localDir string) (string, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", err
	}
	remote := o.remoteDir + "/" + prefix + ".xml"
	local := filepath.Join(localDir, prefix+".xml")

	if _, err := o.runner.Shell(ctx, "uiautomator", "dump", remote); err != nil {
		return "", fmt.Errorf("uiautomator dump: %w", err)
	}
	if _, err := o.runner.Run(ctx, "pull", remote, local); err != nil {
		return "", fmt.Errorf("pulling ui dump: %w", err)
	}
	return local, nil
}

// Cleanup removes the on-device scratch directory contents.
func (o *Operator) Cleanup(ctx context.Context) error {
	_, err := o.runner.Shell(ctx, "rm", "-rf", o.remoteDir)
	return err
}

// -- Basic interactions --

// Tap taps the screen at the given absolute coordinates.
func (o *Operator) Tap(ctx context.Context, x, y int) error {
	_, err := o.runner.Shell(ctx, "input", "tap", itoa(x), itoa(y))
	return err
}

// LongPress holds a press at (x, y) for the given duration, implemented as a
// zero-length swipe.
func (o *Operator) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	ms := itoa(int(duration.Milliseconds()))
	_, err := o.runner.Shell(ctx, "input", "swipe", itoa(x), itoa(y), itoa(x), itoa(y), ms)
	return err
}

// Swipe drags from (x0, y0) to (x1, y1) over the given duration.
func (o *Operator) Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	ms := itoa(int(duration.Milliseconds()))
	_, err := o.runner.Shell(ctx, "input", "swipe", itoa(x0), itoa(y0), itoa(x1), itoa(y1), ms)
	return err
}

// SwipeScreen performs a directional swipe across the screen center covering
// distanceRatio of the relevant dimension.
func (o *Operator) SwipeScreen(ctx context.Context, direction string, distanceRatio float64) error {
	cx, cy := o.width/2, o.height/2
	dx := int(float64(o.width) * distanceRatio / 2)
	dy := int(float64(o.height) * distanceRatio / 2)

	const d = 400 * time.Millisecond
	switch strings.ToLower(direction) {
	case "up":
		return o.Swipe(ctx, cx, cy+dy, cx, cy-dy, d)
	case "down":
		return o.Swipe(ctx, cx, cy-dy, cx, cy+dy, d)
	case "left":
		return o.Swipe(ctx, cx+dx, cy, cx-dx, cy, d)
	case "right":
		return o.Swipe(ctx, cx-dx, cy, cx+dx, cy, d)
	default:
		return fmt.Errorf("unknown swipe direction %q", direction)
	}
}

// TypeText sends text input. Spaces become %s per the input tool's encoding.
func (o *Operator) TypeText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	_, err := o.runner.Shell(ctx, "input", "text", escaped)
	return err
}

// -- Key events --

// PressKey sends a raw Android keycode.
func (o *Operator) PressKey(ctx context.Context, keycode int) error {
	_, err := o.runner.Shell(ctx, "input", "keyevent", itoa(keycode))
	return err
}

// Back presses the system back button.
func (o *Operator) Back(ctx context.Context) error { return o.PressKey(ctx, keyBack) }

// Home presses the home button.
func (o *Operator) Home(ctx context.Context) error { return o.PressKey(ctx, keyHome) }

// Enter presses the enter key.
func (o *Operator) Enter(ctx context.Context) error { return o.PressKey(ctx, keyEnter) }

// Delete presses the delete key once.
func (o *Operator) Delete(ctx context.Context) error { return o.PressKey(ctx, keyDelete) }

// AppSwitch opens the recent apps switcher.
func (o *Operator) AppSwitch(ctx context.Context) error { return o.PressKey(ctx, keyAppSwitch) }

// DeleteMultiple presses delete count times with a short settle delay so the
// key events register in order.
func (o *Operator) DeleteMultiple(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := o.Delete(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// OpenNotifications expands the notification shade.
func (o *Operator) OpenNotifications(ctx context.Context) error {
	_, err := o.runner.Shell(ctx, "cmd", "statusbar", "expand-notifications")
	return err
}

func itoa(v int) string { return fmt.Sprintf("%d", v) }
