// File: internal/apk/apk.go

// Package apk wraps the host-side APK tooling: inspecting packages with
// aapt and installing them over ADB.
package apk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/adb"
)

// Info is the subset of aapt badging output the CLI surfaces.
type Info struct {
	PackageName        string
	Label              string
	VersionName        string
	LaunchableActivity string
}

// Analyzer extracts package metadata from APK files via aapt.
type Analyzer struct {
	logger *zap.Logger
	// aaptPath overrides discovery, used by tests.
	aaptPath string
}

// NewAnalyzer creates an Analyzer that locates aapt on demand.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("apk")}
}

// Inspect runs aapt dump badging against the APK and parses the result.
func (a *Analyzer) Inspect(ctx context.Context, apkPath string) (*Info, error) {
	if _, err := os.Stat(apkPath); err != nil {
		return nil, fmt.Errorf("APK file not found: %s", apkPath)
	}
	aapt, err := a.findAapt()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, aapt, "dump", "badging", apkPath)
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("aapt failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("running aapt: %w", err)
	}

	info := parseBadging(string(output))
	if info.PackageName == "" {
		return nil, fmt.Errorf("could not parse package name from aapt output")
	}
	return info, nil
}

// parseBadging pulls the fields we care about out of aapt badging output.
// Values are single-quoted key='value' pairs.
func parseBadging(output string) *Info {
	info := &Info{}
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "package: name="):
			info.PackageName = quotedValue(line, "name=")
			info.VersionName = quotedValue(line, "versionName=")
		case strings.HasPrefix(line, "application-label:"):
			info.Label = quotedValue(line, "application-label:")
		case strings.HasPrefix(line, "launchable-activity: name="):
			info.LaunchableActivity = quotedValue(line, "name=")
		}
	}
	return info
}

// quotedValue extracts the single-quoted value following key in line.
func quotedValue(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(key):]
	start := strings.IndexByte(rest, '\'')
	if start < 0 {
		return ""
	}
	rest = rest[start+1:]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// findAapt locates the aapt binary: PATH first, then the newest build-tools
// directory under the Android SDK root.
func (a *Analyzer) findAapt() (string, error) {
	if a.aaptPath != "" {
		return a.aaptPath, nil
	}
	if path, err := exec.LookPath("aapt"); err == nil {
		return path, nil
	}

	sdkRoot := os.Getenv("ANDROID_HOME")
	if sdkRoot == "" {
		sdkRoot = os.Getenv("ANDROID_SDK_ROOT")
	}
	var roots []string
	if sdkRoot != "" {
		roots = append(roots, filepath.Join(sdkRoot, "build-tools"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, "Android", "Sdk", "build-tools"))
	}

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		var versions []string
		for _, e := range entries {
			if e.IsDir() {
				versions = append(versions, e.Name())
			}
		}
		// Newest build-tools first.
		sort.Sort(sort.Reverse(sort.StringSlice(versions)))
		for _, v := range versions {
			candidate := filepath.Join(root, v, "aapt")
			if _, err := os.Stat(candidate); err == nil {
				a.logger.Debug("Found aapt", zap.String("path", candidate))
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("aapt not found; install Android SDK build-tools and set ANDROID_HOME")
}

// Installer installs APKs on a device through ADB with retries.
type Installer struct {
	logger  *zap.Logger
	runner  *adb.Runner
	retries int
	delay   time.Duration
}

// NewInstaller creates an Installer with the default two attempts.
func NewInstaller(logger *zap.Logger, runner *adb.Runner) *Installer {
	return &Installer{
		logger:  logger.Named("installer"),
		runner:  runner,
		retries: 2,
		delay:   3 * time.Second,
	}
}

// Install pushes the APK onto the device. Reinstall is allowed and test
// packages are accepted, matching a developer workflow.
func (i *Installer) Install(ctx context.Context, apkPath string) error {
	if _, err := os.Stat(apkPath); err != nil {
		return fmt.Errorf("APK file not found: %s", apkPath)
	}

	var lastErr error
	for attempt := 1; attempt <= i.retries; attempt++ {
		i.logger.Info("Installing APK",
			zap.String("apk", filepath.Base(apkPath)),
			zap.Int("attempt", attempt), zap.Int("retries", i.retries))

		output, err := i.runner.Run(ctx, "install", "-r", "-t", apkPath)
		if err == nil && strings.Contains(output, "Success") {
			i.logger.Info("APK installed successfully")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = fmt.Errorf("unexpected install output: %s", strings.TrimSpace(output))
		}
		lastErr = err
		i.logger.Warn("Install attempt failed", zap.Error(err))

		if attempt < i.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(i.delay):
			}
		}
	}
	return fmt.Errorf("failed to install APK after %d attempts: %w", i.retries, lastErr)
}

// IsPackagePresent reports whether the package is installed on the device.
func (i *Installer) IsPackagePresent(ctx context.Context, packageName string) (bool, error) {
	output, err := i.runner.Shell(ctx, "pm", "list", "packages", packageName)
	if err != nil {
		return false, err
	}
	return strings.Contains(output, "package:"+packageName), nil
}
