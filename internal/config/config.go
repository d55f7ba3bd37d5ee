// Package config resolves the quarantine base directory: the
// ICLOUD_DEDUPE_HOME environment variable when set, otherwise a
// platform-specific application-support default (spec §4.6, §6).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// envHomeVar is the environment variable that overrides the default
// quarantine base directory.
const envHomeVar = "ICLOUD_DEDUPE_HOME"

// defaultSubdir is appended to the platform's application-support
// directory to form the default quarantine base directory.
const defaultSubdir = "icloud-dedupe/quarantine"

// BaseDir resolves the quarantine base directory: ICLOUD_DEDUPE_HOME if
// set and non-empty, otherwise the default per-OS application-support
// path. The directory is not created here — callers create it on first
// use with mode 0700 (spec §4.6).
func BaseDir() (string, error) {
	if dir := os.Getenv(envHomeVar); dir != "" {
		if !filepath.IsAbs(dir) {
			return "", fmt.Errorf("%s must be an absolute path: %q", envHomeVar, dir)
		}
		return dir, nil
	}
	return defaultBaseDir()
}

// defaultBaseDir returns the platform's conventional application-support
// directory for icloud-dedupe's quarantine staging area.
func defaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", defaultSubdir), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, defaultSubdir), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, defaultSubdir), nil
		}
		return filepath.Join(home, ".local", "share", defaultSubdir), nil
	}
}
