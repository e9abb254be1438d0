// Package paths resolves configuration, data and content directory
// locations. Each resolver applies the same precedence: command-line flag,
// then config.yaml, then environment, then a default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// appDir is the directory name used under platform config and data roots.
const appDir = "era"

// CWD-relative directory names.
const (
	DefaultDataDirName    = ".era"
	DefaultContentDirName = "content"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir   = "ERA_CONFIG_DIR"
	EnvDataDir     = "ERA_DATA_DIR"
	EnvContentDirs = "ERA_CONTENT_DIRS"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/era (fallback ~/.config/era)
// macOS:   ~/Library/Application Support/era
// Windows: %APPDATA%/era
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir), nil
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/era (fallback ~/.local/share/era)
// macOS:   ~/Library/Application Support/era
// Windows: %APPDATA%/era
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir), nil
}

func xdgDir(env, homeRel string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appDir), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > ERA_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > ERA_DATA_DIR env > $(CWD)/.era.
//
// The data directory holds the snapshot of the content checked out next to
// it, so the default is CWD-relative rather than DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveContentDirs returns the content package roots following the
// precedence chain: flags > configYAMLValues > ERA_CONTENT_DIRS env (a
// path list) > $(CWD)/content. Results are absolute.
func ResolveContentDirs(flags, configYAMLValues []string) ([]string, error) {
	dirs := nonEmpty(flags)
	if len(dirs) == 0 {
		dirs = nonEmpty(configYAMLValues)
	}
	if len(dirs) == 0 {
		dirs = nonEmpty(filepath.SplitList(os.Getenv(EnvContentDirs)))
	}
	if len(dirs) == 0 {
		dirs = []string{DefaultContentDirName}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
