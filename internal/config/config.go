// Package config loads simdiskd's server configuration with the same
// precedence chain as the teacher's config.go: built-in defaults, then an
// optional JSONC config file, then CLI overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds every setting simdiskd needs to start serving.
type Config struct {
	// BackingPath is the host file backing the simulated disk.
	BackingPath string `json:"backing_path"` //nolint:tagliatelle // snake_case for config file

	// FSName is the constructor's fs_name parameter, passed to vfs.Open and
	// returned by Manager.Name; purely descriptive, never sent to clients.
	FSName string `json:"fs_name"` //nolint:tagliatelle // snake_case for config file

	// ConfiguredSize is accepted and threaded through to vfs.Open for
	// signature compatibility (§6), but never changes the on-disk layout.
	ConfiguredSize int64 `json:"configured_size"` //nolint:tagliatelle // snake_case for config file

	// ListenAddress is the TCP address the server binds, e.g. ":9000".
	ListenAddress string `json:"listen_address"` //nolint:tagliatelle // snake_case for config file

	// MaxConnections bounds the worker pool size (§2 "Scheduling model").
	MaxConnections int `json:"max_connections"` //nolint:tagliatelle // snake_case for config file
}

// DefaultConfig returns simdiskd's built-in defaults.
func DefaultConfig() Config {
	return Config{
		BackingPath:    "simdisk.img",
		FSName:         "simdisk",
		ConfiguredSize: 0,
		ListenAddress:  ":9000",
		MaxConnections: 32,
	}
}

// ConfigFileName is the default config file name looked up in the working
// directory, mirroring the teacher's .tk.json.
const ConfigFileName = ".simdiskd.json"

// getGlobalConfigPath returns the global config path: $XDG_CONFIG_HOME
// (or ~/.config) + simdiskd/config.json. Returns "" if it cannot be
// determined.
func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "simdiskd", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "simdiskd", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "simdiskd", "config.json")
	}

	return ""
}

// Overrides carries the subset of Config fields the CLI may override,
// alongside which ones were actually set so a zero value (e.g.
// max-connections=0) is distinguishable from "not passed".
type Overrides struct {
	BackingPath    *string
	FSName         *string
	ConfiguredSize *int64
	ListenAddress  *string
	MaxConnections *int
}

// Load loads configuration with the following precedence (highest wins):
//  1. DefaultConfig
//  2. Global config (~/.config/simdiskd/config.json or $XDG_CONFIG_HOME)
//  3. Project/explicit config file (configPath, or .simdiskd.json if present)
//  4. CLI overrides
func Load(workDir, configPath string, overrides Overrides, env []string) (Config, error) {
	cfg := DefaultConfig()

	globalCfg, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, globalCfg)

	projectCfg, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, projectCfg)
	cfg = applyOverrides(cfg, overrides)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadGlobalConfig(env []string) (Config, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, err
	}

	if !loaded {
		return Config{}, nil
	}

	return cfg, nil
}

func loadProjectConfig(workDir, configPath string) (Config, error) {
	var (
		cfgFile   string
		mustExist bool
	)

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	if !loaded {
		return Config{}, nil
	}

	return cfg, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled, not request-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.BackingPath != "" {
		base.BackingPath = overlay.BackingPath
	}

	if overlay.FSName != "" {
		base.FSName = overlay.FSName
	}

	if overlay.ConfiguredSize != 0 {
		base.ConfiguredSize = overlay.ConfiguredSize
	}

	if overlay.ListenAddress != "" {
		base.ListenAddress = overlay.ListenAddress
	}

	if overlay.MaxConnections != 0 {
		base.MaxConnections = overlay.MaxConnections
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	if o.BackingPath != nil {
		cfg.BackingPath = *o.BackingPath
	}

	if o.FSName != nil {
		cfg.FSName = *o.FSName
	}

	if o.ConfiguredSize != nil {
		cfg.ConfiguredSize = *o.ConfiguredSize
	}

	if o.ListenAddress != nil {
		cfg.ListenAddress = *o.ListenAddress
	}

	if o.MaxConnections != nil {
		cfg.MaxConnections = *o.MaxConnections
	}

	return cfg
}

func validate(cfg Config) error {
	if cfg.BackingPath == "" {
		return ErrBackingPathEmpty
	}

	if cfg.ListenAddress == "" {
		return ErrListenAddressEmpty
	}

	if cfg.MaxConnections <= 0 {
		return ErrMaxConnectionsInvalid
	}

	return nil
}

// Format returns cfg as formatted JSON, for the --print-config diagnostic
// path.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
