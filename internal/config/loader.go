package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions returns an error if a config file has overly
// permissive permissions (group/world readable), which makes Load fail.
// Config files may reference key file paths and data directories.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade wais", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}

	return &cfg, nil
}

// LoadOrDefault loads the config at path if it exists, or returns a
// zero-valued default config otherwise (null config ⇒ transport default,
// per spec §6).
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return &Config{Version: CurrentConfigVersion}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Config{Version: CurrentConfigVersion}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	return Load(path)
}

// ValidateServerConfig checks that the fields required by the server
// subcommand are present.
func ValidateServerConfig(cfg *Config) error {
	if cfg.Server.DataDir == "" {
		return ErrMissingDataDir
	}
	return nil
}

// ResolveConfigPaths resolves relative file paths in the config to be
// relative to the config file's directory, so a config under
// ~/.config/wais/ can reference key files and data dirs with relative
// paths.
func ResolveConfigPaths(cfg *Config, configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&cfg.Identity.ServerIdentityPath)
	resolve(&cfg.Identity.ClientIdentityPath)
	resolve(&cfg.Server.DataDir)
	resolve(&cfg.Client.ServerCachePath)
}
