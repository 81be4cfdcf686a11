// Package config loads and validates the YAML configuration shared by the
// wais server and client subcommands.
package config

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// DefaultDiscoveryAspect is the discovery aspect used when none is
// configured.
const DefaultDiscoveryAspect = "akita.wais.discovery.v1"

// ServiceAspect is the fixed aspect servers advertise their catalog
// service on. Unlike the discovery aspect it is not configurable: clients
// and servers must agree on it to find one another at all.
const ServiceAspect = "akita.wais.service.v1"

// Config is the unified configuration structure for both the server and
// client subcommands. Only the sections relevant to the running role are
// populated at runtime; the rest keep their zero values.
type Config struct {
	Version   int              `yaml:"version,omitempty"`
	Reticulum ReticulumConfig  `yaml:"reticulum,omitempty"`
	Logging   LoggingConfig    `yaml:"logging,omitempty"`
	Identity  IdentityConfig   `yaml:"identity"`
	Discovery DiscoveryConfig  `yaml:"discovery,omitempty"`
	Server    ServerConfig     `yaml:"server,omitempty"`
	Client    ClientConfig     `yaml:"client,omitempty"`
}

// ReticulumConfig names the underlying mesh transport's own configuration
// directory. The field name matches spec.md's wire/config contract even
// though this rework's transport is libp2p rather than literal Reticulum.
// The value is parsed but not read anywhere: the libp2p transport keeps
// its peerstore and swarm state in memory.
type ReticulumConfig struct {
	ConfigDir string `yaml:"config_dir,omitempty"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR. Defaults to INFO.
	Level string `yaml:"level,omitempty"`
}

// IdentityConfig names the persistent key files for each role. Only the
// field for the active role needs to be set.
type IdentityConfig struct {
	ServerIdentityPath string `yaml:"server_identity_path,omitempty"`
	ClientIdentityPath string `yaml:"client_identity_path,omitempty"`
}

// DiscoveryConfig overrides the discovery aspect string.
type DiscoveryConfig struct {
	Aspect string `yaml:"aspect,omitempty"`
}

// ServerInfo holds the metadata a server advertises about itself.
type ServerInfo struct {
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
}

// ServerConfig holds server-role configuration.
type ServerConfig struct {
	DataDir string `yaml:"data_dir"`
	// AnnounceIntervalSec: nil means "use the default" (60s); 0 disables
	// announcing per spec §4.2. A pointer so that an explicit 0 can be told
	// apart from an unset field.
	AnnounceIntervalSec *int       `yaml:"announce_interval_sec,omitempty"`
	ServerInfo          ServerInfo `yaml:"server_info,omitempty"`
}

// ClientConfig holds client-role configuration.
type ClientConfig struct {
	RequestTimeoutSec int    `yaml:"request_timeout_sec,omitempty"`
	ServerCachePath   string `yaml:"server_cache_path,omitempty"`
}

// Aspect returns the configured discovery aspect, or the default if unset.
func (c *Config) Aspect() string {
	if c.Discovery.Aspect == "" {
		return DefaultDiscoveryAspect
	}
	return c.Discovery.Aspect
}

// AnnounceInterval returns the configured announce interval in seconds.
// Defaults to 60 when unset; 0 or negative disables announcing, matching
// spec §4.2 ("Interval ≤ 0 disables announcing").
func (s *ServerConfig) AnnounceInterval() int {
	if s.AnnounceIntervalSec == nil {
		return 60
	}
	return *s.AnnounceIntervalSec
}

// RequestTimeout returns the configured request timeout in seconds,
// defaulting to 30 per spec §6.
func (c *ClientConfig) RequestTimeout() int {
	if c.RequestTimeoutSec <= 0 {
		return 30
	}
	return c.RequestTimeoutSec
}
