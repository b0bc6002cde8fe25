package comp

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's options. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	// ScaleFactor is the display scale applied to outputs that do not
	// declare their own.
	ScaleFactor float64 `yaml:"scale_factor"`

	// MaxFPS caps the renderer's cadence. 0 means unlimited.
	MaxFPS uint `yaml:"max_fps"`

	// EnabledProtocols lists the protocol globals offered to clients.
	// An empty list enables everything.
	EnabledProtocols []string `yaml:"enabled_protocols"`

	// AllowClients and DenyClients are glob patterns matched against a
	// connecting client's reported name. Deny wins over allow; an
	// empty allow list allows everything not denied.
	AllowClients []string `yaml:"allow_clients"`
	DenyClients  []string `yaml:"deny_clients"`

	// MaxClientMemory bounds the pixel memory a single client may have
	// mapped, in bytes. 0 means unlimited.
	MaxClientMemory int64 `yaml:"max_client_memory"`

	// MaxClients bounds the number of simultaneous connections. 0
	// means unlimited.
	MaxClients uint `yaml:"max_clients"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ScaleFactor: 1,
	}
}

// LoadConfig reads a YAML configuration file. Failures are system
// errors: a compositor with a broken configuration does not start.
func LoadConfig(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, SystemError{Err: fmt.Errorf("read config: %w", err)}
	}

	cfg := DefaultConfig()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, SystemError{Err: fmt.Errorf("parse config: %w", err)}
	}
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = 1
	}
	return cfg, nil
}

// ProtocolEnabled reports whether the named protocol global should be
// offered to clients.
func (cfg *Config) ProtocolEnabled(name string) bool {
	if len(cfg.EnabledProtocols) == 0 {
		return true
	}
	for _, p := range cfg.EnabledProtocols {
		if p == name {
			return true
		}
	}
	return false
}

// AllowsClient reports whether a client with the given name may
// connect. Patterns use path.Match syntax.
func (cfg *Config) AllowsClient(name string) bool {
	for _, pat := range cfg.DenyClients {
		if ok, _ := path.Match(pat, name); ok {
			return false
		}
	}
	if len(cfg.AllowClients) == 0 {
		return true
	}
	for _, pat := range cfg.AllowClients {
		if ok, _ := path.Match(pat, name); ok {
			return true
		}
	}
	return false
}
