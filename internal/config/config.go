// Package config provides YAML configuration loading for the gday
// rendezvous server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete rendezvous server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	TLS      TLSConfig      `yaml:"tls"`
	Limits   LimitsConfig   `yaml:"limits"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig controls what address(es) the rendezvous server listens
// on.
type ServerConfig struct {
	// Listen is the address the server accepts connections on.
	// Default: ":2311".
	Listen string `yaml:"listen"`
}

// TLSConfig holds the optional TLS material for the rendezvous server.
// Either the *PEM fields or the plain file-path fields may be set; PEM
// content, if present, takes precedence over the file-path fields.
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`     // certificate file path
	Key     string `yaml:"key"`      // private key file path
	CertPEM string `yaml:"cert_pem"` // certificate PEM content (takes precedence)
	KeyPEM  string `yaml:"key_pem"`  // private key PEM content (takes precedence)
}

// CertAndKeyPEM returns the certificate and key PEM bytes, reading from
// file if the inline PEM fields were left empty.
func (t *TLSConfig) CertAndKeyPEM() (cert, key []byte, err error) {
	if t.CertPEM != "" && t.KeyPEM != "" {
		return []byte(t.CertPEM), []byte(t.KeyPEM), nil
	}
	cert, err = os.ReadFile(t.Cert)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read TLS cert %s: %w", t.Cert, err)
	}
	key, err = os.ReadFile(t.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read TLS key %s: %w", t.Key, err)
	}
	return cert, key, nil
}

// LimitsConfig bounds how much the server lets a single client do.
type LimitsConfig struct {
	// MaxRequestsPerMinute is the per-source-IP rate limit on mutating
	// requests (CreateRoom, RecordPublicAddr, ShareContact). 0 disables
	// rate limiting.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`

	// RoomTimeout is how long an incomplete room (one occupant) is kept
	// before being discarded.
	RoomTimeout time.Duration `yaml:"room_timeout"`
}

// LoggingConfig selects the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // default ":9311"
}

// Defaults returns a Config with the rendezvous server's default
// values filled in.
func Defaults() Config {
	return Config{
		Server:  ServerConfig{Listen: ":2311"},
		Limits:  LimitsConfig{MaxRequestsPerMinute: 60, RoomTimeout: 10 * time.Minute},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9311"},
	}
}

// Load reads and parses a Config from a YAML file at path, applying
// Defaults first so the file only needs to override what it cares
// about.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for internally inconsistent settings.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("config: server.listen must not be empty")
	}
	if c.TLS.Enabled {
		if c.TLS.CertPEM == "" && c.TLS.Cert == "" {
			return fmt.Errorf("config: tls.enabled requires cert or cert_pem")
		}
		if c.TLS.KeyPEM == "" && c.TLS.Key == "" {
			return fmt.Errorf("config: tls.enabled requires key or key_pem")
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
