// Package config holds the daemon's configuration: the required CLI
// flags of spec.md §6, plus an optional TOML file supplying ambient
// defaults (log level, metrics, TLS minimum version) that the flags may
// still override.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"mailrelayd/internal/dnscheck"
)

// Ports holds the three listener ports named in spec.md §6.
type Ports struct {
	SMTP  int `toml:"smtp"`
	POP3  int `toml:"pop3"`
	POP3S int `toml:"pop3s"`
}

// DefaultPorts returns spec.md §6's default port assignment.
func DefaultPorts() Ports {
	return Ports{SMTP: 25, POP3: 110, POP3S: 995}
}

// TLSConfig names the three PEM inputs spec.md §6 requires for POP3S:
// a combined key+cert chain, a CA chain, and DH parameters, plus the
// passphrase protecting the private key.
type TLSConfig struct {
	CertFile   string `toml:"cert_file"`
	CAFile     string `toml:"ca_file"`
	DHFile     string `toml:"dh_file"`
	Passphrase string `toml:"-"` // never read from file; CLI/env only
	MinVersion string `toml:"min_version"`
}

func (c TLSConfig) MinTLSVersion() uint16 {
	switch c.MinVersion {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// MetricsConfig configures the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// TimeoutsConfig configures ambient connection timeouts. spec.md §5 has
// no explicit timeout model ("No explicit timeouts"). IdleTimeout parses
// the configured value (0 when unset or malformed), but no listener or
// session reads it, so setting it does not bound a stuck peer.
type TimeoutsConfig struct {
	Idle string `toml:"idle"`
}

func (t TimeoutsConfig) IdleTimeout() time.Duration {
	if t.Idle == "" {
		return 0
	}
	d, err := time.ParseDuration(t.Idle)
	if err != nil {
		return 0
	}
	return d
}

// Config is the fully resolved daemon configuration: CLI flags merged
// over an optional TOML file's defaults.
type Config struct {
	Hostname  string         `toml:"hostname"`
	Relayhost string         `toml:"relayhost"`
	UserFile  string         `toml:"-"` // required flag, never defaulted from file
	MailStore string         `toml:"maildir"`
	LogLevel  string         `toml:"log_level"`
	Ports     Ports          `toml:"ports"`
	TLS       TLSConfig      `toml:"tls"`
	Metrics   MetricsConfig  `toml:"metrics"`
	Timeouts  TimeoutsConfig `toml:"timeouts"`
}

// Default returns a Config with spec.md §6's documented defaults.
func Default() Config {
	return Config{
		LogLevel:  "info",
		MailStore: "/var/spool/mailrelayd",
		Ports:     DefaultPorts(),
		TLS:       TLSConfig{MinVersion: "1.2"},
		Metrics:   MetricsConfig{Enabled: false, Address: ":9100", Path: "/metrics"},
	}
}

// Validate enforces spec.md §6's startup requirements: a user file must
// be configured, the hostname (and relayhost, if set) must resolve, and
// ports must be in range.
func (c *Config) Validate() error {
	if c.UserFile == "" {
		return errors.New("-u <file> is required (path to user CSV)")
	}
	if c.Hostname == "" {
		return errors.New("hostname is required (set -H or config hostname)")
	}
	if _, err := dnscheck.HasAddress(c.Hostname); err != nil {
		return fmt.Errorf("-H %s does not resolve: %w", c.Hostname, err)
	}
	if c.Relayhost != "" {
		if _, err := dnscheck.HasAddress(c.Relayhost); err != nil {
			return fmt.Errorf("-R %s does not resolve: %w", c.Relayhost, err)
		}
	}
	for name, p := range map[string]int{"smtp": c.Ports.SMTP, "pop3": c.Ports.POP3, "pop3s": c.Ports.POP3S} {
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid %s port %d: must be 1..65535", name, p)
		}
	}
	if c.MailStore == "" {
		return errors.New("mail store path is required (set -d or config maildir)")
	}
	return nil
}
