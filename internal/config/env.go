package config

import "os"

// ApplyEnv applies environment variable overrides to cfg. Environment
// variables take precedence over the TOML file but are overridden by
// command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("MAILRELAYD_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("MAILRELAYD_RELAYHOST"); v != "" {
		cfg.Relayhost = v
	}
	if v := os.Getenv("MAILRELAYD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAILRELAYD_TLS_PASSPHRASE"); v != "" {
		cfg.TLS.Passphrase = v
	}
	return cfg
}
