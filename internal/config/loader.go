package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds the command-line flag values of spec.md §6.
type Flags struct {
	Help       bool
	Version    bool
	Ports      string
	UserFile   string
	Hostname   string
	Relayhost  string
	MailStore  string
	ConfigPath string

	TLSCert string
	TLSCA   string
	TLSDH   string
}

// ParseFlags parses os.Args per spec.md §6's seven flags (-h -V -p -u -H
// -R -d), plus a -config path for the optional TOML overlay described in
// this package's docs and the -tls-cert/-tls-ca/-tls-dh POP3S file paths.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.BoolVar(&f.Help, "h", false, "print usage and exit")
	flag.BoolVar(&f.Version, "V", false, "print version and exit")
	flag.StringVar(&f.Ports, "p", "", "comma-separated smtp,pop3,pop3s port override (e.g. 25,110,995)")
	flag.StringVar(&f.UserFile, "u", "", "path to the user CSV file (required)")
	flag.StringVar(&f.Hostname, "H", "", "hostname this daemon identifies as")
	flag.StringVar(&f.Relayhost, "R", "", "fixed relay host for outbound forwarding")
	flag.StringVar(&f.MailStore, "d", "", "mail store base directory")
	flag.StringVar(&f.ConfigPath, "config", "", "optional TOML file for ambient settings")

	flag.StringVar(&f.TLSCert, "tls-cert", "", "PEM file with POP3S key+certificate chain")
	flag.StringVar(&f.TLSCA, "tls-ca", "", "PEM file with the CA chain")
	flag.StringVar(&f.TLSDH, "tls-dh", "", "PEM file with Diffie-Hellman parameters")

	flag.Parse()
	return f
}

// Load reads an optional TOML file over Default(). A missing path (or
// an empty path) is not an error: the daemon runs on flags and defaults
// alone per spec.md §6.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// parsePorts parses spec.md §6's "-p smtp,pop3,pop3s" comma-separated
// port override. Returns an error if any of the three fields is missing
// or out of the 1..65535 range.
func parsePorts(csv string) (Ports, error) {
	fields := strings.Split(csv, ",")
	if len(fields) != 3 {
		return Ports{}, fmt.Errorf("-p requires exactly 3 comma-separated ports, got %d", len(fields))
	}
	parsed := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 1 || n > 65535 {
			return Ports{}, fmt.Errorf("-p: invalid port %q: must be 1..65535", f)
		}
		parsed[i] = n
	}
	return Ports{SMTP: parsed[0], POP3: parsed[1], POP3S: parsed[2]}, nil
}

// ApplyFlags merges flag values over cfg. Flags always win over the
// TOML file, matching spec.md §6's command-line-takes-precedence rule.
// A malformed -p leaves cfg.Ports unchanged here; LoadWithFlags is the
// entry point that surfaces the parse error to the caller.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Ports != "" {
		if ports, err := parsePorts(f.Ports); err == nil {
			cfg.Ports = ports
		}
	}
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}
	if f.Relayhost != "" {
		cfg.Relayhost = f.Relayhost
	}
	if f.UserFile != "" {
		cfg.UserFile = f.UserFile
	}
	if f.MailStore != "" {
		cfg.MailStore = f.MailStore
	}
	if f.TLSCert != "" {
		cfg.TLS.CertFile = f.TLSCert
	}
	if f.TLSCA != "" {
		cfg.TLS.CAFile = f.TLSCA
	}
	if f.TLSDH != "" {
		cfg.TLS.DHFile = f.TLSDH
	}
	return cfg
}

// LoadWithFlags loads the TOML overlay named by f.ConfigPath, applies
// environment overrides, then applies flags. Precedence (highest to
// lowest): flags > environment > TOML file > defaults.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if f.Ports != "" {
		if _, err := parsePorts(f.Ports); err != nil {
			return cfg, err
		}
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}
