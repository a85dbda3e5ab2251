// Command mailrelayd is the daemon described in spec.md §1: one process
// running simultaneous SMTP, POP3, and POP3S listeners over a shared
// mail store, with outbound forwarding for non-local recipients.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"mailrelayd/internal/config"
	"mailrelayd/internal/dnscheck"
	"mailrelayd/internal/forwarder"
	"mailrelayd/internal/logging"
	"mailrelayd/internal/mailbox"
	"mailrelayd/internal/mailmsg"
	"mailrelayd/internal/metrics"
	"mailrelayd/internal/pop3"
	"mailrelayd/internal/reactor"
	"mailrelayd/internal/smtp"
	"mailrelayd/internal/store"
	"mailrelayd/internal/users"
)

const version = "mailrelayd 1.0"

const usage = `usage: mailrelayd -u users.csv -H hostname [options]

  -u file          path to the user CSV file (required)
  -H hostname      hostname this daemon identifies as (required)
  -R relayhost     fixed relay host for outbound forwarding
  -d dir           mail store base directory (":memory:" for an
                   in-process store, useful for smoke testing)
  -p smtp,pop3,pop3s  comma-separated port override (e.g. 25,110,995)
  -config file     optional TOML file for ambient settings
  -tls-cert file   PEM file with POP3S key+certificate chain
  -tls-ca file     PEM file with the CA chain
  -tls-dh file     PEM file with Diffie-Hellman parameters
  -h               print this message and exit
  -V               print version and exit
`

func main() {
	flags := config.ParseFlags()

	if flags.Help {
		fmt.Fprint(os.Stdout, usage)
		return
	}
	if flags.Version {
		fmt.Fprintln(os.Stdout, version)
		return
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mailrelayd:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "mailrelayd:", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	userTable, err := users.Load(cfg.UserFile)
	if err != nil {
		return fmt.Errorf("loading user file: %w", err)
	}
	locks := mailbox.NewLockTable(userTable)

	mailStore, err := openStore(cfg.MailStore)
	if err != nil {
		return fmt.Errorf("opening mail store: %w", err)
	}

	collector, metricsServer := metrics.New(metrics.Config(cfg.Metrics))

	loop := reactor.New(logger)

	fwd := &forwarder.Forwarder{
		Loop:      loop,
		Hostname:  cfg.Hostname,
		Relayhost: cfg.Relayhost,
		Logger:    logger.With(slog.String("component", "forwarder")),
		Metrics:   collector,
	}

	smtpDeps := smtp.Deps{
		Hostname: cfg.Hostname,
		Users:    userTable,
		Resolver: resolverFor(cfg.Relayhost),
		Deliver: func(user string, body *mailmsg.Body) error {
			_, err := mailStore.Push(user, []byte(body.Concat()), time.Now())
			return err
		},
		Forward: fwd.Enqueue,
		Metrics: collector,
		Logger:  logger.With(slog.String("component", "smtp")),
	}

	pop3Deps := pop3.Deps{
		Hostname: cfg.Hostname,
		Locks:    locks,
		Store:    mailStore,
		Metrics:  collector,
		Logger:   logger.With(slog.String("component", "pop3")),
	}

	var tlsConfig *tls.Config
	if cfg.TLS.CertFile != "" {
		tlsConfig, err = loadTLSConfig(cfg.TLS)
		if err != nil {
			return fmt.Errorf("loading POP3S TLS materials: %w", err)
		}
	}

	listeners := []*reactor.Listener{
		reactor.NewListener("smtp", addr(cfg.Ports.SMTP), nil, loop,
			smtp.NewSessionFunc(smtpDeps), logger.With(slog.String("listener", "smtp"))),
		reactor.NewListener("pop3", addr(cfg.Ports.POP3), nil, loop,
			pop3.NewSessionFunc(pop3Deps), logger.With(slog.String("listener", "pop3"))),
	}
	if tlsConfig != nil {
		listeners = append(listeners, reactor.NewListener("pop3s", addr(cfg.Ports.POP3S), tlsConfig, loop,
			pop3.NewSessionFunc(pop3Deps), logger.With(slog.String("listener", "pop3s"))))
	} else {
		logger.Warn("no -tls-cert given, POP3S listener not started", slog.Int("port", cfg.Ports.POP3S))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		wg.Add(1)
		go func(l *reactor.Listener) {
			defer wg.Done()
			if err := l.Run(ctx); err != nil {
				errCh <- fmt.Errorf("%s listener: %w", l.Name, err)
				cancel()
			}
		}(l)
	}

	logger.Info("mailrelayd ready",
		slog.String("hostname", cfg.Hostname),
		slog.Int("smtp_port", cfg.Ports.SMTP),
		slog.Int("pop3_port", cfg.Ports.POP3),
		slog.Int("pop3s_port", cfg.Ports.POP3S))

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func addr(port int) string {
	return ":" + strconv.Itoa(port)
}

// openStore honors spec.md §6's ":memory:" mail store special-case,
// useful for smoke tests that should never touch the filesystem.
func openStore(path string) (store.Store, error) {
	if path == ":memory:" {
		return store.NewMemStore(), nil
	}
	return store.NewFileStore(path)
}

// resolverFor builds the DNS-reachability check RCPT TO uses to decide
// whether a non-local domain can be relayed at all. It runs on its own
// goroutine per call (see internal/smtp's onRcptLine), never on the
// dispatch goroutine, so blocking here costs nothing but wall time. When
// a fixed relayhost is configured, spec.md §4.G's selection order means
// that host is tried regardless of the recipient domain's own DNS, so
// any domain is accepted here.
func resolverFor(relayhost string) func(domain string) error {
	if relayhost != "" {
		return func(domain string) error { return nil }
	}
	return func(domain string) error {
		result, err := dnscheck.ValidDomain(domain)
		if result != dnscheck.Good {
			return err
		}
		return nil
	}
}

func loadTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.CertFile)
	if err != nil {
		return nil, fmt.Errorf("loading key+cert chain: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   cfg.MinTLSVersion(),
	}
	return tlsCfg, nil
}
