package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmoread/blecentral/internal/central"
	"github.com/cmoread/blecentral/internal/config"
	"github.com/cmoread/blecentral/internal/store"
)

// printObserver reports session activity on stdout.
type printObserver struct{}

func (printObserver) PeripheralFound(p *central.Peripheral) {
	name := p.Name
	if name == "" {
		name = "(no name)"
	}
	fmt.Printf("found  %-40s %s  rssi=%d\n", p.Identifier, name, p.RSSI)
}

func (printObserver) PeripheralStateChanged(p *central.Peripheral, state central.ConnState) {
	fmt.Printf("state  %-40s %s\n", p.Identifier, state)
}

func (printObserver) TransportFailed(identifier string, err error) {
	fmt.Printf("error  %-40s %v\n", identifier, err)
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/blecentral/config.yaml)")
	scanFor := flag.Duration("scan-for", 0, "stop scanning after this duration (0 = until interrupted)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	transport, err := central.NewBluetoothTransport(logger, cfg.Scan.EventBuffer)
	if err != nil {
		logger.Error("bluetooth adapter unavailable", "error", err)
		os.Exit(1)
	}

	session := central.NewSession(transport, central.SessionOptions{
		KnownNames:   cfg.KnownNames,
		ServiceUUIDs: cfg.Scan.ServiceUUIDs,
		Observer:     printObserver{},
		Store:        store.NewFileStore(cfg.StorePath),
		Logger:       logger,
	})
	session.Start()
	defer session.Close()

	if err := session.LoadPeripherals(); err != nil {
		logger.Warn("could not load persisted peripherals", "error", err)
	}
	if n := session.Count(); n > 0 {
		logger.Info("restored peripherals from snapshot", "count", n)
	}

	if len(cfg.KnownNames) > 0 {
		logger.Info("scanning with name filter", "names", strings.Join(cfg.KnownNames, ", "))
	} else {
		logger.Info("scanning with open filter")
	}

	if err := session.StartScan(); err != nil {
		logger.Error("scan failed to start", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var timeout <-chan time.Time
	if *scanFor > 0 {
		timeout = time.After(*scanFor)
	}

	select {
	case <-sigCh:
		logger.Info("interrupt received")
	case <-timeout:
		logger.Info("scan duration elapsed", "after", *scanFor)
	}

	if err := session.StopScan(); err != nil {
		logger.Warn("stop scan", "error", err)
	}
	if err := session.PersistPeripherals(); err != nil {
		logger.Error("persist peripherals", "error", err)
		os.Exit(1)
	}
	logger.Info("session finished", "tracked", session.Count())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// No config file is fine; run with defaults.
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
