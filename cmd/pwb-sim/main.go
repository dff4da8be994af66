// Command pwb-sim runs a simulated power bridge behind the TCP gateway.
//
// Usage:
//
//	pwb-sim [flags]
//
// Flags:
//
//	-config string      Simulator configuration file (YAML)
//	-listen string      Gateway listen address (default ":7460")
//	-max-conns int      Concurrent controllers (default 8)
//	-idle duration      Close controllers idle this long (0 disables)
//	-state string       State file of the persisted objects
//	-capture string     Protocol capture file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-format string  Log format: text, json (default "text")
//	-interactive        Start the fault injection console
//
// Examples:
//
//	# Four Infy modules on node 10
//	pwb-sim
//
//	# Hardware from a file, persisted configuration, console
//	pwb-sim -config bridge.yaml -state /var/lib/pwb/bridge.json -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/powerbridge/pwb-go/internal/cli"
	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/transport"
)

// Config holds the command line configuration.
type Config struct {
	ConfigFile  string
	Listen      string
	MaxConns    int
	Idle        time.Duration
	StatePath   string
	Capture     string
	LogLevel    string
	LogFormat   string
	Interactive bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Simulator configuration file (YAML)")
	flag.StringVar(&config.Listen, "listen", fmt.Sprintf(":%d", transport.DefaultPort), "Gateway listen address")
	flag.IntVar(&config.MaxConns, "max-conns", transport.DefaultMaxConnections, "Concurrent controllers")
	flag.DurationVar(&config.Idle, "idle", 0, "Close controllers idle this long (0 disables)")
	flag.StringVar(&config.StatePath, "state", "", "State file of the persisted objects (overrides the config file)")
	flag.StringVar(&config.Capture, "capture", "", "Protocol capture file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFormat, "log-format", "text", "Log format: text, json")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the fault injection console")
}

func main() {
	flag.Parse()

	logger, err := cli.NewLogger(os.Stderr, config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(logger); err != nil {
		logger.Error("pwb-sim failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*simulator.Config, error) {
	cfg := simulator.DefaultConfig()
	if config.ConfigFile != "" {
		c, err := simulator.LoadConfig(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = *c
	}
	if config.StatePath != "" {
		cfg.StatePath = config.StatePath
	}
	return &cfg, nil
}

func run(logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	capture, err := cli.OpenCapture(config.Capture, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := capture.Close(); err != nil {
			logger.Warn("closing capture", "error", err)
		}
	}()

	sim, err := simulator.New(*cfg,
		simulator.WithLogger(logger.With("component", "simulator")),
		simulator.WithProtocolLogger(capture))
	if err != nil {
		return err
	}
	defer sim.Close()

	srv := interaction.NewServer(sim)
	srv.SetLogger(capture)

	gw := transport.NewGatewayServer(transport.ServerConfig{
		Address:        config.Listen,
		MaxConnections: config.MaxConns,
		IdleTimeout:    config.Idle,
		Logger:         capture,
		OnConnect: func(conn *transport.ServerConn) {
			logger.Info("controller connected", "remote", conn.RemoteAddr(), "conn", conn.ConnID())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			logger.Info("controller disconnected", "remote", conn.RemoteAddr(), "conn", conn.ConnID())
		},
		OnError: func(conn *transport.ServerConn, err error) {
			if conn == nil {
				logger.Warn("gateway error", "error", err)
				return
			}
			logger.Warn("connection error", "conn", conn.ConnID(), "error", err)
		},
	}, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		return err
	}
	defer gw.Stop()

	logger.Info("simulated power bridge running",
		"listen", gw.Addr().String(),
		"node", sim.Node(),
		"pm_nodes", sim.PMNodes(),
		"pm_type", sim.ActivePMType().String())

	if config.Interactive {
		console, err := newConsole(sim)
		if err != nil {
			return err
		}
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return nil
}
