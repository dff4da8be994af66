// Command pwb-monitor polls the power modules of a bridge and writes the
// samples to InfluxDB and/or ClickHouse.
//
// Usage:
//
//	pwb-monitor -config monitor.yaml [flags]
//
// Without a configured sink the samples are logged. The gateway is
// redialed with backoff when the connection drops; polls fail until it
// is back.
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
	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/connection"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/telemetry"
	"github.com/powerbridge/pwb-go/pkg/transport"
)

var (
	configFile = flag.String("config", "", "Monitor configuration file (YAML)")
	gateway    = flag.String("gateway", "", "Gateway address (overrides the config file)")
	capture    = flag.String("capture", "", "Protocol capture file")
	logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat  = flag.String("log-format", "text", "Log format: text, json")
)

func main() {
	flag.Parse()

	logger, err := cli.NewLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(logger); err != nil {
		logger.Error("pwb-monitor failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*telemetry.Config, error) {
	if *configFile == "" {
		cfg := &telemetry.Config{Gateway: *gateway, Node: telemetry.DefaultNode, Interval: telemetry.DefaultInterval}
		return cfg, cfg.Validate()
	}
	cfg, err := telemetry.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *gateway != "" {
		cfg.Gateway = *gateway
	}
	return cfg, nil
}

func openSinks(ctx context.Context, cfg *telemetry.Config, logger *slog.Logger) ([]telemetry.Sink, error) {
	var sinks []telemetry.Sink
	if cfg.Influx != nil {
		s, err := telemetry.NewInfluxSink(*cfg.Influx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
		logger.Info("influxdb sink", "url", cfg.Influx.URL, "database", cfg.Influx.Database)
	}
	if cfg.ClickHouse != nil {
		s, err := telemetry.NewClickHouseSink(ctx, *cfg.ClickHouse, logger)
		if err != nil {
			for _, open := range sinks {
				open.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
		logger.Info("clickhouse sink", "addr", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
	}
	return sinks, nil
}

func run(logger *slog.Logger) error {
	start := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := cli.OpenCapture(*capture, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	sinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}

	mgr := connection.NewManager(
		connection.GatewayDialer(connection.GatewayConfig{
			Address:    cfg.Gateway,
			Client:     transport.ClientConfig{Logger: events},
			Dictionary: od.Bridge(),
		}),
		connection.WithLogger(logger.With("gateway", cfg.Gateway)),
		connection.WithProtocolLogger(events),
	)
	defer mgr.Close()
	if err := mgr.Connect(ctx); err != nil {
		logger.Warn("gateway not reachable, retrying", "error", err)
	}

	opts := []telemetry.MonitorOption{
		telemetry.WithInterval(cfg.Interval),
		telemetry.WithLogger(logger),
	}
	for _, s := range sinks {
		opts = append(opts, telemetry.WithSink(s))
	}
	if len(sinks) == 0 {
		opts = append(opts, telemetry.WithSampleHandler(func(samples []telemetry.Sample) {
			for _, s := range samples {
				logger.Info("sample",
					"pm", s.PM,
					"group", s.Group,
					"voltage", s.Output.Volts(),
					"current", s.Output.Amps(),
					"temperature", s.Temperature,
					"fault", s.Fault,
					"flags", s.Flags)
			}
		}))
	}

	mon := telemetry.NewMonitor(bridge.New(mgr, cfg.Node), opts...)
	logger.Info("monitoring", "node", cfg.Node, "interval", cfg.Interval.String(), "sinks", len(sinks))

	err = mon.Run(ctx)
	st := mon.Stats()
	logger.Info("stopped",
		"polls", st.Polls,
		"poll_errors", st.PollErrors,
		"samples", st.Samples,
		"sink_errors", st.SinkErrors,
		"uptime", time.Since(start).Round(time.Second).String())
	return err
}
