// Command pwb-ctl reads and configures a power bridge through its TCP
// gateway.
//
// Usage:
//
//	pwb-ctl [flags] <command> [args]
//
// Commands:
//
//	read [pm<n>] <index:sub>           Read an object
//	write [pm<n>] <index:sub> <value>  Write an object
//	status [-yaml]                     Show configuration and module states
//	pm <n>                             Show a power module node
//	interlink [off|on|force|keep [d]]  Show or switch the DC contactor
//	fans [start|stop]                  Show or switch the fans
//	update pfc=<f> dcdc=<f> [can=<f>] version=<v>  Update the power modules
//	dump [pm<n>]                       Read every readable object
//	console                            Interactive console
//
// Examples:
//
//	pwb-ctl -gateway 192.168.1.20:7460 status
//	pwb-ctl read 0x2420:00
//	pwb-ctl write 0x2402:00 0x01
//	pwb-ctl update pfc=pfc.bin dcdc=dcdc.bin version=1.4,2.0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/powerbridge/pwb-go/internal/cli"
	"github.com/powerbridge/pwb-go/pkg/connection"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/transport"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Config holds the command line configuration.
type Config struct {
	Gateway   string
	Node      uint
	PMBase    uint
	Timeout   time.Duration
	Capture   string
	LogLevel  string
	LogFormat string
}

var config Config

func init() {
	flag.StringVar(&config.Gateway, "gateway", fmt.Sprintf("localhost:%d", transport.DefaultPort), "Gateway address")
	flag.UintVar(&config.Node, "node", simulator.DefaultNode, "Bridge node ID")
	flag.UintVar(&config.PMBase, "pm-base", simulator.DefaultPMNodeBase, "Node ID of the first power module before the offset")
	flag.DurationVar(&config.Timeout, "timeout", 0, "SDO response timeout (0 keeps the default)")
	flag.StringVar(&config.Capture, "capture", "", "Protocol capture file")
	flag.StringVar(&config.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFormat, "log-format", "text", "Log format: text, json")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pwb-ctl [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands: read, write, status, pm, interlink, fans, update, dump, console\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := cli.NewLogger(os.Stderr, config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := validateConfig(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func validateConfig(c *Config) error {
	if c.Gateway == "" {
		return errors.New("gateway address required")
	}
	if c.Node == 0 || c.Node > wire.MaxNodeID {
		return fmt.Errorf("invalid node %d", c.Node)
	}
	if c.PMBase == 0 || c.PMBase+od.MaxModules > wire.MaxNodeID {
		return fmt.Errorf("invalid power module base %d", c.PMBase)
	}
	return nil
}

// pmDictionaries maps every possible power module node to the power
// module dictionary. The offset is only known after connecting.
func pmDictionaries(base, bridgeNode uint8) map[uint8]*od.Dictionary {
	dicts := make(map[uint8]*od.Dictionary)
	pm := od.PowerModule()
	for n := int(base); n <= wire.MaxNodeID; n++ {
		if uint8(n) != bridgeNode {
			dicts[uint8(n)] = pm
		}
	}
	return dicts
}

func run(logger *slog.Logger, cmd string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := cli.OpenCapture(config.Capture, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	node := uint8(config.Node)
	mgr := connection.NewManager(
		connection.GatewayDialer(connection.GatewayConfig{
			Address:          config.Gateway,
			Client:           transport.ClientConfig{Logger: events},
			Dictionary:       od.Bridge(),
			NodeDictionaries: pmDictionaries(uint8(config.PMBase), node),
			Timeout:          config.Timeout,
		}),
		connection.WithLogger(logger.With("gateway", config.Gateway)),
		connection.WithProtocolLogger(events),
	)
	defer mgr.Close()

	// One-shot commands fail fast; the console keeps redialing.
	if err := mgr.Connect(ctx); err != nil && cmd != "console" {
		return fmt.Errorf("connect %s: %w", config.Gateway, err)
	}

	c := newCtl(mgr, node, uint8(config.PMBase), os.Stdout)
	c.logger = logger
	c.events = events

	if cmd == "console" {
		con, err := newConsole(c, mgr)
		if err != nil {
			return err
		}
		return con.Run(ctx)
	}
	return c.exec(ctx, cmd, args)
}
