package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/powerbridge/pwb-go/pkg/connection"
	"github.com/powerbridge/pwb-go/pkg/interlink"
)

// console runs ctl commands read from a line editor. The interlink keeper
// runs in the background here instead of blocking the prompt.
type console struct {
	ctl    *ctl
	mgr    *connection.Manager
	rl     *readline.Instance
	keeper *interlink.Keeper
}

func newConsole(c *ctl, mgr *connection.Manager) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("bridge %d> ", c.node),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("read"),
			readline.PcItem("write"),
			readline.PcItem("status"),
			readline.PcItem("pm"),
			readline.PcItem("interlink",
				readline.PcItem("off"),
				readline.PcItem("on"),
				readline.PcItem("force"),
				readline.PcItem("keep"),
				readline.PcItem("release"),
			),
			readline.PcItem("fans", readline.PcItem("start"), readline.PcItem("stop")),
			readline.PcItem("update"),
			readline.PcItem("dump"),
			readline.PcItem("conn"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c.out = rl.Stdout()
	return &console{ctl: c, mgr: mgr, rl: rl}, nil
}

// Run reads commands until quit, EOF or ctx is done. A running keeper
// is stopped on the way out.
func (c *console) Run(ctx context.Context) error {
	defer c.rl.Close()
	defer c.release(ctx)
	c.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := c.exec(ctx, cmd, parts[1:]); err != nil {
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
	}
}

func (c *console) exec(ctx context.Context, cmd string, args []string) error {
	switch {
	case cmd == "help" || cmd == "?":
		c.printHelp()
		return nil
	case cmd == "conn":
		fmt.Fprintf(c.ctl.out, "%s, %d redial attempts\n", c.mgr.State(), c.mgr.Attempts())
		return nil
	case cmd == "interlink" && len(args) > 0 && args[0] == "keep":
		return c.keep(ctx, args[1:])
	case cmd == "interlink" && len(args) > 0 && args[0] == "release":
		return c.release(ctx)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, time.Minute)
	if cmd == "update" {
		cancel()
		cmdCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	return c.ctl.exec(cmdCtx, cmd, args)
}

func (c *console) keep(ctx context.Context, args []string) error {
	if c.keeper != nil && c.keeper.IsRunning() {
		return fmt.Errorf("interlink keeper already running")
	}
	var opts []interlink.KeeperOption
	if len(args) == 1 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		opts = append(opts, interlink.WithInterval(d))
	}
	opts = append(opts, interlink.WithErrorHandler(func(err error) {
		fmt.Fprintf(c.rl.Stderr(), "timed enable failed: %v\n", err)
	}))
	k, err := interlink.NewKeeper(c.ctl.bridge, opts...)
	if err != nil {
		return err
	}
	if err := k.Start(ctx); err != nil {
		return err
	}
	c.keeper = k
	fmt.Fprintln(c.ctl.out, "interlink held closed, 'interlink release' opens it")
	return nil
}

func (c *console) release(ctx context.Context) error {
	if c.keeper == nil {
		return nil
	}
	k := c.keeper
	c.keeper = nil

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := k.Stop(stopCtx)
	st := k.Stats()
	fmt.Fprintf(c.ctl.out, "interlink released after %d enables (%d failed)\n", st.Sent, st.Failed)
	return err
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Bridge Commands:
  read [pm<n>] <index:sub>            - Read an object
  write [pm<n>] <index:sub> <value>   - Write an object (decimal, 0x.. or hex bytes)
  status [-yaml]                      - Show configuration and module states
  pm <n>                              - Show a power module node
  interlink [off|on|force]            - Show or switch the DC contactor
  interlink keep [interval]           - Hold the contactor closed in the background
  interlink release                   - Stop holding and open the contactor
  fans [start|stop]                   - Show or switch the fans
  update pfc=<f> dcdc=<f> [can=<f>] version=<v>[,..] [mode=<m>]
                                      - Update the power module firmware
  dump [pm<n>]                        - Read every readable object
  conn                                - Show the gateway connection state
  quit                                - Exit`)
}
