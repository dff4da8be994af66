package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// console injects faults and measurements into a running simulator.
type console struct {
	sim *simulator.Simulator
	rl  *readline.Instance
}

func newConsole(sim *simulator.Simulator) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{sim: sim, rl: rl}, nil
}

// Run reads commands until quit, EOF or ctx is done.
func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			cancel()
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if strings.EqualFold(parts[0], "quit") || strings.EqualFold(parts[0], "exit") {
			cancel()
			return
		}
		if err := c.exec(strings.ToLower(parts[0]), parts[1:]); err != nil {
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
	}
}

func (c *console) exec(cmd string, args []string) error {
	out := c.rl.Stdout()
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status":
		fmt.Fprintf(out, "node %d, pm nodes %v, type %s\n", c.sim.Node(), c.sim.PMNodes(), c.sim.ActivePMType())
		fmt.Fprintf(out, "interlink %s, PDO1 status %v\n", c.sim.Contactor().State(), c.sim.PDO1().Status.Flags())
	case "output":
		if len(args) != 3 {
			return errors.New("usage: output <pm> <volts> <amps>")
		}
		pm, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		a, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return err
		}
		return c.sim.SetModuleOutput(pm, wire.NewVI(v, a))
	case "state":
		if len(args) != 3 {
			return errors.New("usage: state <pm> <temperature> <state hex>")
		}
		pm, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		temp, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return err
		}
		raw, err := strconv.ParseUint(strings.TrimPrefix(args[2], "0x"), 16, 24)
		if err != nil {
			return err
		}
		st := wire.PMState{Temperature: uint8(temp), State: [3]byte{byte(raw), byte(raw >> 8), byte(raw >> 16)}}
		return c.sim.SetModuleState(pm, st)
	case "pdo":
		for i := range c.sim.PMNodes() {
			pdo, err := c.sim.PMPDO1(i + 1)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "pm %d: %s\n", i+1, pdo)
		}
	case "fault":
		reason := "contactor feedback mismatch"
		if len(args) > 0 {
			reason = strings.Join(args, " ")
		}
		c.sim.Contactor().SetFault(errors.New(reason))
	case "clear":
		c.sim.Contactor().ClearFault()
	case "restart":
		if err := c.sim.Restart(); err != nil {
			return err
		}
		fmt.Fprintf(out, "restarted, type %s\n", c.sim.ActivePMType())
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return nil
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Simulator Commands:
  status                              - Show node, type and interlink state
  output <pm> <volts> <amps>          - Set the DC output of a module
  state <pm> <temperature> <hex>      - Set temperature and vendor state tabs
  pdo                                 - Show the PDO1 of every module
  fault [reason]                      - Put the interlink contactor in error
  clear                               - Clear the contactor fault
  restart                             - Power cycle the bridge
  quit                                - Stop the simulator`)
}
