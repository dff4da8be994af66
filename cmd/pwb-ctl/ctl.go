package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/interlink"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/update"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

var errUsage = errors.New("invalid arguments")

// ctl runs controller commands against one bridge. The command line and
// the console share it.
type ctl struct {
	conn   bridge.Conn
	bridge *bridge.Bridge
	node   uint8
	pmBase uint8
	out    io.Writer
	logger *slog.Logger
	events log.Logger
}

func newCtl(conn bridge.Conn, node, pmBase uint8, out io.Writer) *ctl {
	return &ctl{
		conn:   conn,
		bridge: bridge.New(conn, node),
		node:   node,
		pmBase: pmBase,
		out:    out,
		logger: slog.New(slog.DiscardHandler),
		events: log.NoopLogger{},
	}
}

// exec runs one command. Interactive commands are handled by the caller.
func (c *ctl) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "read":
		return c.read(ctx, args)
	case "write":
		return c.write(ctx, args)
	case "status":
		return c.status(ctx, args)
	case "pm":
		return c.pm(ctx, args)
	case "interlink":
		return c.interlink(ctx, args)
	case "fans":
		return c.fans(ctx, args)
	case "update":
		return c.update(ctx, args)
	case "dump":
		return c.dump(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// target splits an optional "pm<n>" prefix off args and returns the node
// the command addresses with its dictionary.
func (c *ctl) target(ctx context.Context, args []string) (uint8, *od.Dictionary, []string, error) {
	if len(args) == 0 || !strings.HasPrefix(args[0], "pm") {
		return c.node, od.Bridge(), args, nil
	}
	pm, err := strconv.Atoi(strings.TrimPrefix(args[0], "pm"))
	if err != nil || pm < 1 || pm > od.MaxModules {
		return 0, nil, nil, fmt.Errorf("invalid power module %q", args[0])
	}
	node, err := c.pmNode(ctx, pm)
	if err != nil {
		return 0, nil, nil, err
	}
	return node, od.PowerModule(), args[1:], nil
}

// pmNode returns the node of power module pm: base + offset + pm - 1.
func (c *ctl) pmNode(ctx context.Context, pm int) (uint8, error) {
	offset, err := c.bridge.Offset(ctx)
	if err != nil {
		return 0, fmt.Errorf("read offset: %w", err)
	}
	n := int(c.pmBase) + int(offset) + pm - 1
	if n > 255 {
		return 0, fmt.Errorf("power module %d: node %d out of range", pm, n)
	}
	return uint8(n), nil
}

func (c *ctl) read(ctx context.Context, args []string) error {
	node, dict, args, err := c.target(ctx, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: read [pm<n>] <index:sub>", errUsage)
	}
	addr, err := od.ParseAddress(args[0])
	if err != nil {
		return err
	}
	data, err := c.conn.Read(ctx, node, addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, formatValue(dict, addr, data))
	return nil
}

func (c *ctl) write(ctx context.Context, args []string) error {
	node, dict, args, err := c.target(ctx, args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: write [pm<n>] <index:sub> <value>", errUsage)
	}
	addr, err := od.ParseAddress(args[0])
	if err != nil {
		return err
	}
	_, sub, err := dict.Resolve(addr)
	if err != nil {
		return err
	}
	data, err := parseValue(sub.Type, args[1])
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, node, addr, data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s written\n", addr)
	return nil
}

// parseValue encodes a decimal or 0x-prefixed scalar, or the hex bytes
// of a record or domain value.
func parseValue(t od.DataType, s string) ([]byte, error) {
	if t.IsScalar() {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", t, s)
		}
		return od.EncodeScalar(t, v), nil
	}
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: hex bytes expected", t, s)
	}
	return data, nil
}

// formatValue renders a value with its name when dict knows the address.
func formatValue(dict *od.Dictionary, addr od.Address, data []byte) string {
	e, sub, err := dict.Resolve(addr)
	if err != nil {
		return fmt.Sprintf("%s = %x", addr, data)
	}
	name := e.Name
	if sub.Name != "" {
		name += "." + sub.Name
	}
	t := sub.Type
	if sub.ReadType != od.DataTypeUnknown {
		t = sub.ReadType
	}
	if t.IsScalar() && len(data) == t.Size() {
		v := od.DecodeScalar(t, data)
		s := fmt.Sprintf("%s %s = %d (0x%x)", addr, name, v, data)
		if sub.Unit != "" {
			s += " " + sub.Unit
		}
		return s
	}
	return fmt.Sprintf("%s %s = %x", addr, name, data)
}

func (c *ctl) status(ctx context.Context, args []string) error {
	snap, err := c.bridge.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 && args[0] == "-yaml" {
		return writeYAML(c.out, snap)
	}

	w := c.out
	fmt.Fprintf(w, "Bridge node %d (%s)\n", snap.Node, snap.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "  PM type:      %s\n", snap.PMType)
	fmt.Fprintf(w, "  Topology:     %s\n", snap.Topology)
	fmt.Fprintf(w, "  Address:      %d group %d, offset %d\n", snap.Address.Address, snap.Address.Group, snap.Offset)
	fmt.Fprintf(w, "  Interlink:    %s\n", snap.Interlink)
	fmt.Fprintf(w, "  Max output:   %s\n", snap.MaxOutput)
	fmt.Fprintf(w, "  Capabilities: %s\n", snap.Capabilities)
	fmt.Fprintf(w, "  Fans:         %d, %s\n", snap.FanCount, snap.FanConfiguration)
	fmt.Fprintf(w, "  Cabinet:      %s\n", snap.CabinetController)
	fmt.Fprintf(w, "  Update:       %s\n", snap.UpdateStatus)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-4s %-6s %-18s %-6s %s\n", "PM", "Group", "Output", "Temp", "State")
	for _, m := range snap.Modules {
		state := "-"
		if m.State.Vendor != nil {
			state = m.State.Vendor.String()
		}
		if m.State.HasFault() {
			state += " FAULT"
		}
		fmt.Fprintf(w, "  %-4d %-6d %-18s %-6d %s\n", m.PM, m.Group, m.Output, m.State.State.Temperature, state)
	}
	return nil
}

func (c *ctl) pm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: pm <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > od.MaxModules {
		return fmt.Errorf("invalid power module %q", args[0])
	}
	node, err := c.pmNode(ctx, n)
	if err != nil {
		return err
	}
	snap, err := bridge.NewPowerModule(c.conn, node).Snapshot(ctx)
	if err != nil {
		return err
	}
	return writeYAML(c.out, snap)
}

func (c *ctl) interlink(ctx context.Context, args []string) error {
	switch {
	case len(args) == 0:
		st, err := c.bridge.Interlink(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "interlink %s\n", st)
		return nil
	case args[0] == "keep":
		return c.keep(ctx, args[1:])
	case len(args) == 1:
		cmd, err := wire.ParseInterlinkCommand(args[0])
		if err != nil {
			return err
		}
		if err := c.bridge.SetInterlink(ctx, cmd); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "interlink %s\n", cmd)
		return nil
	default:
		return fmt.Errorf("%w: interlink [off|on|force|keep [interval]]", errUsage)
	}
}

// keep holds the contactor closed until ctx is done, then opens it.
func (c *ctl) keep(ctx context.Context, args []string) error {
	var opts []interlink.KeeperOption
	if len(args) == 1 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		opts = append(opts, interlink.WithInterval(d))
	}
	opts = append(opts, interlink.WithErrorHandler(func(err error) {
		c.logger.Warn("timed enable failed", "error", err)
	}))
	k, err := interlink.NewKeeper(c.bridge, opts...)
	if err != nil {
		return err
	}
	if err := k.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "interlink held closed, interrupt to release")
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err = k.Stop(stopCtx)
	st := k.Stats()
	fmt.Fprintf(c.out, "interlink released after %d enables (%d failed)\n", st.Sent, st.Failed)
	return err
}

func (c *ctl) fans(ctx context.Context, args []string) error {
	if len(args) == 1 {
		var cmd wire.FanCommand
		switch args[0] {
		case "start":
			cmd = wire.FanStart
		case "stop":
			cmd = wire.FanStop
		default:
			return fmt.Errorf("%w: fans [start|stop]", errUsage)
		}
		if err := c.bridge.SetFans(ctx, cmd); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "fans %s\n", args[0])
		return nil
	}

	cfg, err := c.bridge.FanConfiguration(ctx)
	if err != nil {
		return err
	}
	count, err := c.bridge.FanCount(ctx)
	if err != nil {
		return err
	}
	states, err := c.bridge.FanStates(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d fans, %s\n", count, cfg)
	for n := 1; n <= int(count); n++ {
		fmt.Fprintf(c.out, "  fan %d: %s\n", n, states.Fan(n))
	}
	return nil
}

// updateArgs holds the parsed arguments of the update command.
type updateArgs struct {
	pfc, dcdc, can string
	version        wire.SoftVersion
	mode           wire.UpdateMode
}

// parseUpdateArgs parses "key=value" arguments: pfc, dcdc and can name
// image files, version is "pfc,dcdc[,can]" with "major.minor" parts.
func parseUpdateArgs(args []string) (*updateArgs, error) {
	u := &updateArgs{mode: wire.UpdateVerifyAddrNum}
	var version string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not key=value", errUsage, arg)
		}
		switch key {
		case "pfc":
			u.pfc = value
		case "dcdc":
			u.dcdc = value
		case "can":
			u.can = value
		case "version":
			version = value
		case "mode":
			m, err := wire.ParseUpdateMode(value)
			if err != nil {
				return nil, err
			}
			u.mode = m
		default:
			return nil, fmt.Errorf("%w: unknown key %q", errUsage, key)
		}
	}
	if u.pfc == "" || u.dcdc == "" || version == "" {
		return nil, fmt.Errorf("%w: update pfc=<file> dcdc=<file> [can=<file>] version=<pfc>,<dcdc>[,<can>] [mode=<mode>]", errUsage)
	}

	parts := strings.Split(version, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, fmt.Errorf("invalid version %q", version)
	}
	vs := make([]uint16, len(parts))
	for i, p := range parts {
		v, err := parseVersion(p)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	u.version = wire.SoftVersion{PFC: vs[0], DCDC: vs[1]}
	if len(vs) == 3 {
		u.version.CAN = vs[2]
		u.version.HasCAN = true
	}
	if u.version.HasCAN != (u.can != "") {
		return nil, errors.New("a CAN version needs a CAN image and the other way round")
	}
	return u, nil
}

// parseVersion encodes "major.minor" with the major in the low byte.
func parseVersion(s string) (uint16, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("invalid version %q: major.minor expected", s)
	}
	ma, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	mi, err := strconv.ParseUint(minor, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	return uint16(ma) | uint16(mi)<<8, nil
}

func (c *ctl) update(ctx context.Context, args []string) error {
	ua, err := parseUpdateArgs(args)
	if err != nil {
		return err
	}
	images := update.Images{Version: ua.version}
	for _, f := range []struct {
		path string
		dst  *[]byte
	}{
		{ua.pfc, &images.PFC},
		{ua.dcdc, &images.DCDC},
		{ua.can, &images.CAN},
	} {
		if f.path == "" {
			continue
		}
		if *f.dst, err = os.ReadFile(f.path); err != nil {
			return err
		}
	}

	var last update.Phase
	u := update.New(c.bridge,
		update.WithMode(ua.mode),
		update.WithLogger(c.logger),
		update.WithEvents(c.events),
		update.WithProgress(func(p update.Progress) {
			if p.Phase != last {
				last = p.Phase
				fmt.Fprintf(c.out, "\n%-8s %s\n", p.Phase, p.Status)
			}
			if p.Phase == update.PhaseData && p.BytesTotal > 0 {
				fmt.Fprintf(c.out, "\r  image %d/%d: %3d%% (%d/%d bytes)",
					p.Image, p.Images, p.BytesSent*100/p.BytesTotal, p.BytesSent, p.BytesTotal)
			}
		}),
	)

	start := time.Now()
	if err := u.Run(ctx, images); err != nil {
		fmt.Fprintln(c.out)
		return err
	}
	fmt.Fprintf(c.out, "\nupdate to %s done in %s\n", ua.version, time.Since(start).Round(time.Millisecond))
	return nil
}

// dump reads every readable object of the bridge, or of a power module
// with a pm<n> argument. Failed reads are listed and do not stop the dump.
func (c *ctl) dump(ctx context.Context, args []string) error {
	node, dict, args, err := c.target(ctx, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: dump [pm<n>]", errUsage)
	}
	failed := 0
	for _, addr := range dict.Addresses() {
		data, err := c.conn.Read(ctx, node, addr)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintf(c.out, "%s: %v\n", addr, err)
			continue
		}
		fmt.Fprintln(c.out, formatValue(dict, addr, data))
	}
	if failed > 0 {
		return fmt.Errorf("%d reads failed", failed)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
