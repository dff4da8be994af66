// Package commands implements the pwb-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// ViewOptions holds the filter flags shared by view and export.
type ViewOptions struct {
	Layer     string
	Direction string
	Category  string
	ConnID    string
	Node      int
	Index     string
	TimeStart string
	TimeEnd   string
}

// optional parses s with parse, nil when s is empty.
func optional[T any](s string, parse func(string) (T, error)) (*T, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseIndex(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid index: %s", s)
	}
	return uint16(v), nil
}

func parseTime(name string) func(string) (time.Time, error) {
	return func(s string) (time.Time, error) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return t, fmt.Errorf("invalid %s: %w", name, err)
		}
		return t, nil
	}
}

// Filter builds the reader filter of the options.
func (o ViewOptions) Filter() (f log.Filter, err error) {
	f.ConnectionID = o.ConnID
	if o.Node < 0 || o.Node > wire.MaxNodeID {
		return f, fmt.Errorf("invalid node: %d (must be 1..%d)", o.Node, wire.MaxNodeID)
	}
	if o.Node > 0 {
		n := uint8(o.Node)
		f.Node = &n
	}
	if f.Layer, err = optional(o.Layer, log.ParseLayer); err != nil {
		return f, err
	}
	if f.Direction, err = optional(o.Direction, log.ParseDirection); err != nil {
		return f, err
	}
	if f.Category, err = optional(o.Category, log.ParseCategory); err != nil {
		return f, err
	}
	if f.Index, err = optional(o.Index, parseIndex); err != nil {
		return f, err
	}
	if f.TimeStart, err = optional(o.TimeStart, parseTime("time-start")); err != nil {
		return f, err
	}
	f.TimeEnd, err = optional(o.TimeEnd, parseTime("time-end"))
	return f, err
}

// RunView prints the events of the capture file matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		p := printer{w: output}
		p.event(event)
	}
	return nil
}

// printer writes one event as a header line followed by indented
// details and a blank line.
type printer struct {
	w io.Writer
}

func (p printer) detail(format string, args ...any) {
	fmt.Fprintf(p.w, "  "+format+"\n", args...)
}

func (p printer) event(ev log.Event) {
	fmt.Fprintf(p.w, "%s [conn:%s] %-3s %s %s",
		ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		short(ev.ConnectionID), ev.Direction, ev.Layer, kind(ev))
	if ev.Node != 0 {
		fmt.Fprintf(p.w, " node=%d", ev.Node)
	}
	fmt.Fprintln(p.w)

	switch {
	case ev.Frame != nil:
		p.frame(ev.Frame)
	case ev.Message != nil:
		p.message(ev.Message)
	case ev.StateChange != nil:
		p.state(ev.StateChange)
	case ev.Update != nil:
		p.update(ev.Update)
	case ev.Error != nil:
		p.fault(ev.Error)
	}
	fmt.Fprintln(p.w)
}

func kind(ev log.Event) string {
	switch {
	case ev.Frame != nil:
		return "Frame"
	case ev.Message != nil:
		return ev.Message.Type.String()
	case ev.StateChange != nil:
		return "State"
	case ev.Update != nil:
		return "Progress"
	case ev.Error != nil:
		return "Error"
	}
	return "Unknown"
}

// short abbreviates a UUID to its first 8 characters; "-" marks
// in-process links.
func short(id string) string {
	switch {
	case id == "":
		return "-"
	case len(id) > 8:
		return id[:8]
	}
	return id
}

func (p printer) frame(f *log.FrameEvent) {
	p.detail("Size: %d bytes", f.Size)
	if len(f.Data) == 0 {
		return
	}
	suffix := ""
	if f.Truncated {
		suffix = " (truncated)"
	}
	p.detail("Data: %x%s", f.Data, suffix)
}

func (p printer) message(m *log.MessageEvent) {
	p.detail("MessageID: %d", m.MessageID)
	if m.Operation != nil {
		p.detail("Operation: %s", m.Operation)
	}
	if m.Index != 0 {
		p.detail("Object: %s", od.Addr(od.Index(m.Index), od.SubIndex(m.SubIndex)))
	}
	if m.Type == log.MessageTypeResponse {
		if m.Abort != nil {
			p.detail("Abort: %s (0x%08X)", m.Abort, uint32(*m.Abort))
		} else {
			p.detail("Status: OK")
		}
		if m.ProcessingTime != nil {
			p.detail("Duration: %s", millis(*m.ProcessingTime))
		}
	}
	if len(m.Data) > 0 {
		p.detail("Data: %s", hex.EncodeToString(m.Data))
	}
}

func (p printer) state(sc *log.StateChangeEvent) {
	p.detail("Entity: %s", sc.Entity)
	if sc.OldState != "" {
		p.detail("%s -> %s", sc.OldState, sc.NewState)
	} else {
		p.detail("-> %s", sc.NewState)
	}
	if sc.Reason != "" {
		p.detail("Reason: %s", sc.Reason)
	}
}

func (p printer) update(u *log.UpdateEvent) {
	if u.Image != 0 {
		p.detail("Phase: %s  Image: %d", u.Phase, u.Image)
	} else {
		p.detail("Phase: %s", u.Phase)
	}
	if u.BytesTotal > 0 {
		p.detail("Bytes: %d/%d", u.BytesSent, u.BytesTotal)
	}
	if u.Status != nil {
		p.detail("Status: %s", u.Status)
	}
	if u.RunID != "" {
		p.detail("Run: %s", short(u.RunID))
	}
}

func (p printer) fault(e *log.ErrorEventData) {
	p.detail("Layer: %s", e.Layer)
	p.detail("Message: %s", e.Message)
	if e.Code != nil {
		p.detail("Code: %d", *e.Code)
	}
	if e.Context != "" {
		p.detail("Context: %s", e.Context)
	}
}

// millis prints d in milliseconds with microsecond resolution.
func millis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64) + "ms"
}
