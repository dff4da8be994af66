package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/powerbridge/pwb-go/pkg/log"
)

// exporter writes events in one output format.
type exporter interface {
	write(ev log.Event) error
	flush() error
}

type jsonlExporter struct{ enc *json.Encoder }

func (e jsonlExporter) write(ev log.Event) error { return e.enc.Encode(ev) }
func (e jsonlExporter) flush() error             { return nil }

type csvExporter struct{ cw *csv.Writer }

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "node", "type", "message_id", "index", "sub_index", "abort", "data"}

func (e csvExporter) write(ev log.Event) error { return e.cw.Write(csvRecord(ev)) }

func (e csvExporter) flush() error {
	e.cw.Flush()
	return e.cw.Error()
}

func newExporter(format string, w io.Writer) (exporter, error) {
	switch format {
	case "jsonl":
		return jsonlExporter{json.NewEncoder(w)}, nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return nil, err
		}
		return csvExporter{cw}, nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
}

// RunExport writes the events matching filter to output, stdout when
// empty, as JSON lines or CSV.
func RunExport(path, format, output string, filter log.Filter) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	exp, err := newExporter(format, w)
	if err != nil {
		return err
	}
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := exp.write(event); err != nil {
			return fmt.Errorf("failed to export event: %w", err)
		}
	}
	return exp.flush()
}

// csvRecord flattens an event into the columns of csvHeader. The type
// column names the payload and data carries its main value.
func csvRecord(ev log.Event) []string {
	var kind, msgID, index, sub, abort, data string
	switch {
	case ev.Frame != nil:
		kind, data = "frame", hex.EncodeToString(ev.Frame.Data)
	case ev.Message != nil:
		m := ev.Message
		kind = m.Type.String()
		msgID = strconv.FormatUint(uint64(m.MessageID), 10)
		index = fmt.Sprintf("0x%04X", m.Index)
		sub = strconv.Itoa(int(m.SubIndex))
		if m.Abort != nil {
			abort = m.Abort.String()
		}
		data = hex.EncodeToString(m.Data)
	case ev.StateChange != nil:
		kind, data = "state", ev.StateChange.NewState
	case ev.Update != nil:
		kind, data = "progress", ev.Update.Phase
	case ev.Error != nil:
		kind, data = "error", ev.Error.Message
	default:
		kind = "unknown"
	}
	return []string{
		ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		ev.ConnectionID,
		ev.Direction.String(),
		ev.Layer.String(),
		ev.Category.String(),
		strconv.Itoa(int(ev.Node)),
		kind, msgID, index, sub, abort, data,
	}
}
