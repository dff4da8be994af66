// Package log captures protocol events of the power bridge link.
//
// Protocol capture is separate from operational logging (slog): it keeps
// a machine-readable trace of every frame, object read/write, state change
// and update step for later inspection with pwb-log.
//
// Applications pass a Logger to the transport, interaction and update
// packages:
//
//	// Console while developing
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Capture file
//	fl, _ := log.NewFileLogger("/var/log/pwb/ctl.plog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Layers
//
//   - Transport: raw length-prefixed frames (FrameEvent)
//   - SDO: object reads and writes and their abort codes (MessageEvent)
//   - Update: firmware update progress (UpdateEvent)
//
// State changes of the connection, the interlink contactor and the update
// handshake use StateChangeEvent; failures at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a sequence of CBOR-encoded events with integer keys,
// conventionally named *.plog.
package log
