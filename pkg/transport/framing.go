package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
)

const (
	// LengthPrefixSize is the size of the big-endian frame length.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a single gateway message. Messages
	// carry one object value and stay far below it.
	DefaultMaxMessageSize = 4096

	// MaxLogFrameDataSize bounds the frame bytes copied into log events.
	MaxLogFrameDataSize = 256
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// FrameSize returns the size of the frame carrying a payload of n bytes.
func FrameSize(n int) int {
	return LengthPrefixSize + n
}

// limit is the payload size bound shared by readers and writers.
type limit uint32

func newLimit(n uint32) limit {
	if n == 0 {
		return DefaultMaxMessageSize
	}
	return limit(n)
}

func (l limit) check(n uint64) error {
	switch {
	case n == 0:
		return ErrMessageEmpty
	case n > uint64(l):
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, l)
	}
	return nil
}

// tap emits transport events for frames when a logger is set.
type tap struct {
	logger log.Logger
	connID string
}

func (t *tap) frame(dir log.Direction, payload []byte) {
	if t.logger == nil {
		return
	}
	data, cut := payload, len(payload) > MaxLogFrameDataSize
	if cut {
		data = payload[:MaxLogFrameDataSize]
	}
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        &log.FrameEvent{Size: FrameSize(len(payload)), Data: data, Truncated: cut},
	})
}

// SetLogger tags frame events with connID. A nil logger disables them.
func (t *tap) SetLogger(logger log.Logger, connID string) {
	t.logger, t.connID = logger, connID
}

// FrameWriter writes length-prefixed frames. It is safe for concurrent use.
type FrameWriter struct {
	tap
	mu  sync.Mutex
	w   io.Writer
	max limit
}

// NewFrameWriter returns a writer of frames up to maxSize bytes, 0
// selecting DefaultMaxMessageSize.
func NewFrameWriter(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{w: w, max: newLimit(maxSize)}
}

// WriteFrame writes the prefix and payload with a single Write.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if err := fw.max.check(uint64(len(payload))); err != nil {
		return err
	}
	buf := binary.BigEndian.AppendUint32(make([]byte, 0, FrameSize(len(payload))), uint32(len(payload)))
	buf = append(buf, payload...)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	fw.frame(log.DirectionOut, payload)
	return nil
}

// FrameReader reads length-prefixed frames.
type FrameReader struct {
	tap
	r      io.Reader
	max    limit
	prefix [LengthPrefixSize]byte
}

// NewFrameReader returns a reader of frames up to maxSize bytes, 0
// selecting DefaultMaxMessageSize.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{r: r, max: newLimit(maxSize)}
}

// ReadFrame returns the next payload. io.EOF means the stream ended
// cleanly between frames.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if err := fr.fill(fr.prefix[:], true); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(fr.prefix[:])
	if err := fr.max.check(uint64(n)); err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if err := fr.fill(payload, false); err != nil {
		return nil, err
	}
	fr.frame(log.DirectionIn, payload)
	return payload, nil
}

// fill reads len(p) bytes. Running out of data is ErrFrameTruncated
// unless nothing was read and atBoundary is set.
func (fr *FrameReader) fill(p []byte, atBoundary bool) error {
	_, err := io.ReadFull(fr.r, p)
	switch {
	case err == nil:
		return nil
	case err == io.EOF && atBoundary:
		return io.EOF
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return ErrFrameTruncated
	}
	return fmt.Errorf("failed to read frame: %w", err)
}

// Framer reads and writes frames on one stream.
type Framer struct {
	*FrameReader
	*FrameWriter
}

func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{NewFrameReader(rw, maxSize), NewFrameWriter(rw, maxSize)}
}

// SetLogger enables frame events in both directions.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}
