package bridge

import (
	"context"
	"encoding"
	"errors"
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// ErrInvalidModule is returned for power module numbers outside 1..8.
var ErrInvalidModule = errors.New("power module number out of range")

// Conn reads and writes objects of a node. *interaction.Client implements
// it; the client must hold the dictionary of the node.
type Conn interface {
	Read(ctx context.Context, node uint8, addr od.Address) ([]byte, error)
	Write(ctx context.Context, node uint8, addr od.Address, data []byte) error
}

// node is the object access shared by Bridge and PowerModule.
type node struct {
	conn Conn
	id   uint8
}

func (n node) read(ctx context.Context, addr od.Address, v encoding.BinaryUnmarshaler) error {
	data, err := n.conn.Read(ctx, n.id, addr)
	if err != nil {
		return err
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("decode %s: %w", addr, err)
	}
	return nil
}

func (n node) write(ctx context.Context, addr od.Address, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", addr, err)
	}
	return n.conn.Write(ctx, n.id, addr, data)
}

func (n node) readUint8(ctx context.Context, addr od.Address) (uint8, error) {
	data, err := n.conn.Read(ctx, n.id, addr)
	if err != nil {
		return 0, err
	}
	return wire.ParseUint8(data)
}

func (n node) readUint16(ctx context.Context, addr od.Address) (uint16, error) {
	data, err := n.conn.Read(ctx, n.id, addr)
	if err != nil {
		return 0, err
	}
	return wire.ParseUint16(data)
}

func (n node) readInt16(ctx context.Context, addr od.Address) (int16, error) {
	data, err := n.conn.Read(ctx, n.id, addr)
	if err != nil {
		return 0, err
	}
	return wire.ParseInt16(data)
}

func (n node) readUint32(ctx context.Context, addr od.Address) (uint32, error) {
	data, err := n.conn.Read(ctx, n.id, addr)
	if err != nil {
		return 0, err
	}
	return wire.ParseUint32(data)
}

func (n node) writeUint8(ctx context.Context, addr od.Address, v uint8) error {
	return n.conn.Write(ctx, n.id, addr, wire.Uint8(v))
}

func (n node) writeUint16(ctx context.Context, addr od.Address, v uint16) error {
	return n.conn.Write(ctx, n.id, addr, wire.Uint16(v))
}

func (n node) writeUint32(ctx context.Context, addr od.Address, v uint32) error {
	return n.conn.Write(ctx, n.id, addr, wire.Uint32(v))
}

func moduleSub(pm int) (od.SubIndex, error) {
	if pm < 1 || pm > od.MaxModules {
		return 0, fmt.Errorf("%w: %d", ErrInvalidModule, pm)
	}
	return od.SubIndex(pm), nil
}
