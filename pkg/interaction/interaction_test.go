package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

const testNode = 10

// mockStore is a testify mock of Store serving the bridge dictionary on
// testNode.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Dictionary(node uint8) (*od.Dictionary, bool) {
	if node != testNode {
		return nil, false
	}
	return od.Bridge(), true
}

func (m *mockStore) ReadObject(ctx context.Context, node uint8, addr od.Address) ([]byte, error) {
	args := m.Called(node, addr)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockStore) WriteObject(ctx context.Context, node uint8, addr od.Address, data []byte) error {
	args := m.Called(node, addr, data)
	return args.Error(0)
}

// dropSender counts requests and never answers.
type dropSender struct {
	mu   sync.Mutex
	sent int
}

func (d *dropSender) Send([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent++
	return nil
}

func (d *dropSender) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newLoopback(t *testing.T) (*Client, *mockStore) {
	t.Helper()
	store := &mockStore{}
	client := NewLoopback(NewServer(store), od.Bridge())
	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

func TestClientRead(t *testing.T) {
	client, store := newLoopback(t)
	addr := od.Addr(od.IndexPMOutput, 3)
	store.On("ReadObject", uint8(testNode), addr).Return([]byte{0x10, 0x27, 0x2c, 0x01}, nil)

	var vi wire.VI
	require.NoError(t, client.ReadInto(context.Background(), testNode, addr, &vi))
	assert.Equal(t, wire.VI{Voltage: 10000, Current: 300}, vi)
	store.AssertExpectations(t)
}

func TestClientTypedHelpers(t *testing.T) {
	client, store := newLoopback(t)
	ctx := context.Background()

	typeAddr := od.Addr(od.IndexConfigPMType, 0)
	store.On("WriteObject", uint8(testNode), typeAddr, []byte{6}).Return(nil)
	store.On("ReadObject", uint8(testNode), typeAddr).Return([]byte{6}, nil)
	maskAddr := od.Addr(od.IndexConfigPMGroup, od.SubConfigPMGroupMask1)
	store.On("ReadObject", uint8(testNode), maskAddr).Return([]byte{0x0f, 0, 0, 0}, nil)
	voltAddr := od.Addr(od.IndexConfigPMCapabilities, od.SubConfigPMCapabilitiesVoltage)
	store.On("WriteObject", uint8(testNode), voltAddr, []byte{0xf0, 0x23}).Return(nil)
	store.On("ReadObject", uint8(testNode), voltAddr).Return([]byte{0xf0, 0x23}, nil)

	require.NoError(t, client.WriteUint8(ctx, testNode, typeAddr, 6))
	v8, err := client.ReadUint8(ctx, testNode, typeAddr)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), v8)

	v32, err := client.ReadUint32(ctx, testNode, maskAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0f), v32)

	require.NoError(t, client.WriteUint16(ctx, testNode, voltAddr, 9200))
	v16, err := client.ReadUint16(ctx, testNode, voltAddr)
	require.NoError(t, err)
	assert.Equal(t, uint16(9200), v16)
	store.AssertExpectations(t)
}

func TestClientLocalValidation(t *testing.T) {
	sender := &dropSender{}
	client := NewClient(sender, od.Bridge())
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		call func() error
	}{
		{"unknown object", od.ErrObjectNotFound, func() error {
			_, err := client.Read(ctx, testNode, od.Addr(0x2499, 0))
			return err
		}},
		{"module 9", od.ErrSubIndexNotFound, func() error {
			_, err := client.Read(ctx, testNode, od.Addr(od.IndexPMOutput, 9))
			return err
		}},
		{"read write-only", od.ErrWriteOnly, func() error {
			_, err := client.Read(ctx, testNode, od.Addr(od.IndexUpdateDataFrame, 0))
			return err
		}},
		{"write read-only", od.ErrReadOnly, func() error {
			return client.WriteUint8(ctx, testNode, od.Addr(od.IndexPMAddress, 0), 1)
		}},
		{"short frame", od.ErrDataTooShort, func() error {
			return client.Write(ctx, testNode, od.Addr(od.IndexUpdateDataFrame, 0), []byte{1, 2})
		}},
		{"long start", od.ErrDataTooLong, func() error {
			return client.Write(ctx, testNode, od.Addr(od.IndexUpdateStart, 0), make([]byte, 7))
		}},
		{"mode above 2", od.ErrValueTooHigh, func() error {
			return client.WriteUint8(ctx, testNode, od.Addr(od.IndexUpdateMode, 0), 3)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.err)
		})
	}
	assert.Equal(t, 0, sender.count(), "invalid requests must not be sent")
}

func TestClientRemoteAbort(t *testing.T) {
	client, store := newLoopback(t)
	addr := od.Addr(od.IndexInterlinkDCContactor, 0)
	store.On("WriteObject", uint8(testNode), addr, []byte{7}).Return(&wire.ValidationError{Field: "interlink", Reason: "reserved"})

	err := client.WriteUint8(context.Background(), testNode, addr, 7)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, wire.AbortInvalidValue, abort.Code)
	assert.Equal(t, addr, abort.Addr)
	assert.ErrorIs(t, err, wire.ErrInvalidValue)
	assert.Equal(t, "node 10 0x2402:00: invalid value for parameter", err.Error())
}

func TestClientWithoutDictionaryGetsServerAbort(t *testing.T) {
	store := &mockStore{}
	client := NewLoopback(NewServer(store), nil)
	defer client.Close()

	err := client.WriteUint8(context.Background(), testNode, od.Addr(od.IndexPMAddress, 0), 1)
	assert.ErrorIs(t, err, od.ErrReadOnly)

	_, err = client.Read(context.Background(), testNode, od.Addr(0x2499, 0))
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, wire.AbortObjectNotFound, abort.Code)
	store.AssertNotCalled(t, "WriteObject", mock.Anything, mock.Anything, mock.Anything)
}

func TestServerUnknownNode(t *testing.T) {
	client, _ := newLoopback(t)

	_, err := client.Read(context.Background(), 11, od.Addr(od.IndexConfigPMType, 0))
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, wire.AbortTimeout, abort.Code)
}

func TestServerRejectsBadStoreValue(t *testing.T) {
	store := &mockStore{}
	server := NewServer(store)
	addr := od.Addr(od.IndexPMOutput, 1)
	store.On("ReadObject", uint8(testNode), addr).Return([]byte{1, 2}, nil)

	resp := server.HandleRequest(context.Background(), &wire.Request{
		MessageID: 4, Operation: wire.OpRead, Node: testNode, Index: uint16(addr.Index), SubIndex: 1,
	})
	assert.Equal(t, uint32(4), resp.MessageID)
	assert.Equal(t, wire.AbortDeviceIncompatible, resp.Abort)
}

func TestServerStoreError(t *testing.T) {
	store := &mockStore{}
	server := NewServer(store)
	addr := od.Addr(od.IndexUpdateDataFrame, 0)
	store.On("WriteObject", uint8(testNode), addr, mock.Anything).Return(wire.ErrDeviceState)

	resp := server.HandleRequest(context.Background(), &wire.Request{
		MessageID: 5, Operation: wire.OpWrite, Node: testNode, Index: uint16(addr.Index), Data: []byte{1, 2, 3, 4},
	})
	assert.Equal(t, wire.AbortDeviceState, resp.Abort)
}

func TestServerHandleRequestData(t *testing.T) {
	server := NewServer(&mockStore{})

	// Write without data, but with a message ID.
	bad, err := wire.Marshal(map[int]any{1: 77, 2: 2, 3: testNode, 4: 0x2402})
	require.NoError(t, err)
	out, err := server.HandleRequestData(context.Background(), bad)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(77), resp.MessageID)
	assert.Equal(t, wire.AbortCommandSpecifier, resp.Abort)

	out, err = server.HandleRequestData(context.Background(), []byte{0xff})
	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestClientTimeout(t *testing.T) {
	client := NewClient(&dropSender{}, od.Bridge())
	client.SetTimeout(20 * time.Millisecond)

	_, err := client.Read(context.Background(), testNode, od.Addr(od.IndexPMOutput, 1))
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClientContextCancel(t *testing.T) {
	client := NewClient(&dropSender{}, od.Bridge())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Read(ctx, testNode, od.Addr(od.IndexPMOutput, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientClose(t *testing.T) {
	client := NewClient(&dropSender{}, od.Bridge())

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Read(context.Background(), testNode, od.Addr(od.IndexPMOutput, 1))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("pending request not released by Close")
	}

	_, err := client.Read(context.Background(), testNode, od.Addr(od.IndexPMOutput, 1))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientUnexpectedReply(t *testing.T) {
	client := NewClient(&dropSender{}, nil)
	err := client.HandleResponse(&wire.Response{MessageID: 99})
	assert.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestClientNodeDictionary(t *testing.T) {
	client := NewClient(&dropSender{}, od.Bridge())
	client.SetNodeDictionary(40, od.PowerModule())

	assert.Same(t, od.PowerModule(), client.Dictionary(40))
	assert.Same(t, od.Bridge(), client.Dictionary(testNode))

	// 0x2100 only exists in the power module dictionary.
	err := client.WriteUint8(context.Background(), testNode, od.Addr(od.IndexConvEnable, 0), 1)
	assert.ErrorIs(t, err, od.ErrObjectNotFound)
}

func TestProtocolEventsLogged(t *testing.T) {
	store := &mockStore{}
	server := NewServer(store)
	serverLog := &recordingLogger{}
	server.SetLogger(serverLog)

	client := NewLoopback(server, od.Bridge())
	defer client.Close()
	clientLog := &recordingLogger{}
	client.SetLogger(clientLog)

	addr := od.Addr(od.IndexInterlinkDCContactor, 0)
	store.On("ReadObject", uint8(testNode), addr).Return([]byte{1}, nil)

	_, err := client.ReadUint8(context.Background(), testNode, addr)
	require.NoError(t, err)

	for name, rec := range map[string]*recordingLogger{"client": clientLog, "server": serverLog} {
		require.Len(t, rec.events, 2, name)
		assert.Equal(t, log.MessageTypeRequest, rec.events[0].Message.Type, name)
		assert.Equal(t, log.MessageTypeResponse, rec.events[1].Message.Type, name)
		assert.Equal(t, uint16(0x2402), rec.events[1].Message.Index, name)
	}
	assert.Equal(t, log.DirectionOut, clientLog.events[0].Direction)
	assert.Equal(t, log.DirectionIn, serverLog.events[0].Direction)
}

func TestAbortErrorWithoutSentinel(t *testing.T) {
	err := error(&AbortError{Node: 1, Addr: od.Addr(0x2400, 1), Code: wire.AbortGeneral})
	assert.Nil(t, errors.Unwrap(err))
	assert.False(t, errors.Is(err, od.ErrReadOnly))
}
