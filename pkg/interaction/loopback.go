package interaction

import (
	"context"

	"github.com/powerbridge/pwb-go/pkg/od"
)

// Loopback connects a Client to a Server in the same process.
type Loopback struct {
	server *Server
	client *Client
}

// NewLoopback returns a client that sends its requests to server.
// Responses are delivered before Send returns.
func NewLoopback(server *Server, dict *od.Dictionary) *Client {
	lb := &Loopback{server: server}
	lb.client = NewClient(lb, dict)
	return lb.client
}

// Send hands an encoded request to the server.
func (l *Loopback) Send(data []byte) error {
	resp, err := l.server.HandleRequestData(context.Background(), data)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return l.client.HandleResponseData(resp)
}
