package transport

import (
	"context"

	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
)

// NewGatewayServer creates a server answering gateway requests with srv.
// Frames that are not valid requests are logged and dropped.
func NewGatewayServer(config ServerConfig, srv *interaction.Server) *Server {
	logger := log.OrNoop(config.Logger)
	onError := config.OnError
	config.OnMessage = func(conn *ServerConn, msg []byte) {
		resp, err := srv.HandleRequestData(conn.Context(), msg)
		if err != nil {
			ev := log.ErrorEvent(log.LayerSDO, err, "decode request", nil)
			ev.ConnectionID = conn.ConnID()
			logger.Log(ev)
			return
		}
		if err := conn.Send(resp); err != nil && onError != nil {
			onError(conn, err)
		}
	}
	return NewServer(config)
}

// DialBridge connects to a gateway and returns an interaction client
// whose requests travel over the connection. The client is closed when
// the connection ends.
func DialBridge(ctx context.Context, address string, config ClientConfig, dict *od.Dictionary) (*interaction.Client, *ClientConn, error) {
	conn, err := Dial(ctx, address, config)
	if err != nil {
		return nil, nil, err
	}

	client := interaction.NewClient(conn, dict)
	client.SetLogger(config.Logger)
	logger := log.OrNoop(config.Logger)

	conn.Start(func(data []byte) {
		if err := client.HandleResponseData(data); err != nil {
			ev := log.ErrorEvent(log.LayerSDO, err, "response", nil)
			ev.ConnectionID = conn.ConnID()
			logger.Log(ev)
		}
	})
	go func() {
		<-conn.Done()
		client.Close()
	}()

	return client, conn, nil
}
