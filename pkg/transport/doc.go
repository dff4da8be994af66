// Package transport carries gateway messages between controllers and a
// power bridge gateway over TCP.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  CBOR Request / Response       │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// Each frame is a 4-byte big-endian length followed by one CBOR message.
// The gateway forwards each request as an object read or write to the
// addressed node and answers with the value or a CiA 301 abort code.
//
// The server accepts at most ServerConfig.MaxConnections controllers and
// can close controllers that stay silent for IdleTimeout.
//
// NewGatewayServer serves an interaction.Server; DialBridge returns an
// interaction.Client bound to a connection. Every connection gets a UUID
// that tags its frame and state events in the protocol log.
package transport
