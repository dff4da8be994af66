// Package connection keeps a controller attached to a gateway.
//
// A Manager owns one gateway session at a time. When the session ends it
// dials again with exponential backoff:
//
//	delay(n) = min(Initial * Multiplier^n, Max) + random(0, delay * Jitter)
//
// The backoff resets after every successful dial. Manager implements the
// object Read and Write of bridge.Conn, so a bridge.Bridge built on it
// survives reconnects; requests issued while no session is up fail with
// ErrNotConnected.
package connection
