// Package interaction implements object reads and writes between a
// controller and power bridge nodes.
//
// # Client Usage
//
// The Client validates each request against the object dictionary of the
// target node before it is sent, so malformed requests fail locally with
// the same od sentinel errors a bridge would answer with:
//
//	client := interaction.NewClient(conn, od.Bridge())
//	client.SetNodeDictionary(pmNode, od.PowerModule())
//
//	data, err := client.Read(ctx, node, od.Addr(od.IndexPMOutput, 1))
//	err = client.WriteUint8(ctx, node, od.Addr(od.IndexInterlinkDCContactor, 0), 1)
//
// A request the bridge rejects returns *AbortError. It unwraps to the
// sentinel of its abort code, so errors.Is(err, od.ErrReadOnly) holds for
// a remote "attempt to write a read-only object" as well.
//
// # Server Usage
//
// The Server validates requests against the node dictionary and then calls
// a Store. Errors returned by the Store become abort codes:
//
//	server := interaction.NewServer(store)
//	resp := server.HandleRequest(ctx, req)
//
// NewLoopback connects a Client directly to a Server for tests and
// in-process simulation.
package interaction
