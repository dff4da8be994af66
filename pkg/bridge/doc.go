// Package bridge provides typed access to the objects of a power bridge
// and of its power module nodes.
//
// Bridge and PowerModule translate between the wire layouts and Go
// values and validate configuration before it is written:
//
//	client := interaction.NewClient(conn, od.Bridge())
//	pwb := bridge.New(client, 10)
//	if err := pwb.SetInterlink(ctx, wire.InterlinkTimedEnable); err != nil {
//		return err
//	}
//	snap, err := pwb.Snapshot(ctx)
package bridge
