// Package simulator implements a power bridge in memory.
//
// A Simulator serves the bridge dictionary on its node and the power
// module dictionary on the node of every fitted module. It plugs into an
// interaction.Server as its Store, either in process through a Loopback or
// behind the TCP gateway:
//
//	sim, err := simulator.New(simulator.DefaultConfig())
//	srv := interaction.NewServer(sim)
//	gw := transport.NewGatewayServer(transport.ServerConfig{Address: ":7460"}, srv)
//
// Configuration objects marked persist in the dictionary are saved to
// Config.StatePath and survive Restart. A power module type written to
// 0x2420 is reported at once but used only after Restart.
package simulator
