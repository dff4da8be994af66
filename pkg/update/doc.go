// Package update drives the firmware update of the power modules behind
// a power bridge.
//
// The bridge takes the images through five objects: the verification
// mode (0x2444), the start object carrying the image versions (0x2440),
// the status (0x2441), the 4-byte data frame (0x2442) and the data end
// marker (0x2443). An Updater runs the handshake against any Device,
// usually a *bridge.Bridge:
//
//	u := update.New(pwb,
//	    update.WithMode(wire.UpdateVerifyNum),
//	    update.WithProgress(func(p update.Progress) {
//	        fmt.Printf("%s image %d %d/%d\n", p.Phase, p.Image, p.BytesSent, p.BytesTotal)
//	    }),
//	)
//	err := u.Run(ctx, update.Images{Version: v, PFC: pfc, DCDC: dcdc})
//
// A failure reported by the bridge is returned as *Error with the error
// id, the stage it was reported in and the detail word.
package update
