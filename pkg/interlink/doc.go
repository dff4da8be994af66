// Package interlink implements the timed enable of the interlink DC
// contactor.
//
// The Contactor is the device side: a timed enable keeps the contactor
// closed for ten seconds, so a controller that stops talking to the
// bridge opens it. The Keeper is the controller side that re-sends the
// timed enable while charging is allowed.
package interlink
