// Package phy provides reference physical-layer adapters for the isn
// stack: an in-memory loopback pair for tests, a pseudo-terminal for
// interactive demos, and a real UART device for hardware use. None of
// these are part of the protocol core — physical drivers are external
// collaborators the core only ever touches through Device's
// Read/Write/Close contract.
package phy

import "io"

// Device is the I/O contract a FrameLayer needs from a physical
// transport: an unbounded byte stream to read frames and terminal
// bytes from, and to write encoded frames and terminal bytes to.
// UART, USB bulk, and UDP datagram transports all reduce to this
// shape at the point they hand bytes to the frame layer; anything
// about datagram boundaries, baud rates, or USB endpoint numbers is
// the adapter's own concern, not the core's.
type Device interface {
	io.Reader
	io.Writer
	io.Closer
}
