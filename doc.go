// Package isn implements the ISOTEL Sensor Network protocol core: a
// composable, layered transport for resource-constrained devices that
// carries a structured message channel, one or more transparent byte
// streams, and an ASCII terminal over a single unreliable serial
// connection (UART, USB bulk, or UDP datagram).
//
// The core is organized leaf-to-root as a stack of Layers: a clock, a
// cooperative reactor, a framing layer, a protocol dispatcher, and a
// message layer on top. Physical transports are out of scope for this
// package; see the phy subpackage for reference adapters.
package isn
