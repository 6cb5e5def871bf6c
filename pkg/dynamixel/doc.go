// Package dynamixel implements the Dynamixel protocol 1.0 over a
// half-duplex daisy-chained serial bus.
package dynamixel

// All devices share one line. The controller drives the line only while
// transmitting an instruction packet, then flips the direction line and
// waits a bounded time for the addressed device to answer with a status
// packet. Broadcast instructions are never answered.
//
// The bus doesn't retry. Retrying, backing off or marking a device
// offline is left to the caller.
