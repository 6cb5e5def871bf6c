package dynamixel

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates a setter argument is outside the valid range.
	// No bus I/O is performed when this is returned.
	ErrOutOfRange = errors.New("value out of range")
	// ErrInvalidAddress indicates the device ID can't be addressed on the bus.
	ErrInvalidAddress = errors.New("invalid device address")
	// ErrMalformedFrame indicates a frame doesn't match the protocol layout.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrFrameTooLarge indicates the parameters don't fit in a single frame.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrMalformedFrame)
	// ErrChecksumMismatch indicates the received checksum is wrong.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNoResponse indicates nothing was received within the timeout.
	ErrNoResponse = errors.New("no response")
	// ErrTimeout indicates the response is incomplete when the timeout expires.
	ErrTimeout = errors.New("response timeout")
	// ErrTransmit indicates the request couldn't be put on the wire.
	ErrTransmit = errors.New("transmit failed")
	// ErrNotAttached indicates the bus is missing a transport or direction line.
	ErrNotAttached = errors.New("transport not attached")
)

// BusError is returned by a failed transaction.
type BusError struct {
	ID          byte
	Instruction Instruction
	Err         error
}

// Error implements error.
func (e *BusError) Error() string {
	return fmt.Sprintf("dynamixel %d %s: %v", e.ID, e.Instruction, e.Err)
}

// Unwrap returns the cause.
func (e *BusError) Unwrap() error {
	return e.Err
}

// RangeError reports a rejected setter argument.
type RangeError struct {
	Param    string
	Value    interface{}
	Min, Max interface{}
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %v not in [%v, %v]", e.Param, e.Value, e.Min, e.Max)
}

// Is makes errors.Is(err, ErrOutOfRange) true.
func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
