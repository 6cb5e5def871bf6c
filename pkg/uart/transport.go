// Package uart provides serial transports and direction control for
// half-duplex buses.
package uart

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrTimeout indicates the wait for the line expired.
	ErrTimeout = errors.New("uart timeout")
	// ErrClosed indicates the transport is closed.
	ErrClosed = errors.New("uart closed")
)

// IOMode selects how a Transport waits on the line.
type IOMode int

// IO modes.
const (
	// Blocking reads on the caller's goroutine using the port read timeout.
	Blocking IOMode = iota
	// Async reads on a background goroutine and bounds the wait with a timer.
	Async
)

func (m IOMode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case Async:
		return "async"
	}
	return fmt.Sprintf("IOMode(%d)", int(m))
}

// ParseIOMode parses the name of an IOMode.
func ParseIOMode(s string) (IOMode, error) {
	switch strings.ToLower(s) {
	case "", "blocking", "poll":
		return Blocking, nil
	case "async", "it", "dma":
		return Async, nil
	}
	return Blocking, fmt.Errorf("unknown IO mode %q", s)
}

// Port is the part of a serial port used by transports.
// go.bug.st/serial.Port implements it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
	Drain() error
	ResetInputBuffer() error
}

// Transport moves raw bytes over a half-duplex line.
type Transport interface {
	Transmit(p []byte) error
	Receive(p []byte, timeout time.Duration) (int, error)
	io.Closer
}

// New creates the Transport for mode.
func New(mode IOMode, port Port) (Transport, error) {
	switch mode {
	case Blocking:
		return NewBlockingTransport(port), nil
	case Async:
		return NewAsyncTransport(port), nil
	}
	return nil, fmt.Errorf("unknown IO mode %v", mode)
}

// Open opens a serial port in 8N1.
func Open(name string, baudRate int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return port, nil
}

func write(port Port, p []byte) error {
	n, err := port.Write(p)
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	return port.Drain()
}
