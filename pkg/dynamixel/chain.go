package dynamixel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultResponseTimeout bounds the wait for a status packet.
const DefaultResponseTimeout = 20 * time.Millisecond

// Transport moves raw bytes over the half-duplex line.
type Transport interface {
	// Transmit returns after all bytes are on the wire.
	Transmit(p []byte) error
	// Receive fills p within timeout and returns the number of bytes read.
	Receive(p []byte, timeout time.Duration) (int, error)
}

// DirectionLine switches the half-duplex driver between transmit and receive.
type DirectionLine interface {
	SetTransmit() error
	SetReceive() error
}

// Stats are cumulative counters of a DaisyChain.
type Stats struct {
	Transactions    uint64
	Broadcasts      uint64
	NoResponse      uint64
	Timeouts        uint64
	ChecksumErrors  uint64
	MalformedFrames uint64
	TransmitErrors  uint64
}

// Failures is the total number of failed transactions.
func (s Stats) Failures() uint64 {
	return s.NoResponse + s.Timeouts + s.ChecksumErrors + s.MalformedFrames + s.TransmitErrors
}

// DaisyChain is the shared half-duplex bus. One transaction runs at a time.
type DaisyChain struct {
	stats Stats // first for 64-bit alignment of atomics on 32-bit ARM

	Transport Transport
	Direction DirectionLine
	Timeout   time.Duration

	lock sync.Mutex
}

// NewDaisyChain creates a DaisyChain.
func NewDaisyChain(t Transport, dir DirectionLine) *DaisyChain {
	return &DaisyChain{
		Transport: t,
		Direction: dir,
		Timeout:   DefaultResponseTimeout,
	}
}

// Stats gets a snapshot of the counters.
func (c *DaisyChain) Stats() Stats {
	return Stats{
		Transactions:    atomic.LoadUint64(&c.stats.Transactions),
		Broadcasts:      atomic.LoadUint64(&c.stats.Broadcasts),
		NoResponse:      atomic.LoadUint64(&c.stats.NoResponse),
		Timeouts:        atomic.LoadUint64(&c.stats.Timeouts),
		ChecksumErrors:  atomic.LoadUint64(&c.stats.ChecksumErrors),
		MalformedFrames: atomic.LoadUint64(&c.stats.MalformedFrames),
		TransmitErrors:  atomic.LoadUint64(&c.stats.TransmitErrors),
	}
}

// Transact sends one instruction and waits for the status packet carrying
// respParams parameters. A broadcast returns (nil, nil) once transmitted;
// a broadcast expecting a reply is rejected before any I/O.
// Transact never retries.
func (c *DaisyChain) Transact(id byte, inst Instruction, params []byte, respParams int) (*StatusPacket, error) {
	if c.Transport == nil || c.Direction == nil {
		return nil, ErrNotAttached
	}
	if id == BroadcastID && (inst == InstPing || inst == InstRead || respParams > 0) {
		return nil, &BusError{ID: id, Instruction: inst,
			Err: fmt.Errorf("%w: broadcast gets no reply", ErrInvalidAddress)}
	}
	frame, err := Encode(id, inst, params)
	if err != nil {
		return nil, &BusError{ID: id, Instruction: inst, Err: err}
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	atomic.AddUint64(&c.stats.Transactions, 1)
	if err := c.transmit(frame); err != nil {
		return nil, c.fail(id, inst, &c.stats.TransmitErrors, fmt.Errorf("%w: %v", ErrTransmit, err))
	}
	if id == BroadcastID {
		atomic.AddUint64(&c.stats.Broadcasts, 1)
		return nil, nil
	}

	buf := make([]byte, respParams+frameOverhead)
	n, err := c.Transport.Receive(buf, c.timeout())
	if glog.V(4) {
		glog.Infof("RX[%d] % x", id, buf[:n])
	}
	if n < len(buf) {
		if n == 0 {
			if err != nil {
				return nil, c.fail(id, inst, &c.stats.NoResponse, fmt.Errorf("%w: %v", ErrNoResponse, err))
			}
			return nil, c.fail(id, inst, &c.stats.NoResponse, ErrNoResponse)
		}
		return nil, c.fail(id, inst, &c.stats.Timeouts,
			fmt.Errorf("%w: %d of %d bytes", ErrTimeout, n, len(buf)))
	}

	pkt, err := Decode(buf)
	if err != nil {
		counter := &c.stats.MalformedFrames
		if errors.Is(err, ErrChecksumMismatch) {
			counter = &c.stats.ChecksumErrors
		}
		return nil, c.fail(id, inst, counter, err)
	}
	if pkt.ID != id {
		return nil, c.fail(id, inst, &c.stats.MalformedFrames,
			fmt.Errorf("%w: reply from id %d", ErrMalformedFrame, pkt.ID))
	}
	if pkt.Error != 0 {
		glog.V(2).Infof("dynamixel %d %s: device status %s", id, inst, pkt.Error)
	}
	return pkt, nil
}

// Ping checks the presence of a device.
func (c *DaisyChain) Ping(id byte) (*StatusPacket, error) {
	return c.Transact(id, InstPing, nil, 0)
}

// Read reads count bytes from the control table starting at addr.
func (c *DaisyChain) Read(id, addr byte, count int) ([]byte, error) {
	pkt, err := c.Transact(id, InstRead, ReadParams(addr, count), count)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, &BusError{ID: id, Instruction: InstRead, Err: ErrInvalidAddress}
	}
	return pkt.Params, nil
}

// Write writes data into the control table starting at addr.
func (c *DaisyChain) Write(id, addr byte, data ...byte) error {
	_, err := c.Transact(id, InstWrite, WriteParams(addr, data...), 0)
	return err
}

func (c *DaisyChain) transmit(frame []byte) error {
	if err := c.Direction.SetTransmit(); err != nil {
		return err
	}
	if glog.V(4) {
		glog.Infof("TX % x", frame)
	}
	err := c.Transport.Transmit(frame)
	// the line returns to receive even when transmit fails.
	if derr := c.Direction.SetReceive(); err == nil {
		err = derr
	}
	return err
}

func (c *DaisyChain) fail(id byte, inst Instruction, counter *uint64, err error) error {
	atomic.AddUint64(counter, 1)
	glog.V(2).Infof("dynamixel %d %s failed: %v", id, inst, err)
	return &BusError{ID: id, Instruction: inst, Err: err}
}

func (c *DaisyChain) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultResponseTimeout
}
