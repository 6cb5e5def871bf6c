// Package sim emulates the hardware behind the controller.
package sim

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robocore/pkg/dynamixel"
)

// ErrDirection indicates a transmit while the line is in receive.
var ErrDirection = errors.New("transmit while receiving")

const controlTableSize = 0x32

// Servo is an emulated AX series device.
type Servo struct {
	ID    byte
	Model dynamixel.Model
	table [controlTableSize]byte
}

func newServo(id byte, model dynamixel.Model) *Servo {
	s := &Servo{ID: id, Model: model}
	s.put16(dynamixel.RegModelNumber, model.ModelNumber)
	s.table[dynamixel.RegID] = id
	s.table[dynamixel.RegBaudRate] = dynamixel.BaudRateDivisor(dynamixel.DefaultBaudRate)
	s.table[dynamixel.RegReturnDelayTime] = 250
	s.put16(dynamixel.RegCcwAngleLimit, model.ValueMask)
	s.table[dynamixel.RegCwComplianceMargin] = dynamixel.DefaultComplianceMargin
	s.table[dynamixel.RegCcwComplianceMargin] = dynamixel.DefaultComplianceMargin
	s.table[dynamixel.RegCwComplianceSlope] = 1 << dynamixel.DefaultComplianceSlope
	s.table[dynamixel.RegCcwComplianceSlope] = 1 << dynamixel.DefaultComplianceSlope
	s.put16(dynamixel.RegTorqueLimit, model.ValueMask)
	s.table[dynamixel.RegPresentVoltage] = 120
	s.table[dynamixel.RegPresentTemperature] = 32
	return s
}

// Register reads one byte of the control table. Addresses past the end
// read as 0.
func (s *Servo) Register(addr byte) byte {
	if int(addr) >= controlTableSize {
		return 0
	}
	return s.table[addr]
}

// Register16 reads a little-endian word of the control table. A word
// not fully inside the table reads as 0.
func (s *Servo) Register16(addr byte) uint16 {
	if int(addr)+2 > controlTableSize {
		return 0
	}
	return binary.LittleEndian.Uint16(s.table[addr:])
}

func (s *Servo) put16(addr byte, v uint16) {
	binary.LittleEndian.PutUint16(s.table[addr:], v)
}

func (s *Servo) write(addr byte, data []byte) dynamixel.StatusFlags {
	if int(addr)+len(data) > controlTableSize || len(data) == 0 {
		return dynamixel.StatusRange
	}
	copy(s.table[addr:], data)
	end := int(addr) + len(data)
	if overlaps(addr, end, dynamixel.RegGoalPosition) {
		s.put16(dynamixel.RegPresentPosition, s.Register16(dynamixel.RegGoalPosition))
	}
	if overlaps(addr, end, dynamixel.RegMovingSpeed) {
		s.put16(dynamixel.RegPresentSpeed, s.Register16(dynamixel.RegMovingSpeed))
	}
	return 0
}

// overlaps reports whether [addr, end) touches the word at reg.
func overlaps(addr byte, end int, reg byte) bool {
	return int(addr) < int(reg)+2 && end > int(reg)
}

func (s *Servo) read(addr byte, count int) ([]byte, dynamixel.StatusFlags) {
	if int(addr)+count > controlTableSize {
		return nil, dynamixel.StatusRange
	}
	return append([]byte(nil), s.table[addr:int(addr)+count]...), 0
}

// Bus emulates AX series devices sharing a half-duplex line.
// It implements dynamixel.Transport and dynamixel.DirectionLine.
type Bus struct {
	// Latency delays every reply.
	Latency time.Duration

	lock         sync.Mutex
	servos       map[byte]*Servo
	transmitting bool
	reply        []byte
	drop         int
	corrupt      int
}

// NewBus creates a Bus without devices.
func NewBus() *Bus {
	return &Bus{servos: make(map[byte]*Servo)}
}

// AddServo attaches an emulated device.
func (b *Bus) AddServo(id byte, model dynamixel.Model) *Servo {
	s := newServo(id, model)
	b.lock.Lock()
	b.servos[id] = s
	b.lock.Unlock()
	return s
}

// Servo gets an attached device.
func (b *Bus) Servo(id byte) *Servo {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.servos[id]
}

// DropReplies makes the next n replies vanish.
func (b *Bus) DropReplies(n int) {
	b.lock.Lock()
	b.drop = n
	b.lock.Unlock()
}

// CorruptReplies flips the checksum of the next n replies.
func (b *Bus) CorruptReplies(n int) {
	b.lock.Lock()
	b.corrupt = n
	b.lock.Unlock()
}

// SetTransmit implements dynamixel.DirectionLine.
func (b *Bus) SetTransmit() error {
	b.lock.Lock()
	b.transmitting = true
	b.lock.Unlock()
	return nil
}

// SetReceive implements dynamixel.DirectionLine.
func (b *Bus) SetReceive() error {
	b.lock.Lock()
	b.transmitting = false
	b.lock.Unlock()
	return nil
}

// Transmit implements dynamixel.Transport.
func (b *Bus) Transmit(p []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.transmitting {
		return ErrDirection
	}
	b.reply = nil
	// instruction frames share the status frame layout.
	req, err := dynamixel.Decode(p)
	if err != nil {
		glog.V(4).Infof("sim: ignore frame: %v", err)
		return nil
	}
	inst := dynamixel.Instruction(req.Error)
	if req.ID == dynamixel.BroadcastID {
		for _, s := range b.servos {
			b.execute(s, inst, req.Params)
		}
		return nil
	}
	s := b.servos[req.ID]
	if s == nil {
		return nil
	}
	flags, params := b.execute(s, inst, req.Params)
	if b.drop > 0 {
		b.drop--
		return nil
	}
	if b.reply, err = dynamixel.EncodeStatus(s.ID, flags, params); err != nil {
		return err
	}
	if b.corrupt > 0 {
		b.corrupt--
		b.reply[len(b.reply)-1] ^= 0xff
	}
	return nil
}

// Receive implements dynamixel.Transport.
func (b *Bus) Receive(p []byte, timeout time.Duration) (int, error) {
	b.lock.Lock()
	reply, latency := b.reply, b.Latency
	b.reply = nil
	b.lock.Unlock()
	if len(reply) == 0 {
		return 0, nil
	}
	if latency > timeout {
		time.Sleep(timeout)
		return 0, nil
	}
	if latency > 0 {
		time.Sleep(latency)
	}
	return copy(p, reply), nil
}

func (b *Bus) execute(s *Servo, inst dynamixel.Instruction, params []byte) (dynamixel.StatusFlags, []byte) {
	switch inst {
	case dynamixel.InstPing:
		return 0, nil
	case dynamixel.InstRead:
		if len(params) != 2 {
			return dynamixel.StatusInstruction, nil
		}
		data, flags := s.read(params[0], int(params[1]))
		return flags, data
	case dynamixel.InstWrite:
		if len(params) < 2 {
			return dynamixel.StatusInstruction, nil
		}
		return s.write(params[0], params[1:]), nil
	}
	return dynamixel.StatusInstruction, nil
}
