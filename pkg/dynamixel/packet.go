package dynamixel

import (
	"fmt"
	"io"
	"strings"
)

const (
	// BroadcastID addresses every device on the chain. Devices never reply to it.
	BroadcastID byte = 254
	// MaxFrameSize is the largest frame, header and checksum included.
	MaxFrameSize = 255
	// MaxParams is the largest parameter list a single frame carries.
	MaxParams = MaxFrameSize - frameOverhead

	// header(2) + id + length + instruction/error + checksum
	frameOverhead = 6
	headerByte    = 0xff
)

// Instruction is the instruction code of a request.
type Instruction byte

// Protocol 1.0 instructions.
const (
	InstPing      Instruction = 0x01
	InstRead      Instruction = 0x02
	InstWrite     Instruction = 0x03
	InstRegWrite  Instruction = 0x04
	InstAction    Instruction = 0x05
	InstReset     Instruction = 0x06
	InstSyncWrite Instruction = 0x83
)

func (i Instruction) String() string {
	switch i {
	case InstPing:
		return "PING"
	case InstRead:
		return "READ"
	case InstWrite:
		return "WRITE"
	case InstRegWrite:
		return "REG_WRITE"
	case InstAction:
		return "ACTION"
	case InstReset:
		return "RESET"
	case InstSyncWrite:
		return "SYNC_WRITE"
	}
	return fmt.Sprintf("INST(0x%02x)", byte(i))
}

// StatusFlags is the error byte reported by a device in a status packet.
type StatusFlags byte

// Status error bits.
const (
	StatusInputVoltage StatusFlags = 1 << iota
	StatusAngleLimit
	StatusOverheating
	StatusRange
	StatusChecksum
	StatusOverload
	StatusInstruction
)

var statusFlagNames = []string{
	"input-voltage",
	"angle-limit",
	"overheating",
	"range",
	"checksum",
	"overload",
	"instruction",
}

func (f StatusFlags) String() string {
	if f == 0 {
		return "ok"
	}
	var names []string
	for n, name := range statusFlagNames {
		if f&(1<<uint(n)) != 0 {
			names = append(names, name)
		}
	}
	if f&0x80 != 0 {
		names = append(names, "bit7")
	}
	return strings.Join(names, "|")
}

// Packet is an instruction packet sent to devices.
type Packet struct {
	ID          byte
	Instruction Instruction
	Params      []byte
}

// StatusPacket is the decoded reply from a device.
type StatusPacket struct {
	ID     byte
	Error  StatusFlags
	Params []byte
}

// Checksum calculates the protocol checksum over id, length, instruction
// (or error) and params.
func Checksum(id, length, instruction byte, params []byte) byte {
	sum := uint(id) + uint(length) + uint(instruction)
	for _, b := range params {
		sum += uint(b)
	}
	return ^byte(sum)
}

// Encode builds an instruction frame.
func Encode(id byte, inst Instruction, params []byte) ([]byte, error) {
	if id > BroadcastID {
		return nil, ErrInvalidAddress
	}
	if len(params) > MaxParams {
		return nil, ErrFrameTooLarge
	}
	length := byte(len(params) + 2)
	b := make([]byte, len(params)+frameOverhead)
	b[0], b[1], b[2], b[3], b[4] = headerByte, headerByte, id, length, byte(inst)
	copy(b[5:], params)
	b[len(b)-1] = Checksum(id, length, byte(inst), params)
	return b, nil
}

// Bytes returns the encoded frame.
func (p *Packet) Bytes() ([]byte, error) {
	return Encode(p.ID, p.Instruction, p.Params)
}

// WriteTo writes the encoded frame.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	b, err := p.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Decode parses a complete status frame.
func Decode(frame []byte) (*StatusPacket, error) {
	if len(frame) < frameOverhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}
	if frame[0] != headerByte || frame[1] != headerByte {
		return nil, fmt.Errorf("%w: bad header % x", ErrMalformedFrame, frame[:2])
	}
	length := frame[3]
	if int(length)+4 != len(frame) {
		return nil, fmt.Errorf("%w: length %d in %d bytes", ErrMalformedFrame, length, len(frame))
	}
	last := len(frame) - 1
	params := frame[5:last]
	if sum := Checksum(frame[2], length, frame[4], params); sum != frame[last] {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksumMismatch, frame[last], sum)
	}
	pkt := &StatusPacket{ID: frame[2], Error: StatusFlags(frame[4])}
	if len(params) > 0 {
		pkt.Params = append([]byte(nil), params...)
	}
	return pkt, nil
}

// EncodeStatus builds a status frame. Used by device emulators.
func EncodeStatus(id byte, flags StatusFlags, params []byte) ([]byte, error) {
	return Encode(id, Instruction(flags), params)
}

// ReadParams builds the parameters of a READ instruction.
func ReadParams(addr byte, count int) []byte {
	return []byte{addr, byte(count)}
}

// WriteParams builds the parameters of a WRITE instruction.
func WriteParams(addr byte, data ...byte) []byte {
	return append([]byte{addr}, data...)
}
