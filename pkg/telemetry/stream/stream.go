// Package stream frames telemetry packets over byte streams and datagrams.
//
// Each packet is prefixed by its length as a 4-byte little-endian integer.
// The prefix and payload are written with a single Write so a datagram
// carries exactly one packet.
package stream

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
)

// MaxPacketSize bounds the payload accepted by ReadPacket.
const MaxPacketSize = 65507 - 4

// ErrBadLength indicates the length prefix does not match the payload.
var ErrBadLength = errors.New("bad packet length")

// ReadWriter reads and writes length-prefixed packets.
type ReadWriter struct {
	io.ReadWriter
	// Datagram is set when each Read returns one whole packet.
	Datagram bool
}

// New wraps a byte stream.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s}
}

// Dial connects to address, e.g. Dial("udp", "192.168.0.2:6340").
func Dial(network, address string) (*ReadWriter, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return &ReadWriter{ReadWriter: conn, Datagram: strings.HasPrefix(network, "udp")}, nil
}

// ListenUDP receives packets sent to address.
func ListenUDP(address string) (*ReadWriter, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &ReadWriter{ReadWriter: conn, Datagram: true}, nil
}

// ReadPacket reads one packet.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	if p.Datagram {
		buf := make([]byte, MaxPacketSize+4)
		n, err := p.Read(buf)
		if err != nil {
			return nil, err
		}
		if n < 4 || int(binary.LittleEndian.Uint32(buf)) != n-4 {
			return nil, ErrBadLength
		}
		return buf[4:n], nil
	}
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, ErrBadLength
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements telemetry.Sink.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return ErrBadLength
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}

// Close closes the underlying connection if it is closable.
func (p *ReadWriter) Close() error {
	if c, ok := p.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
