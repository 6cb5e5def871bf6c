package dynamixel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		name   string
		id     byte
		inst   Instruction
		params []byte
		frame  []byte
	}{
		{"ping", 1, InstPing, nil, []byte{0xff, 0xff, 0x01, 0x02, 0x01, 0xfb}},
		{"read temperature", 1, InstRead, []byte{0x2b, 0x01}, []byte{0xff, 0xff, 0x01, 0x04, 0x02, 0x2b, 0x01, 0xcc}},
		{"write goal position", 1, InstWrite, []byte{0x1e, 0x00, 0x02}, []byte{0xff, 0xff, 0x01, 0x05, 0x03, 0x1e, 0x00, 0x02, 0xd6}},
		{"broadcast", BroadcastID, InstWrite, []byte{0x03, 0x01}, []byte{0xff, 0xff, 0xfe, 0x04, 0x03, 0x03, 0x01, 0xf6}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame, err := Encode(c.id, c.inst, c.params)
			require.NoError(t, err)
			require.Equal(t, c.frame, frame)
			pkt := &Packet{ID: c.id, Instruction: c.inst, Params: c.params}
			b, err := pkt.Bytes()
			require.NoError(t, err)
			require.Equal(t, c.frame, b)
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(255, InstPing, nil)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Encode(1, InstWrite, make([]byte, MaxParams+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.ErrorIs(t, err, ErrMalformedFrame)

	frame, err := Encode(1, InstWrite, make([]byte, MaxParams))
	require.NoError(t, err)
	require.Len(t, frame, MaxFrameSize)
}

func TestChecksumProperty(t *testing.T) {
	for id := 0; id < int(BroadcastID); id += 17 {
		params := make([]byte, id%9)
		for n := range params {
			params[n] = byte(id * (n + 3))
		}
		frame, err := Encode(byte(id), InstWrite, params)
		require.NoError(t, err)
		var sum byte
		for _, b := range frame[2:] {
			sum += b
		}
		require.Equal(t, byte(0xff), sum, "id %d", id)
	}
}

func TestDecode(t *testing.T) {
	pkt, err := Decode([]byte{0xff, 0xff, 0x01, 0x03, 0x00, 0x20, 0xdb})
	require.NoError(t, err)
	require.Equal(t, byte(1), pkt.ID)
	require.Equal(t, StatusFlags(0), pkt.Error)
	require.Equal(t, []byte{0x20}, pkt.Params)

	frame, err := EncodeStatus(7, StatusOverheating|StatusOverload, nil)
	require.NoError(t, err)
	pkt, err = Decode(frame)
	require.NoError(t, err)
	require.Equal(t, byte(7), pkt.ID)
	require.Equal(t, "overheating|overload", pkt.Error.String())
	require.Empty(t, pkt.Params)
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		err   error
	}{
		{"empty", nil, ErrMalformedFrame},
		{"short", []byte{0xff, 0xff, 0x01, 0x02, 0x00}, ErrMalformedFrame},
		{"header", []byte{0xff, 0xfe, 0x01, 0x02, 0x00, 0xfc}, ErrMalformedFrame},
		{"length", []byte{0xff, 0xff, 0x01, 0x04, 0x00, 0x20, 0xdb}, ErrMalformedFrame},
		{"checksum", []byte{0xff, 0xff, 0x01, 0x03, 0x00, 0x20, 0xdc}, ErrChecksumMismatch},
		{"flipped param", []byte{0xff, 0xff, 0x01, 0x03, 0x00, 0x21, 0xdb}, ErrChecksumMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pkt, err := Decode(c.frame)
			require.Nil(t, pkt)
			require.ErrorIs(t, err, c.err)
		})
	}
}

func TestStatusFlagsString(t *testing.T) {
	require.Equal(t, "ok", StatusFlags(0).String())
	require.Equal(t, "input-voltage", StatusInputVoltage.String())
	require.Equal(t, "range|instruction", (StatusRange | StatusInstruction).String())
}
