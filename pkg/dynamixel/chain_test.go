package dynamixel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLine is a scripted Transport and DirectionLine.
type testLine struct {
	t        *testing.T
	events   []string
	sent     [][]byte
	replies  [][]byte
	timeouts []time.Duration
	txErr    error
}

func newTestLine(t *testing.T, replies ...[]byte) *testLine {
	return &testLine{t: t, replies: replies}
}

func (l *testLine) SetTransmit() error {
	l.events = append(l.events, "dir-tx")
	return nil
}

func (l *testLine) SetReceive() error {
	l.events = append(l.events, "dir-rx")
	return nil
}

func (l *testLine) Transmit(p []byte) error {
	l.events = append(l.events, "transmit")
	l.sent = append(l.sent, append([]byte(nil), p...))
	return l.txErr
}

func (l *testLine) Receive(p []byte, timeout time.Duration) (int, error) {
	l.events = append(l.events, "receive")
	l.timeouts = append(l.timeouts, timeout)
	if len(l.replies) == 0 {
		return 0, nil
	}
	reply := l.replies[0]
	l.replies = l.replies[1:]
	return copy(p, reply), nil
}

func (l *testLine) chain() *DaisyChain {
	return NewDaisyChain(l, l)
}

func statusFrame(t *testing.T, id byte, flags StatusFlags, params ...byte) []byte {
	frame, err := EncodeStatus(id, flags, params)
	require.NoError(t, err)
	return frame
}

func mustEncode(t *testing.T, id byte, inst Instruction, params ...byte) []byte {
	frame, err := Encode(id, inst, params)
	require.NoError(t, err)
	return frame
}

func TestTransactSequence(t *testing.T) {
	line := newTestLine(t, statusFrame(t, 3, 0, 0x20, 0x01))
	c := line.chain()
	pkt, err := c.Transact(3, InstRead, ReadParams(RegPresentSpeed, 2), 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x20, 0x01}, pkt.Params)
	require.Equal(t, []string{"dir-tx", "transmit", "dir-rx", "receive"}, line.events)
	require.Equal(t, [][]byte{mustEncode(t, 3, InstRead, RegPresentSpeed, 2)}, line.sent)
	require.Equal(t, []time.Duration{DefaultResponseTimeout}, line.timeouts)

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Transactions)
	require.Zero(t, stats.Failures())
}

func TestTransactBroadcast(t *testing.T) {
	line := newTestLine(t)
	c := line.chain()
	pkt, err := c.Transact(BroadcastID, InstWrite, WriteParams(RegTorqueEnable, 1), 0)
	require.NoError(t, err)
	require.Nil(t, pkt)
	require.Equal(t, []string{"dir-tx", "transmit", "dir-rx"}, line.events)
	require.Equal(t, uint64(1), c.Stats().Broadcasts)
}

func TestBroadcastExpectingReply(t *testing.T) {
	cases := map[string]func(*DaisyChain) error{
		"ping": func(c *DaisyChain) error { _, err := c.Ping(BroadcastID); return err },
		"read": func(c *DaisyChain) error { _, err := c.Read(BroadcastID, RegPresentSpeed, 2); return err },
		"write with reply": func(c *DaisyChain) error {
			_, err := c.Transact(BroadcastID, InstWrite, WriteParams(RegLED, 1), 1)
			return err
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			line := newTestLine(t)
			c := line.chain()
			var err error
			require.NotPanics(t, func() { err = call(c) })
			require.ErrorIs(t, err, ErrInvalidAddress)
			var busErr *BusError
			require.ErrorAs(t, err, &busErr)
			require.Equal(t, BroadcastID, busErr.ID)
			require.Empty(t, line.events)
			require.Zero(t, c.Stats().Transactions)
		})
	}
}

func TestTransactFailures(t *testing.T) {
	cases := []struct {
		name    string
		reply   []byte
		txErr   error
		err     error
		counter func(Stats) uint64
	}{
		{
			name:    "no response",
			err:     ErrNoResponse,
			counter: func(s Stats) uint64 { return s.NoResponse },
		},
		{
			name:    "truncated",
			reply:   []byte{0xff, 0xff, 0x01},
			err:     ErrTimeout,
			counter: func(s Stats) uint64 { return s.Timeouts },
		},
		{
			name:    "checksum",
			reply:   []byte{0xff, 0xff, 0x01, 0x02, 0x00, 0x00},
			err:     ErrChecksumMismatch,
			counter: func(s Stats) uint64 { return s.ChecksumErrors },
		},
		{
			name:    "wrong device",
			reply:   statusFrame(t, 2, 0),
			err:     ErrMalformedFrame,
			counter: func(s Stats) uint64 { return s.MalformedFrames },
		},
		{
			name:    "transmit",
			txErr:   errors.New("port closed"),
			err:     ErrTransmit,
			counter: func(s Stats) uint64 { return s.TransmitErrors },
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var line *testLine
			if c.reply != nil {
				line = newTestLine(t, c.reply)
			} else {
				line = newTestLine(t)
			}
			line.txErr = c.txErr
			chain := line.chain()
			pkt, err := chain.Ping(1)
			require.Nil(t, pkt)
			require.ErrorIs(t, err, c.err)
			var busErr *BusError
			require.True(t, errors.As(err, &busErr))
			require.Equal(t, byte(1), busErr.ID)
			require.Equal(t, InstPing, busErr.Instruction)
			require.Equal(t, uint64(1), c.counter(chain.Stats()))
			require.Equal(t, "dir-rx", line.events[2])
		})
	}
}

func TestTransactDeviceStatus(t *testing.T) {
	line := newTestLine(t, statusFrame(t, 4, StatusOverload))
	pkt, err := line.chain().Ping(4)
	require.NoError(t, err)
	require.Equal(t, StatusOverload, pkt.Error)
}

func TestTransactNotAttached(t *testing.T) {
	_, err := NewDaisyChain(nil, nil).Ping(1)
	require.ErrorIs(t, err, ErrNotAttached)
	line := newTestLine(t)
	_, err = NewDaisyChain(line, nil).Ping(1)
	require.ErrorIs(t, err, ErrNotAttached)
	require.Empty(t, line.events)
}

func TestTransactInvalidAddress(t *testing.T) {
	line := newTestLine(t)
	_, err := line.chain().Ping(255)
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.Empty(t, line.events)
}

// echoLine answers every non-broadcast request with an empty status and
// records whether two transactions ever overlapped.
type echoLine struct {
	active  int32
	overlap int32
	lock    sync.Mutex
	pending []byte
}

func (l *echoLine) SetTransmit() error {
	if atomic.AddInt32(&l.active, 1) > 1 {
		atomic.StoreInt32(&l.overlap, 1)
	}
	return nil
}

func (l *echoLine) SetReceive() error { return nil }

func (l *echoLine) Transmit(p []byte) error {
	frame, _ := EncodeStatus(p[2], 0, nil)
	l.lock.Lock()
	l.pending = frame
	l.lock.Unlock()
	if p[2] == BroadcastID {
		atomic.AddInt32(&l.active, -1)
	}
	time.Sleep(50 * time.Microsecond)
	return nil
}

func (l *echoLine) Receive(p []byte, timeout time.Duration) (int, error) {
	l.lock.Lock()
	n := copy(p, l.pending)
	l.lock.Unlock()
	atomic.AddInt32(&l.active, -1)
	return n, nil
}

func TestTransactExclusive(t *testing.T) {
	line := &echoLine{}
	c := NewDaisyChain(line, line)
	var wg sync.WaitGroup
	errCh := make(chan error, 64)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				if _, err := c.Ping(id); err != nil {
					errCh <- err
				}
			}
		}(byte(n + 1))
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	require.Zero(t, atomic.LoadInt32(&line.overlap))
	require.Equal(t, uint64(64), c.Stats().Transactions)
}
