package uart

import (
	"time"
)

// BlockingTransport performs I/O on the caller's goroutine.
type BlockingTransport struct {
	Port Port
}

// NewBlockingTransport creates a BlockingTransport.
func NewBlockingTransport(port Port) *BlockingTransport {
	return &BlockingTransport{Port: port}
}

// Transmit implements Transport.
func (t *BlockingTransport) Transmit(p []byte) error {
	// drop late replies of earlier transactions.
	if err := t.Port.ResetInputBuffer(); err != nil {
		return err
	}
	return write(t.Port, p)
}

// Receive implements Transport.
func (t *BlockingTransport) Receive(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	var n int
	for n < len(p) {
		remain := time.Until(deadline)
		if remain <= 0 {
			return n, ErrTimeout
		}
		if err := t.Port.SetReadTimeout(remain); err != nil {
			return n, err
		}
		m, err := t.Port.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, ErrTimeout
		}
	}
	return n, nil
}

// Close implements io.Closer.
func (t *BlockingTransport) Close() error {
	return t.Port.Close()
}
