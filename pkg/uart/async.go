package uart

import (
	"sync"
	"time"
)

const (
	// DefaultWriteTimeout bounds a transmit in Async mode.
	DefaultWriteTimeout = 100 * time.Millisecond

	asyncPollInterval = 50 * time.Millisecond
	asyncChunkSize    = 64
)

// AsyncTransport reads the line on a background goroutine, so the wait in
// Receive is bounded by a timer rather than the port read timeout.
// Transmit and Receive must not be called concurrently.
type AsyncTransport struct {
	Port         Port
	WriteTimeout time.Duration

	dataCh    chan []byte
	errCh     chan error
	stopCh    chan struct{}
	rest      []byte
	closeOnce sync.Once
}

// NewAsyncTransport creates an AsyncTransport and starts reading.
func NewAsyncTransport(port Port) *AsyncTransport {
	t := &AsyncTransport{
		Port:         port,
		WriteTimeout: DefaultWriteTimeout,
		dataCh:       make(chan []byte, 16),
		errCh:        make(chan error, 1),
		stopCh:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Transmit implements Transport. A write exceeding WriteTimeout fails with
// ErrTimeout, but only after the write has returned, so the next transmit
// never overlaps it on the line.
func (t *AsyncTransport) Transmit(p []byte) error {
	t.flush()
	done := make(chan error, 1)
	go func() {
		done <- write(t.Port, p)
	}()
	timeout := t.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	case <-t.stopCh:
		return ErrClosed
	}
	// The late write still owns the port until it returns; Close unblocks it.
	select {
	case <-done:
		return ErrTimeout
	case <-t.stopCh:
		return ErrClosed
	}
}

// Receive implements Transport.
func (t *AsyncTransport) Receive(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var n int
	for {
		if len(t.rest) > 0 {
			m := copy(p[n:], t.rest)
			t.rest = t.rest[m:]
			n += m
		}
		if n >= len(p) {
			return n, nil
		}
		select {
		case t.rest = <-t.dataCh:
		case err := <-t.errCh:
			t.keepErr(err)
			return n, err
		case <-timer.C:
			return n, ErrTimeout
		case <-t.stopCh:
			return n, ErrClosed
		}
	}
}

// Close stops the reader and closes the port.
func (t *AsyncTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.Port.Close()
	})
	return err
}

func (t *AsyncTransport) readLoop() {
	if err := t.Port.SetReadTimeout(asyncPollInterval); err != nil {
		t.keepErr(err)
		return
	}
	buf := make([]byte, asyncChunkSize)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		n, err := t.Port.Read(buf)
		if err != nil {
			t.keepErr(err)
			return
		}
		if n == 0 {
			continue
		}
		chunk := append([]byte(nil), buf[:n]...)
		select {
		case t.dataCh <- chunk:
		case <-t.stopCh:
			return
		}
	}
}

func (t *AsyncTransport) flush() {
	t.rest = nil
	for {
		select {
		case <-t.dataCh:
		default:
			return
		}
	}
}

// keepErr makes a reader failure visible to every later Receive.
func (t *AsyncTransport) keepErr(err error) {
	select {
	case t.errCh <- err:
	default:
	}
}
