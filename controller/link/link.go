// Package link wraps a serial port as a line-oriented channel that is used by
// exactly one exchange at a time.
package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrTimeout is returned when no complete line arrived before the deadline.
	ErrTimeout = errors.New("link read timed out")
	ErrClosed  = errors.New("link closed")
)

const (
	defaultPollSlice = 100 * time.Millisecond
	readBufferSize   = 256
)

// Port is the part of a serial port a Link needs. go.bug.st/serial ports
// satisfy it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Link serialises access to one physical port.
type Link struct {
	name    string
	port    Port
	sem     chan struct{}
	pending []byte
	buf     []byte
	poll    time.Duration
	closed  chan struct{}

	closeOnce sync.Once
}

// Open opens a serial device at the given baud rate.
func Open(device string, baud int) (*Link, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return New(device, p), nil
}

// New wraps an already open port.
func New(name string, p Port) *Link {
	return &Link{
		name:   name,
		port:   p,
		sem:    make(chan struct{}, 1),
		buf:    make([]byte, readBufferSize),
		poll:   defaultPollSlice,
		closed: make(chan struct{}),
	}
}

// Name is the device the link was opened on.
func (l *Link) Name() string { return l.name }

// Session runs fn with exclusive use of the link. It waits for any running
// session to finish or for ctx to be done.
func (l *Link) Session(ctx context.Context, fn func(s *Session) error) error {
	if l.isClosed() {
		return ErrClosed
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrClosed
	}
	defer func() { <-l.sem }()
	if l.isClosed() {
		return ErrClosed
	}
	return fn(&Session{l: l})
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Close releases the port. Sessions started afterwards fail with ErrClosed.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.port.Close()
	})
	return err
}

// Session is the handle an exchange uses while it owns the link.
type Session struct {
	l *Link
}

// WriteLine writes s followed by a newline.
func (s *Session) WriteLine(line string) error {
	msg := make([]byte, 0, len(line)+1)
	msg = append(msg, line...)
	msg = append(msg, '\n')
	for len(msg) > 0 {
		n, err := s.l.port.Write(msg)
		if err != nil {
			return fmt.Errorf("write %s: %w", s.l.name, err)
		}
		msg = msg[n:]
	}
	return nil
}

// ReadLine returns the next line without its terminator, waiting at most
// timeout for it to complete.
func (s *Session) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	l := s.l
	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(l.pending[:i]), "\r")
			l.pending = l.pending[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		if remaining > l.poll {
			remaining = l.poll
		}
		if err := l.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("set read timeout %s: %w", l.name, err)
		}
		n, err := l.port.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", l.name, err)
		}
	}
}

// Reset discards buffered input, both locally and in the driver.
func (s *Session) Reset() error {
	s.l.pending = s.l.pending[:0]
	return s.l.port.ResetInputBuffer()
}
