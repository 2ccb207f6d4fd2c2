package link

import (
	"bytes"
	"sync"
	"time"
)

// FakePort is an in-memory Port for tests and dev mode. Reads return queued
// input; an empty queue behaves like a driver read timeout.
type FakePort struct {
	mu      sync.Mutex
	input   bytes.Buffer
	written bytes.Buffer
	timeout time.Duration
	// OnWrite, when set, is called with every chunk written to the port.
	OnWrite func(p []byte)
}

// NewFakePort returns a port with no pending input.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// Feed queues data to be read from the port.
func (f *FakePort) Feed(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input.WriteString(s)
}

// Written returns everything written to the port so far.
func (f *FakePort) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func (f *FakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.input.Len() > 0 {
		n, err := f.input.Read(p)
		f.mu.Unlock()
		return n, err
	}
	timeout := f.timeout
	f.mu.Unlock()
	time.Sleep(timeout)
	return 0, nil
}

func (f *FakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.written.Write(p)
	hook := f.OnWrite
	f.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return len(p), nil
}

func (f *FakePort) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = t
	return nil
}

func (f *FakePort) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input.Reset()
	return nil
}

func (f *FakePort) Close() error { return nil }
