package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store fans frames out to per-channel rolling files and remembers the
// latest frame.
type Store struct {
	channels []Channel
	files    map[string]*RollingFile

	mu     sync.RWMutex
	latest *Frame
}

// NewStore opens one rolling file in dir for every channel that names one.
func NewStore(dir string, window int, channels []Channel) (*Store, error) {
	if err := validateChannels(channels); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{channels: channels, files: make(map[string]*RollingFile)}
	for _, ch := range channels {
		if ch.File == "" {
			continue
		}
		f, err := OpenRolling(filepath.Join(dir, ch.File), window)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		s.files[ch.Name] = f
	}
	return s, nil
}

// Append writes the frame to every rolling file. A failing file does not
// stop the others; all failures are returned together.
func (s *Store) Append(f Frame) error {
	var errs []error
	for _, ch := range s.channels {
		rf, ok := s.files[ch.Name]
		if !ok {
			continue
		}
		if err := rf.Append(f.Time, f.Values[ch.Index]); err != nil {
			errs = append(errs, err)
		}
	}
	s.mu.Lock()
	s.latest = &f
	s.mu.Unlock()
	return errors.Join(errs...)
}

// Latest returns the last appended frame.
func (s *Store) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Frame{}, false
	}
	return *s.latest, true
}

// Snapshot returns the rolling window of the named channel.
func (s *Store) Snapshot(name string) ([]Sample, error) {
	rf, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	return rf.Snapshot()
}

// Channels is the channel map the store fans frames out to.
func (s *Store) Channels() []Channel {
	return s.channels
}
