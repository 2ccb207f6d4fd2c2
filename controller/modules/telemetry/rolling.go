package telemetry

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// DefaultWindow is how many samples a rolling file keeps.
const DefaultWindow = 8

// Sample is one line of a rolling file.
type Sample struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// RollingFile keeps the newest samples of one channel as
// "<HH:MM:SS>;<value>" lines, oldest first. Every append replaces the file
// atomically, so readers never see a partial window.
type RollingFile struct {
	path   string
	window int

	mu    sync.RWMutex
	lines []string
}

// OpenRolling loads an existing file, keeping its newest window lines.
func OpenRolling(path string, window int) (*RollingFile, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	f := &RollingFile{path: path, window: window}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			f.lines = append(f.lines, line)
		}
	}
	if len(f.lines) > window {
		f.lines = f.lines[len(f.lines)-window:]
	}
	return f, sc.Err()
}

// Append adds a sample, dropping the oldest once the window is full. The
// in-memory window only moves when the file was replaced.
func (f *RollingFile) Append(at time.Time, value float64) error {
	line := at.Format("15:04:05") + ";" + formatValue(value)

	f.mu.Lock()
	defer f.mu.Unlock()
	next := make([]string, 0, f.window)
	if len(f.lines) >= f.window {
		next = append(next, f.lines[len(f.lines)-f.window+1:]...)
	} else {
		next = append(next, f.lines...)
	}
	next = append(next, line)

	var buf bytes.Buffer
	for _, l := range next {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if err := renameio.WriteFile(f.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.lines = next
	return nil
}

// Snapshot returns the current window, oldest first.
func (f *RollingFile) Snapshot() ([]Sample, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Sample, 0, len(f.lines))
	for _, l := range f.lines {
		s, err := parseLine(l)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseLine(line string) (Sample, error) {
	ts, val, ok := strings.Cut(line, ";")
	if !ok {
		return Sample{}, fmt.Errorf("line %q: missing separator", line)
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("line %q: %w", line, err)
	}
	return Sample{Time: ts, Value: v}, nil
}
