package telemetry

import (
	"bytes"
	"encoding/csv"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/reef-pi/farmer/pkg/log"
)

// archiveMaxSize is the size in megabytes at which the archive is rotated
// even if the scheduled rotation has not run yet.
const archiveMaxSize = 100

// Archive is the long-term monitoring log: one CSV row per frame. Rotated
// files are named <base>-<timestamp><ext>; only the newest keep are retained.
type Archive struct {
	path     string
	channels []Channel
	w        *lumberjack.Logger
	log      log.Logger

	mu sync.Mutex
}

// NewArchive returns an archive writing to path. keep <= 0 retains every
// rotated file.
func NewArchive(path string, keep int, channels []Channel) *Archive {
	if keep < 0 {
		keep = 0
	}
	return &Archive{
		path:     path,
		channels: channels,
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    archiveMaxSize,
			MaxBackups: keep,
			LocalTime:  true,
		},
		log: log.WithName("archive"),
	}
}

func (a *Archive) header() []string {
	row := []string{"date; time"}
	for _, ch := range a.channels {
		row = append(row, ch.Label)
	}
	return row
}

// size is the current archive size, 0 when there is none yet.
func (a *Archive) size() (int64, error) {
	info, err := os.Stat(a.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Append writes f as a row. Every file starts with a header, including the
// ones opened after a rotation.
func (a *Archive) Append(f Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	row := []string{f.Time.Format("01/02/2006; 15:04:05")}
	for _, ch := range a.channels {
		row = append(row, formatValue(f.Values[ch.Index]))
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()

	size, err := a.size()
	if err != nil {
		return err
	}
	// rotate here rather than inside the writer so the new file gets a header
	if size > 0 && size+int64(buf.Len())+1024 > int64(archiveMaxSize)*1024*1024 {
		if err := a.w.Rotate(); err != nil {
			return err
		}
		size = 0
	}
	if size == 0 {
		var hdr bytes.Buffer
		hw := csv.NewWriter(&hdr)
		if err := hw.Write(a.header()); err != nil {
			return err
		}
		hw.Flush()
		if _, err := a.w.Write(hdr.Bytes()); err != nil {
			return err
		}
	}
	_, err = a.w.Write(buf.Bytes())
	return err
}

// Rotate moves the current archive aside and starts a new one. Rotated files
// beyond the retention count are removed in the background.
func (a *Archive) Rotate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	size, err := a.size()
	if err != nil || size == 0 {
		return err
	}
	if err := a.w.Rotate(); err != nil {
		return err
	}
	a.log.Info("Monitoring archive rotated", "file", a.path, "size", humanize.Bytes(uint64(size)))
	return nil
}

// Close releases the archive file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
