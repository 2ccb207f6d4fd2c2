// Package telemetry ingests sensor frames into per-channel rolling files.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/link"
	"github.com/reef-pi/farmer/pkg/log"
)

// Config is the telemetry subsystem configuration.
type Config struct {
	Dir      string       `json:"dir"`
	Window   int          `json:"window"`
	Channels []Channel    `json:"channels"`
	Reader   ReaderConfig `json:"reader"`
	// Archive is the monitoring CSV; empty disables it.
	Archive       string     `json:"archive"`
	ArchiveRotate string     `json:"archive_rotate"`
	ArchiveKeep   int        `json:"archive_keep"`
	MQTT          MQTTConfig `json:"mqtt"`
}

// DefaultConfig returns the rig's file layout with MQTT disabled.
func DefaultConfig() Config {
	return Config{
		Dir:           "data",
		Window:        DefaultWindow,
		Channels:      DefaultChannels(),
		Reader:        DefaultReaderConfig(),
		Archive:       "monitoringlog.csv",
		ArchiveRotate: "@daily",
		ArchiveKeep:   30,
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "farmer",
			Topic:    "farmer/telemetry",
			Timeout:  5 * time.Second,
		},
	}
}

// Controller implements controller.Subsystem for the sensor board.
type Controller struct {
	c       controller.Controller
	cfg     Config
	link    *link.Link
	reader  *Reader
	store   *Store
	archive *Archive
	pub     Publisher
	cron    *cron.Cron
	log     log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ controller.Subsystem = (*Controller)(nil)

// New returns the telemetry subsystem reading frames from l.
func New(c controller.Controller, cfg Config, l *link.Link) *Controller {
	return &Controller{
		c:    c,
		cfg:  cfg,
		link: l,
		log:  log.WithName("telemetry"),
	}
}

// Setup opens the rolling files, the archive and the optional MQTT feed.
func (m *Controller) Setup() error {
	store, err := NewStore(m.cfg.Dir, m.cfg.Window, m.cfg.Channels)
	if err != nil {
		return err
	}
	reader, err := NewReader(m.link, m.cfg.Reader, m.cfg.Channels)
	if err != nil {
		return err
	}
	m.store, m.reader = store, reader

	if m.cfg.Archive != "" {
		m.archive = NewArchive(m.cfg.Archive, m.cfg.ArchiveKeep, m.cfg.Channels)
		if m.cfg.ArchiveRotate != "" {
			m.cron = cron.New()
			if _, err := m.cron.AddFunc(m.cfg.ArchiveRotate, m.rotateArchive); err != nil {
				return fmt.Errorf("archive rotation %q: %w", m.cfg.ArchiveRotate, err)
			}
		}
	}

	if m.cfg.MQTT.Enable {
		pub, err := NewMQTTPublisher(m.cfg.MQTT, m.cfg.Channels)
		if err != nil {
			// telemetry keeps running without the remote feed
			m.c.LogError("telemetry", err.Error())
		} else {
			m.pub = pub
		}
	}
	return nil
}

func (m *Controller) rotateArchive() {
	if err := m.archive.Rotate(); err != nil {
		m.c.LogError("telemetry", "archive rotation: "+err.Error())
	}
}

// Start discards stale input and runs the ingestion loop.
func (m *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	if err := m.link.Session(ctx, func(s *link.Session) error { return s.Reset() }); err != nil {
		m.log.Warn("Could not flush sensor input", "err", err)
	}
	if m.cron != nil {
		m.cron.Start()
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
	m.log.Info("Telemetry ingestion started", "link", m.link.Name(), "dir", m.cfg.Dir)
}

// Stop ends ingestion and releases the archive and the publisher.
func (m *Controller) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.pub != nil {
		m.pub.Close()
	}
	if m.archive != nil {
		if err := m.archive.Close(); err != nil {
			m.log.Error(err, "Failed to close monitoring archive")
		}
	}
}

func (m *Controller) run(ctx context.Context) {
	for ctx.Err() == nil {
		err := m.Cycle(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil, errors.Is(err, link.ErrClosed):
			return
		case errors.Is(err, link.ErrTimeout):
			m.log.Warn("Sensor link timed out", "err", err)
		case errors.Is(err, ErrMalformedTelemetry):
			m.log.Warn("Dropped malformed sensor cycle", "err", err)
		default:
			m.log.Error(err, "Telemetry cycle failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Cycle reads one frame and stores it. A frame that fails to read leaves
// every rolling file as it was.
func (m *Controller) Cycle(ctx context.Context) error {
	f, err := m.reader.ReadFrame(ctx)
	if err != nil {
		frames.WithLabelValues(resultFor(err)).Inc()
		return err
	}
	if err := m.store.Append(f); err != nil {
		frames.WithLabelValues("write_error").Inc()
		return err
	}
	frames.WithLabelValues("ok").Inc()
	for _, ch := range m.cfg.Channels {
		readings.WithLabelValues(ch.Name).Set(f.Values[ch.Index])
	}
	if m.archive != nil {
		if err := m.archive.Append(f); err != nil {
			m.log.Error(err, "Monitoring archive append failed")
		}
	}
	if m.pub != nil {
		if err := m.pub.Publish(f); err != nil {
			m.log.Warn("Telemetry publish failed", "err", err)
		}
	}
	return nil
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, ErrMalformedTelemetry):
		return "malformed"
	case errors.Is(err, link.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// Latest returns the last stored frame.
func (m *Controller) Latest() (Frame, bool) {
	return m.store.Latest()
}

// Snapshot returns the rolling window of a channel.
func (m *Controller) Snapshot(name string) ([]Sample, error) {
	return m.store.Snapshot(name)
}
