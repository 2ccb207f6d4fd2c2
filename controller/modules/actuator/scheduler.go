package actuator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/reef-pi/farmer/pkg/log"
)

// Scheduler switches the lights by time of day.
type Scheduler struct {
	driver Driver
	cfg    Config
	log    log.Logger
	now    func() time.Time

	mu       sync.RWMutex
	settings LightSettings
}

// NewScheduler returns a scheduler in manual mode at zero intensity.
func NewScheduler(driver Driver, cfg Config) *Scheduler {
	return &Scheduler{
		driver:   driver,
		cfg:      cfg,
		log:      log.WithName("scheduler"),
		now:      time.Now,
		settings: defaultLightSettings(),
	}
}

// Settings returns the current schedule.
func (s *Scheduler) Settings() LightSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the schedule and enable flags.
func (s *Scheduler) Update(settings LightSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.log.Info("Light schedule updated", "on", settings.On, "off", settings.Off,
		"intensity", settings.Intensity, "manual", settings.Manual())
	return nil
}

// Apply drives the lights to value percent. Disabled floors are left alone
// unless value is zero, which switches every floor off.
func (s *Scheduler) Apply(value float64, enabled [LightChannels]bool) error {
	duty, err := Duty(value, s.cfg.MaxPWM)
	if err != nil {
		return err
	}
	for i, ch := range s.cfg.Lights {
		if value != 0 && !enabled[i] {
			continue
		}
		if err := s.driver.SetChannel(ch, duty); err != nil {
			return fmt.Errorf("light floor %d (channel %d): %w", i, ch, err)
		}
		channelDuty.WithLabelValues(strconv.Itoa(ch)).Set(float64(duty))
	}
	return nil
}

// Tick compares now against the schedule once.
func (s *Scheduler) Tick(now time.Time) error {
	st := s.Settings()
	if st.Manual() {
		return s.Apply(st.Intensity, st.Enabled)
	}
	clock := now.Format("15:04:05")
	if clock == st.On {
		s.log.Info("Lights on", "time", clock, "intensity", st.Intensity)
		if err := s.Apply(st.Intensity, st.Enabled); err != nil {
			return err
		}
	}
	if clock == st.Off {
		s.log.Info("Lights off", "time", clock)
		return s.Apply(0, st.Enabled)
	}
	return nil
}

// Run ticks every cfg.Tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(s.now()); err != nil {
				schedulerErrors.Inc()
				s.log.Error(err, "Scheduler tick failed")
			}
		}
	}
}
