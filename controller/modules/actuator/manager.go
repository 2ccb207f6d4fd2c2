// Package actuator drives the rig's lights, pumps and fans.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/storage"
	"github.com/reef-pi/farmer/pkg/log"
)

// Controller implements controller.Subsystem for the actuator board.
type Controller struct {
	c         controller.Controller
	cfg       Config
	driver    Driver
	scheduler *Scheduler
	log       log.Logger

	mu     sync.Mutex
	dosing DosingSettings
	quit   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ controller.Subsystem = (*Controller)(nil)

// New returns the actuator subsystem driving the PWM board through driver.
func New(c controller.Controller, cfg Config, driver Driver) *Controller {
	return &Controller{
		c:         c,
		cfg:       cfg,
		driver:    driver,
		scheduler: NewScheduler(driver, cfg),
		log:       log.WithName("actuator"),
		dosing:    defaultDosingSettings(),
	}
}

// Setup creates the bucket and restores the persisted light and dosing
// settings, bootstrapping defaults on first run.
func (m *Controller) Setup() error {
	if err := m.c.Store().CreateBucket(Bucket); err != nil {
		return err
	}

	lights := defaultLightSettings()
	if err := m.load(lightingID, &lights); err != nil {
		return err
	}
	if err := m.scheduler.Update(lights); err != nil {
		return fmt.Errorf("stored light settings: %w", err)
	}

	dosing := defaultDosingSettings()
	if err := m.load(dosingID, &dosing); err != nil {
		return err
	}
	m.mu.Lock()
	m.dosing = dosing
	m.mu.Unlock()
	return nil
}

func (m *Controller) load(id string, v interface{}) error {
	err := m.c.Store().Get(Bucket, id, v)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return m.c.Store().Put(Bucket, id, v)
	}
	return err
}

// Start launches the light scheduler and, when enabled, the dosing schedule.
func (m *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.startDosing()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.scheduler.Run(ctx)
	}()
	m.log.Info("Actuator scheduler started", "tick", m.cfg.Tick)
}

// Stop ends the scheduler and dosing loops.
func (m *Controller) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.stopDosing()
	m.mu.Unlock()
	m.wg.Wait()
}

// Lighting returns the current light schedule.
func (m *Controller) Lighting() LightSettings {
	return m.scheduler.Settings()
}

// UpdateLighting validates, persists and then activates a new schedule.
func (m *Controller) UpdateLighting(s LightSettings) error {
	s.ID = lightingID
	if err := s.Validate(); err != nil {
		return err
	}
	if err := m.c.Store().Put(Bucket, lightingID, s); err != nil {
		return err
	}
	return m.scheduler.Update(s)
}

// Dosing returns the current dosing settings.
func (m *Controller) Dosing() DosingSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dosing
}

// UpdateDosing persists new dosing settings and restarts the schedule.
func (m *Controller) UpdateDosing(d DosingSettings) error {
	d.ID = dosingID
	if _, err := Duty(d.Intensity, m.cfg.MaxPWM); err != nil {
		return err
	}
	if d.Seconds <= 0 {
		return fmt.Errorf("dosing duration must be positive, got %d", d.Seconds)
	}
	if _, err := ParseSchedule(d.Schedule); err != nil {
		return fmt.Errorf("dosing schedule: %w", err)
	}
	if err := m.c.Store().Put(Bucket, dosingID, d); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	running := m.cancel != nil
	m.stopDosing()
	m.dosing = d
	if running {
		m.startDosing()
	}
	m.log.Info("Dosing settings saved", "enable", d.Enable, "schedule", d.Schedule)
	return nil
}

// startDosing must be called with m.mu held.
func (m *Controller) startDosing() {
	d := m.dosing
	if !d.Enable || d.Schedule == "" {
		return
	}
	rr, err := ParseSchedule(d.Schedule)
	if err != nil {
		m.c.LogError("actuator", "dosing schedule: "+err.Error())
		return
	}
	q := make(chan struct{})
	m.quit = q
	StartSchedule(rr, q, func() { m.dose(d, q) })
}

// stopDosing must be called with m.mu held.
func (m *Controller) stopDosing() {
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
}

func (m *Controller) dose(d DosingSettings, quit <-chan struct{}) {
	if err := m.SetNutrients(d.Intensity); err != nil {
		dosingRuns.WithLabelValues("failed").Inc()
		m.c.LogError("actuator", "dosing start: "+err.Error())
		return
	}
	select {
	case <-time.After(time.Duration(d.Seconds) * time.Second):
	case <-quit:
	}
	if err := m.SetNutrients(0); err != nil {
		dosingRuns.WithLabelValues("failed").Inc()
		m.c.LogError("actuator", "dosing stop: "+err.Error())
		return
	}
	dosingRuns.WithLabelValues("success").Inc()
}
