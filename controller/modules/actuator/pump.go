package actuator

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SetPump drives the water pump to value percent.
func (m *Controller) SetPump(value float64) error {
	return m.setPercent("pump", m.cfg.Pump, value)
}

// SetNutrients drives the nutrient pump to value percent.
func (m *Controller) SetNutrients(value float64) error {
	return m.setPercent("nutrients", m.cfg.Nutrients, value)
}

func (m *Controller) setPercent(name string, channel int, value float64) error {
	duty, err := Duty(value, m.cfg.MaxPWM)
	if err != nil {
		return err
	}
	if err := m.setChannel(channel, duty); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	m.log.Info("Actuator set", "actuator", name, "channel", channel, "value", value, "duty", duty)
	return nil
}

// StartCirculation runs a circulation fan on channel at a raw duty.
func (m *Controller) StartCirculation(channel, duty int) error {
	if duty < 0 || duty > m.cfg.MaxPWM {
		return fmt.Errorf("%w: %d", ErrInvalidDuty, duty)
	}
	return m.setChannel(channel, duty)
}

// StopCirculation switches the fan on channel off.
func (m *Controller) StopCirculation(channel int) error {
	return m.setChannel(channel, 0)
}

// ResetChannels switches every board channel off, one at a time.
func (m *Controller) ResetChannels(ctx context.Context) error {
	m.log.Info("Resetting PWM channels")
	for ch := 0; ch < pcaChannels; ch++ {
		if err := m.setChannel(ch, 0); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ResetDelay):
		}
	}
	m.log.Info("PWM channels reset")
	return nil
}

func (m *Controller) setChannel(channel, duty int) error {
	if channel < 0 || channel >= pcaChannels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if err := m.driver.SetChannel(channel, duty); err != nil {
		return err
	}
	channelDuty.WithLabelValues(strconv.Itoa(channel)).Set(float64(duty))
	return nil
}
