package actuator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/reef-pi/rpi/i2c"

	"github.com/reef-pi/farmer/pkg/log"
)

//go:generate mockgen -destination=mock_driver.go -package=actuator . Driver

// Driver sets the duty of one PWM channel.
type Driver interface {
	SetChannel(channel, duty int) error
}

const (
	pcaChannels = 16
	pcaMaxDuty  = 4095
	pcaOscHz    = 25_000_000

	regMode1    = 0x00
	regPrescale = 0xFE
	regLED0OnL  = 0x06

	mode1Sleep   = 0x10
	mode1AI      = 0x20
	mode1Restart = 0x80
)

// PCA9685 drives the 16 channel PWM board over i2c.
type PCA9685 struct {
	bus  i2c.Bus
	addr byte
	mu   sync.Mutex
}

// NewPCA9685 programs the board's output frequency and wakes it up.
func NewPCA9685(bus i2c.Bus, addr byte, freq int) (*PCA9685, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("pca9685: invalid frequency %d", freq)
	}
	p := &PCA9685{bus: bus, addr: addr}
	prescale := byte(math.Round(float64(pcaOscHz)/(4096*float64(freq))) - 1)
	steps := [][]byte{
		{regMode1, mode1Sleep},
		{regPrescale, prescale},
		{regMode1, mode1AI},
	}
	for _, s := range steps {
		if err := bus.WriteBytes(addr, s); err != nil {
			return nil, fmt.Errorf("pca9685 setup: %w", err)
		}
	}
	time.Sleep(5 * time.Millisecond)
	if err := bus.WriteBytes(addr, []byte{regMode1, mode1Restart | mode1AI}); err != nil {
		return nil, fmt.Errorf("pca9685 restart: %w", err)
	}
	return p, nil
}

// SetChannel turns the channel on at count 0 and off at duty.
func (p *PCA9685) SetChannel(channel, duty int) error {
	if channel < 0 || channel >= pcaChannels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if duty < 0 || duty > pcaMaxDuty {
		return fmt.Errorf("%w: %d", ErrInvalidDuty, duty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	reg := byte(regLED0OnL + 4*channel)
	return p.bus.WriteBytes(p.addr, []byte{reg, 0, 0, byte(duty & 0xFF), byte(duty >> 8)})
}

type devDriver struct {
	log log.Logger
}

func (d *devDriver) SetChannel(channel, duty int) error {
	d.log.Debug("Set channel", "channel", channel, "duty", duty)
	return nil
}

// NewDriver returns the PCA9685 on the default i2c bus, or a driver that only
// logs when devMode is set.
func NewDriver(devMode bool, cfg Config) (Driver, error) {
	if devMode {
		return &devDriver{log: log.WithName("actuator.dev")}, nil
	}
	bus, err := i2c.New()
	if err != nil {
		return nil, err
	}
	return NewPCA9685(bus, cfg.I2CAddr, cfg.Frequency)
}
