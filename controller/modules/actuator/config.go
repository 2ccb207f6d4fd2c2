package actuator

import "time"

// Bucket is the store bucket for actuator settings.
const Bucket = "actuator"

const (
	lightingID = "lighting"
	dosingID   = "dosing"

	// Sentinel is the on/off time pair value that selects manual mode.
	Sentinel = "00:00:00"

	// LightChannels is the number of independently switched light floors.
	LightChannels = 4
)

// Config is the fixed wiring of the actuator board.
type Config struct {
	I2CAddr   byte          `json:"i2c_addr"`
	Frequency int           `json:"frequency"`
	MaxPWM    int           `json:"max_pwm"`
	Tick      time.Duration `json:"tick"`
	// Lights lists the PWM channel of each floor, ground floor first.
	Lights     [LightChannels]int `json:"lights"`
	Pump       int                `json:"pump"`
	Nutrients  int                `json:"nutrients"`
	ResetDelay time.Duration      `json:"reset_delay"`
}

// DefaultConfig matches the rig's board wiring.
func DefaultConfig() Config {
	return Config{
		I2CAddr:    0x40,
		Frequency:  70,
		MaxPWM:     4095,
		Tick:       time.Second,
		Lights:     [LightChannels]int{1, 4, 5, 8},
		Pump:       9,
		Nutrients:  2,
		ResetDelay: 100 * time.Millisecond,
	}
}

// LightSettings is the current light schedule. It is replaced as a whole.
type LightSettings struct {
	ID        string              `json:"id"`
	On        string              `json:"on"`
	Off       string              `json:"off"`
	Intensity float64             `json:"intensity"`
	Enabled   [LightChannels]bool `json:"enabled"`
}

// Manual reports whether both times hold the sentinel, in which case the
// intensity is applied on every tick.
func (s LightSettings) Manual() bool {
	return s.On == Sentinel && s.Off == Sentinel
}

// Validate normalises the times and checks the intensity.
func (s *LightSettings) Validate() error {
	on, err := NormalizeTime(s.On)
	if err != nil {
		return err
	}
	off, err := NormalizeTime(s.Off)
	if err != nil {
		return err
	}
	if _, err := Duty(s.Intensity, 1); err != nil {
		return err
	}
	s.On, s.Off = on, off
	return nil
}

func defaultLightSettings() LightSettings {
	return LightSettings{ID: lightingID, On: Sentinel, Off: Sentinel}
}

// DosingSettings drives the nutrient pump on an RRULE schedule.
type DosingSettings struct {
	ID        string  `json:"id"`
	Enable    bool    `json:"enable"`
	Schedule  string  `json:"schedule"`
	Intensity float64 `json:"intensity"`
	// Seconds is how long the pump runs on each occurrence.
	Seconds int `json:"seconds"`
}

func defaultDosingSettings() DosingSettings {
	return DosingSettings{ID: dosingID, Schedule: "FREQ=DAILY;BYHOUR=8;BYMINUTE=0;BYSECOND=0", Intensity: 50, Seconds: 30}
}
