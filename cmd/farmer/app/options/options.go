// Package options is the full option set of the farmer daemon.
package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/reef-pi/farmer/controller/daemon"
	"github.com/reef-pi/farmer/controller/modules/actuator"
	"github.com/reef-pi/farmer/controller/modules/relocation"
	"github.com/reef-pi/farmer/controller/modules/telemetry"
	"github.com/reef-pi/farmer/pkg/log"
	genericoptions "github.com/reef-pi/farmer/pkg/options"
)

// RelocationOptions tunes the robot exchange.
type RelocationOptions struct {
	AckTimeout      time.Duration `json:"ack-timeout" yaml:"ack-timeout" mapstructure:"ack-timeout"`
	ConsoleInterval time.Duration `json:"console-interval" yaml:"console-interval" mapstructure:"console-interval"`
}

// ActuatorOptions describes the PWM board wiring.
type ActuatorOptions struct {
	I2CAddr    int           `json:"i2c-addr" yaml:"i2c-addr" mapstructure:"i2c-addr"`
	Frequency  int           `json:"frequency" yaml:"frequency" mapstructure:"frequency"`
	MaxPWM     int           `json:"max-pwm" yaml:"max-pwm" mapstructure:"max-pwm"`
	Tick       time.Duration `json:"tick" yaml:"tick" mapstructure:"tick"`
	Lights     []int         `json:"lights" yaml:"lights" mapstructure:"lights"`
	Pump       int           `json:"pump" yaml:"pump" mapstructure:"pump"`
	Nutrients  int           `json:"nutrients" yaml:"nutrients" mapstructure:"nutrients"`
	ResetDelay time.Duration `json:"reset-delay" yaml:"reset-delay" mapstructure:"reset-delay"`
}

// TelemetryOptions configures ingestion and the rolling files.
type TelemetryOptions struct {
	Dir           string              `json:"dir" yaml:"dir" mapstructure:"dir"`
	Window        int                 `json:"window" yaml:"window" mapstructure:"window"`
	CycleTimeout  time.Duration       `json:"cycle-timeout" yaml:"cycle-timeout" mapstructure:"cycle-timeout"`
	FieldTimeout  time.Duration       `json:"field-timeout" yaml:"field-timeout" mapstructure:"field-timeout"`
	Pacing        time.Duration       `json:"pacing" yaml:"pacing" mapstructure:"pacing"`
	Archive       string              `json:"archive" yaml:"archive" mapstructure:"archive"`
	ArchiveRotate string              `json:"archive-rotate" yaml:"archive-rotate" mapstructure:"archive-rotate"`
	ArchiveKeep   int                 `json:"archive-keep" yaml:"archive-keep" mapstructure:"archive-keep"`
	Channels      []telemetry.Channel `json:"channels" yaml:"channels" mapstructure:"channels"`
}

// FarmOptions aggregates every option group of the farmer daemon.
type FarmOptions struct {
	DevMode    bool                           `json:"dev-mode" yaml:"dev-mode" mapstructure:"dev-mode"`
	Log        *log.Options                   `json:"log" yaml:"log" mapstructure:"log"`
	HTTP       *genericoptions.HttpOptions    `json:"http" yaml:"http" mapstructure:"http"`
	Storage    *genericoptions.StorageOptions `json:"storage" yaml:"storage" mapstructure:"storage"`
	Robot      *genericoptions.SerialOptions  `json:"robot" yaml:"robot" mapstructure:"robot"`
	Sensor     *genericoptions.SerialOptions  `json:"sensor" yaml:"sensor" mapstructure:"sensor"`
	MQTT       *genericoptions.MqttOptions    `json:"mqtt" yaml:"mqtt" mapstructure:"mqtt"`
	Relocation *RelocationOptions             `json:"relocation" yaml:"relocation" mapstructure:"relocation"`
	Actuator   *ActuatorOptions               `json:"actuator" yaml:"actuator" mapstructure:"actuator"`
	Telemetry  *TelemetryOptions              `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`
}

// NewFarmOptions returns the rig's defaults.
func NewFarmOptions() *FarmOptions {
	rel := relocation.DefaultConfig()
	act := actuator.DefaultConfig()
	tel := telemetry.DefaultConfig()
	return &FarmOptions{
		Log:     log.NewOptions(),
		HTTP:    genericoptions.NewHttpOptions(),
		Storage: genericoptions.NewStorageOptions(),
		Robot:   genericoptions.NewRobotOptions(),
		Sensor:  genericoptions.NewSensorOptions(),
		MQTT:    genericoptions.NewMqttOptions(),
		Relocation: &RelocationOptions{
			AckTimeout:      rel.AckTimeout,
			ConsoleInterval: rel.ConsoleInterval,
		},
		Actuator: &ActuatorOptions{
			I2CAddr:    int(act.I2CAddr),
			Frequency:  act.Frequency,
			MaxPWM:     act.MaxPWM,
			Tick:       act.Tick,
			Lights:     act.Lights[:],
			Pump:       act.Pump,
			Nutrients:  act.Nutrients,
			ResetDelay: act.ResetDelay,
		},
		Telemetry: &TelemetryOptions{
			Dir:           tel.Dir,
			Window:        tel.Window,
			CycleTimeout:  tel.Reader.CycleTimeout,
			FieldTimeout:  tel.Reader.FieldTimeout,
			Pacing:        tel.Reader.Pacing,
			Archive:       tel.Archive,
			ArchiveRotate: tel.ArchiveRotate,
			ArchiveKeep:   tel.ArchiveKeep,
			Channels:      tel.Channels,
		},
	}
}

// AddFlags registers every option group on fs.
func (o *FarmOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.DevMode, "dev-mode", o.DevMode, "Run without hardware: in-memory serial ports and a logging PWM driver.")
	o.Log.AddFlags(fs)
	o.HTTP.AddFlags(fs)
	o.Storage.AddFlags(fs)
	o.Robot.AddFlags(fs, "robot")
	o.Sensor.AddFlags(fs, "sensor")
	o.MQTT.AddFlags(fs)

	fs.DurationVar(&o.Relocation.AckTimeout, "relocation.ack-timeout", o.Relocation.AckTimeout, "How long to wait for each robot line before a relocation fails.")
	fs.DurationVar(&o.Relocation.ConsoleInterval, "relocation.console-interval", o.Relocation.ConsoleInterval, "Poll interval of the robot console reader.")

	fs.IntVar(&o.Actuator.I2CAddr, "actuator.i2c-addr", o.Actuator.I2CAddr, "I2C address of the PCA9685 board.")
	fs.IntVar(&o.Actuator.Frequency, "actuator.frequency", o.Actuator.Frequency, "PWM frequency in Hz.")
	fs.IntVar(&o.Actuator.MaxPWM, "actuator.max-pwm", o.Actuator.MaxPWM, "Duty value for 100% intensity.")
	fs.DurationVar(&o.Actuator.Tick, "actuator.tick", o.Actuator.Tick, "Light scheduler poll interval.")
	fs.IntSliceVar(&o.Actuator.Lights, "actuator.lights", o.Actuator.Lights, "PWM channel of each light floor.")
	fs.IntVar(&o.Actuator.Pump, "actuator.pump", o.Actuator.Pump, "PWM channel of the water pump.")
	fs.IntVar(&o.Actuator.Nutrients, "actuator.nutrients", o.Actuator.Nutrients, "PWM channel of the nutrient pump.")

	fs.StringVar(&o.Telemetry.Dir, "telemetry.dir", o.Telemetry.Dir, "Directory of the rolling telemetry files.")
	fs.IntVar(&o.Telemetry.Window, "telemetry.window", o.Telemetry.Window, "Samples kept per rolling file.")
	fs.DurationVar(&o.Telemetry.CycleTimeout, "telemetry.cycle-timeout", o.Telemetry.CycleTimeout, "Wait for the first field of a sensor cycle.")
	fs.DurationVar(&o.Telemetry.Pacing, "telemetry.pacing", o.Telemetry.Pacing, "Minimum gap between two sensor field reads.")
	fs.StringVar(&o.Telemetry.Archive, "telemetry.archive", o.Telemetry.Archive, "Monitoring CSV archive path, empty to disable.")
	fs.StringVar(&o.Telemetry.ArchiveRotate, "telemetry.archive-rotate", o.Telemetry.ArchiveRotate, "Cron spec for archive rotation.")
}

// Validate aggregates the errors of every group.
func (o *FarmOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Storage.Validate()...)
	if !o.DevMode {
		errs = append(errs, o.Robot.Validate()...)
		errs = append(errs, o.Sensor.Validate()...)
	}
	errs = append(errs, o.MQTT.Validate()...)

	if len(o.Actuator.Lights) != actuator.LightChannels {
		errs = append(errs, fmt.Errorf("actuator.lights needs %d channels, got %d", actuator.LightChannels, len(o.Actuator.Lights)))
	}
	if o.Actuator.I2CAddr < 0 || o.Actuator.I2CAddr > 0x7f {
		errs = append(errs, fmt.Errorf("actuator.i2c-addr %#x is not a 7-bit address", o.Actuator.I2CAddr))
	}
	if o.Actuator.MaxPWM <= 0 {
		errs = append(errs, fmt.Errorf("actuator.max-pwm must be positive"))
	}
	if o.Relocation.AckTimeout <= 0 || o.Telemetry.CycleTimeout <= 0 || o.Telemetry.Pacing <= 0 {
		errs = append(errs, fmt.Errorf("timeouts and pacing must be positive"))
	}
	return errors.Join(errs...)
}

// Config turns the options into the daemon configuration.
func (o *FarmOptions) Config() (daemon.Config, error) {
	if err := o.Validate(); err != nil {
		return daemon.Config{}, err
	}

	rel := relocation.DefaultConfig()
	rel.AckTimeout = o.Relocation.AckTimeout
	rel.ConsoleInterval = o.Relocation.ConsoleInterval

	act := actuator.DefaultConfig()
	act.I2CAddr = byte(o.Actuator.I2CAddr)
	act.Frequency = o.Actuator.Frequency
	act.MaxPWM = o.Actuator.MaxPWM
	act.Tick = o.Actuator.Tick
	copy(act.Lights[:], o.Actuator.Lights)
	act.Pump = o.Actuator.Pump
	act.Nutrients = o.Actuator.Nutrients
	act.ResetDelay = o.Actuator.ResetDelay

	tel := telemetry.DefaultConfig()
	tel.Dir = o.Telemetry.Dir
	tel.Window = o.Telemetry.Window
	tel.Reader = telemetry.ReaderConfig{
		CycleTimeout: o.Telemetry.CycleTimeout,
		FieldTimeout: o.Telemetry.FieldTimeout,
		Pacing:       o.Telemetry.Pacing,
	}
	tel.Archive = o.Telemetry.Archive
	tel.ArchiveRotate = o.Telemetry.ArchiveRotate
	tel.ArchiveKeep = o.Telemetry.ArchiveKeep
	if len(o.Telemetry.Channels) > 0 {
		tel.Channels = o.Telemetry.Channels
	}
	tel.MQTT = telemetry.MQTTConfig{
		Enable:   o.MQTT.Enable,
		Broker:   o.MQTT.Broker,
		ClientID: o.MQTT.ClientID,
		Topic:    o.MQTT.Topic,
		Username: o.MQTT.Username,
		Password: o.MQTT.Password,
		QoS:      byte(o.MQTT.QoS),
		Timeout:  o.MQTT.ConnectTimeout,
	}

	return daemon.Config{
		DevMode:         o.DevMode,
		HTTPAddr:        o.HTTP.Addr,
		ShutdownTimeout: o.HTTP.ShutdownTimeout,
		DBPath:          o.Storage.DBPath,
		RegistryPath:    o.Storage.RegistryPath,
		Positions:       o.Storage.Positions,
		Robot:           daemon.SerialConfig{Device: o.Robot.Device, Baud: o.Robot.Baud},
		Sensor:          daemon.SerialConfig{Device: o.Sensor.Device, Baud: o.Sensor.Baud},
		Relocation:      rel,
		Actuator:        act,
		Telemetry:       tel,
	}, nil
}
