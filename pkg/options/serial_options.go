package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SerialOptions)(nil)

// SerialOptions names a serial device. The flag prefix tells the robot and
// sensor links apart.
type SerialOptions struct {
	Device string `json:"device" yaml:"device" mapstructure:"device"`
	Baud   int    `json:"baud" yaml:"baud" mapstructure:"baud"`
}

// NewRobotOptions returns the default robot port settings.
func NewRobotOptions() *SerialOptions {
	return &SerialOptions{Device: "/dev/ttyACM0", Baud: 9600}
}

// NewSensorOptions returns the default sensor board port settings.
func NewSensorOptions() *SerialOptions {
	return &SerialOptions{Device: "/dev/ttyACM1", Baud: 115200}
}

func (o *SerialOptions) Validate() []error {
	if o == nil {
		return nil
	}
	errs := []error{}
	if o.Device == "" {
		errs = append(errs, fmt.Errorf("serial device must not be empty"))
	}
	if o.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial baud rate must be positive, got %d", o.Baud))
	}
	return errs
}

func (o *SerialOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Device, join(prefixes, "device"), o.Device, "Serial device path.")
	fs.IntVar(&o.Baud, join(prefixes, "baud"), o.Baud, "Serial baud rate.")
}
