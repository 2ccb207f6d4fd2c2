package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for the telemetry publisher.
type MqttOptions struct {
	Enable         bool          `json:"enable" yaml:"enable" mapstructure:"enable"`
	Broker         string        `json:"broker" yaml:"broker" mapstructure:"broker"`
	Username       string        `json:"username" yaml:"username" mapstructure:"username"`
	Password       string        `json:"password" yaml:"password" mapstructure:"password"`
	ClientID       string        `json:"client-id" yaml:"client-id" mapstructure:"client-id"`
	Topic          string        `json:"topic" yaml:"topic" mapstructure:"topic"`
	QoS            int           `json:"qos" yaml:"qos" mapstructure:"qos"`
	ConnectTimeout time.Duration `json:"connect-timeout" yaml:"connect-timeout" mapstructure:"connect-timeout"`
}

// NewMqttOptions returns MQTT options with publishing disabled.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:         "tcp://localhost:1883",
		ClientID:       "farmer",
		Topic:          "farmer/telemetry",
		ConnectTimeout: 5 * time.Second,
	}
}

func (o *MqttOptions) Validate() []error {
	if o == nil || !o.Enable {
		return nil
	}
	errs := []error{}
	if o.Broker == "" || o.Topic == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled"))
	}
	if o.QoS < 0 || o.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", o.QoS))
	}
	return errs
}

func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enable, "mqtt.enable", o.Enable, "Publish every telemetry frame to MQTT.")
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "MQTT client ID.")
	fs.StringVar(&o.Topic, "mqtt.topic", o.Topic, "Topic telemetry frames are published to.")
	fs.IntVar(&o.QoS, "mqtt.qos", o.QoS, "MQTT quality of service for telemetry.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for connecting and publishing.")
}
