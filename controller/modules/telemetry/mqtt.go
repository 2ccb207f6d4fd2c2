package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/reef-pi/farmer/pkg/log"
)

// MQTTConfig selects the broker and topic frames are published to.
type MQTTConfig struct {
	Enable   bool          `json:"enable"`
	Broker   string        `json:"broker"`
	ClientID string        `json:"client_id"`
	Topic    string        `json:"topic"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	QoS      byte          `json:"qos"`
	Timeout  time.Duration `json:"timeout"`
}

// Publisher forwards frames to remote consumers.
type Publisher interface {
	Publish(f Frame) error
	Close()
}

type mqttPublisher struct {
	client   mqtt.Client
	cfg      MQTTConfig
	channels []Channel
	log      log.Logger
}

type framePayload struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
}

// NewMQTTPublisher connects to the broker. The client reconnects on its own
// after the first successful connect.
func NewMQTTPublisher(cfg MQTTConfig, channels []Channel) (Publisher, error) {
	l := log.WithName("mqtt")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) {
		l.Info("MQTT connection established", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		l.Warn("MQTT connection lost, waiting for reconnect", "broker", cfg.Broker, "err", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return &mqttPublisher{client: client, cfg: cfg, channels: channels, log: l}, nil
}

func encodeFrame(f Frame, channels []Channel) ([]byte, error) {
	p := framePayload{Time: f.Time, Values: make(map[string]float64, len(channels))}
	for _, ch := range channels {
		p.Values[ch.Name] = f.Values[ch.Index]
	}
	return json.Marshal(p)
}

func (p *mqttPublisher) Publish(f Frame) error {
	if !p.client.IsConnectionOpen() {
		return errors.New("mqtt not connected")
	}
	payload, err := encodeFrame(f, p.channels)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("publish to %s: timeout", p.cfg.Topic)
	}
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
