// Package mqtt publishes receiver antenna status changes to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"casic-ng/internal/casic"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// AntennaEvent is the JSON payload published on every status change.
type AntennaEvent struct {
	Antenna  string `json:"antenna"`
	Sentence string `json:"sentence"`
	Time     string `json:"time"`
}

// client is the subset of MQTT.Client used here.
type client interface {
	Connect() MQTT.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Disconnect(quiesce uint)
}

var newClientFn = func(opts *MQTT.ClientOptions) client {
	return MQTT.NewClient(opts)
}

type Publisher struct {
	topic  string
	client client
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt: topic is required")
	}
	opts := MQTT.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)

	c := newClientFn(opts)
	token := c.Connect()
	if ok := token.WaitTimeout(connectTimeout); !ok {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return &Publisher{topic: cfg.Topic, client: c}, nil
}

// PublishAntenna sends a retained AntennaEvent so late subscribers see the
// current state.
func (p *Publisher) PublishAntenna(now time.Time, status casic.AntennaStatus, sentence string) error {
	payload, err := json.Marshal(AntennaEvent{
		Antenna:  status.String(),
		Sentence: sentence,
		Time:     now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if ok := token.WaitTimeout(publishTimeout); !ok {
		return fmt.Errorf("mqtt: publish to %s timed out", p.topic)
	}
	return token.Error()
}

func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}
