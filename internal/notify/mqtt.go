package notify

import (
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 5 * time.Second

// MQTTPublisher publishes breach events on one MQTT topic at QoS 0.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to the broker at url. An empty clientID derives
// one from the pid so two daemons on a host do not evict each other's session.
func NewMQTTPublisher(url, topic, clientID string) (*MQTTPublisher, error) {
	if topic == "" {
		topic = "warden/breach"
	}
	if clientID == "" {
		clientID = fmt.Sprintf("warden-%d", os.Getpid())
	}
	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", url)
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

func (p *MQTTPublisher) Publish(payload []byte) error {
	tok := p.client.Publish(p.topic, 0, false, payload)
	if !tok.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	return tok.Error()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
