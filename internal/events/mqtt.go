package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/automixer/automix-go/internal/conf"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
)

// MQTTPublisher mirrors status events onto an MQTT broker under
// <topic>/<entity>/<id>. Connection loss is handled by paho's
// auto-reconnect; publishes while disconnected fail and are dropped by
// the bus.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	mu     sync.Mutex
}

// NewMQTTPublisher connects to the configured broker.
func NewMQTTPublisher(settings *conf.Settings) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.MQTT.Broker)
	opts.SetClientID(settings.Main.Name)
	opts.SetUsername(settings.MQTT.User)
	opts.SetPassword(settings.MQTT.Pass)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout to %s", settings.MQTT.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection error: %w", err)
	}

	return &MQTTPublisher{client: client, topic: settings.MQTT.Topic}, nil
}

// Publish sends the event as JSON, QoS 0, not retained.
func (p *MQTTPublisher) Publish(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("%s/%s/%s", p.topic, ev.Entity, ev.ID)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

// Disconnect closes the broker connection.
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
