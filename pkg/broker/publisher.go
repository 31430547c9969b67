package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher sends payloads to MQTT topics.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

type mqttPublisher struct {
	client mqtt.Client
	qos    byte
	log    *zap.Logger
}

func NewPublisher(client mqtt.Client, qos byte, log *zap.Logger) Publisher {
	return &mqttPublisher{client: client, qos: qos, log: log}
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *mqttPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.log.Info("mqtt publisher disconnected")
	}
}
