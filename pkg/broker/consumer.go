package broker

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one inbound message from a topic.
type Handler func(topic string, payload []byte) error

// Consumer subscribes to a single topic and runs a handler per message.
type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
	log     *zap.Logger
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler, log *zap.Logger) *Consumer {
	return &Consumer{client: client, topic: topic, qos: qos, handler: handler, log: log}
}

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			c.log.Warn("no handler set", zap.String("topic", c.topic))
			return
		}
		if err := c.handler(msg.Topic(), msg.Payload()); err != nil {
			c.log.Error("message handler failed", zap.String("topic", c.topic), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		c.log.Error("subscribe failed", zap.String("topic", c.topic), zap.Error(token.Error()))
		return
	}
	c.log.Info("subscribed", zap.String("topic", c.topic))

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
