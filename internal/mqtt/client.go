// Package mqtt wraps the broker connection: subscription routing for inbound
// device messages and acknowledged publishing for outbound commands.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout  = 10 * time.Second
	keepAlive       = 60 * time.Second
	reconnectPeriod = time.Second

	// Grace period for in-flight messages on shutdown, in milliseconds.
	disconnectQuiesceMs = 250
)

// MessageHandler processes one inbound message. Handler errors are logged,
// never redelivered; the device republishes on its own cadence.
type MessageHandler func(ctx context.Context, payload []byte) error

// Config carries the broker connection settings.
type Config struct {
	BrokerURL string
	Username  string
	Password  string
	ClientID  string
}

type route struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is a thin wrapper over the paho client. Routes registered before
// Connect are (re)subscribed on every successful connection, which covers
// both the initial connect and broker-side session loss.
type Client struct {
	client paho.Client
	routes []route
}

// NewClient builds the client. Nothing touches the network until Connect.
func NewClient(cfg Config) *Client {
	c := &Client{}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetConnectRetryInterval(reconnectPeriod).
		SetOnConnectHandler(func(pc paho.Client) {
			slog.Info("[MQTT] Connected to broker", "broker", cfg.BrokerURL)
			c.subscribeAll(pc)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Error("[MQTT] Connection lost", "error", err)
		}).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			slog.Info("[MQTT] Reconnecting to broker")
		})

	c.client = paho.NewClient(opts)
	return c
}

// Handle registers a subscription route. Must be called before Connect.
func (c *Client) Handle(topic string, qos byte, handler MessageHandler) {
	c.routes = append(c.routes, route{topic: topic, qos: qos, handler: handler})
}

// Connect dials the broker and waits for the initial connection.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Publish sends one message and waits for the QoS handshake to complete.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect flushes in-flight messages and closes the connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesceMs)
	slog.Info("[MQTT] Disconnected from broker")
}

func (c *Client) subscribeAll(pc paho.Client) {
	for _, r := range c.routes {
		r := r
		token := pc.Subscribe(r.topic, r.qos, func(_ paho.Client, msg paho.Message) {
			if err := r.handler(context.Background(), msg.Payload()); err != nil {
				slog.Error("[MQTT] Message handler failed", "topic", msg.Topic(), "error", err)
			}
		})
		if token.Wait() && token.Error() != nil {
			slog.Error("[MQTT] Subscribe failed", "topic", r.topic, "error", token.Error())
			continue
		}
		slog.Info("[MQTT] Subscribed", "topic", r.topic, "qos", r.qos)
	}
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
