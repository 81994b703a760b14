// Package events publishes interaction visibility changes so second-screen
// displays and analytics can follow a playback session.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Event struct {
	SessionID     string    `json:"sessionId"`
	VideoID       string    `json:"videoId"`
	Kind          string    `json:"kind"`
	InteractionID int       `json:"interactionId"`
	Second        int       `json:"second"`
	At            time.Time `json:"at"`
}

type Publisher interface {
	Publish(e Event)
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close()        {}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("events: mqtt connected", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("events: mqtt connection lost", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "ivplayer"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: cfg.QoS}, nil
}

// Topic is <prefix>/sessions/<session id>/interactions.
func (p *MQTTPublisher) Topic(sessionID string) string {
	return Topic(p.prefix, sessionID)
}

func Topic(prefix, sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/interactions", prefix, sessionID)
}

// Publish does not wait for delivery; it runs on the playback loop.
func (p *MQTTPublisher) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Error("events: marshal event", "error", err)
		return
	}
	token := p.client.Publish(p.Topic(e.SessionID), p.qos, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			slog.Warn("events: publish failed", "session_id", e.SessionID, "error", token.Error())
		}
	}()
}

func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
