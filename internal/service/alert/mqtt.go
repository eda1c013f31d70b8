package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sentinelvision/internal/logger"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// Payload is the JSON document published for each alert.
type Payload struct {
	RunID     string    `json:"run_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSink publishes alerts to a broker topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	runID  string
	logger *logger.Logger
	now    func() time.Time
}

// NewMQTTSink connects to broker. A bare host:port is treated as tcp://.
func NewMQTTSink(broker, clientID, topic, runID string, logger *logger.Logger) (*MQTTSink, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	logger.Info("Connected to MQTT broker %s", broker)
	return newMQTTSink(client, topic, runID, logger), nil
}

func newMQTTSink(client mqtt.Client, topic, runID string, logger *logger.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, runID: runID, logger: logger, now: time.Now}
}

func (s *MQTTSink) Notify(message string) {
	if err := s.publish(message); err != nil {
		s.logger.Error("%v", &SinkDeliveryError{Sink: "mqtt", Err: err})
	}
}

func (s *MQTTSink) publish(message string) error {
	payload, err := json.Marshal(Payload{RunID: s.runID, Message: message, Timestamp: s.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
