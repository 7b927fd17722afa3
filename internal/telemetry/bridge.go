// FilePath: internal/telemetry/bridge.go
package telemetry

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 5 * time.Second
	quiesceMillis  = 250
)

// Bridge forwards node telemetry from MQTT topics <prefix>/<nodeID> into the
// snapshot store.
type Bridge struct {
	cfg     config.MQTTConfig
	writer  repository.SnapshotWriter
	client  mqtt.Client
	OnError func(nodeID string, err error)
}

func NewBridge(cfg config.MQTTConfig, writer repository.SnapshotWriter) *Bridge {
	b := &Bridge{cfg: cfg, writer: writer}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			nuts.L.Warnf("[Telemetry] MQTT connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	b.client = mqtt.NewClient(opts)
	return b
}

// Topic is the subscription filter covering every node.
func (b *Bridge) Topic() string {
	return strings.TrimRight(b.cfg.TopicPrefix, "/") + "/+"
}

func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.NewUnavailableError("timed out connecting to MQTT broker", nil)
	}
	if err := token.Error(); err != nil {
		return errors.NewUnavailableError("failed to connect to MQTT broker", err)
	}
	nuts.L.Infof("[Telemetry] Connected to %s", b.cfg.Broker)
	return nil
}

func (b *Bridge) Stop() {
	if b.client.IsConnected() {
		b.client.Disconnect(quiesceMillis)
		nuts.L.Infof("[Telemetry] Disconnected from %s", b.cfg.Broker)
	}
}

// onConnect (re)subscribes after every connect so auto-reconnect keeps the
// feed alive.
func (b *Bridge) onConnect(c mqtt.Client) {
	token := c.Subscribe(b.Topic(), b.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		b.HandleMessage(msg.Topic(), msg.Payload())
	})
	if token.WaitTimeout(connectTimeout) && token.Error() == nil {
		nuts.L.Infof("[Telemetry] Subscribed to %s", b.Topic())
		return
	}
	nuts.L.Errorf("[Telemetry] Failed to subscribe to %s: %v", b.Topic(), token.Error())
}

// HandleMessage stores one node payload. Bad payloads are logged and dropped;
// the next reading supersedes them anyway.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	nodeID := NodeFromTopic(topic)
	if nodeID == "" {
		nuts.L.Warnf("[Telemetry] Ignoring message on topic %q", topic)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := b.writer.Put(ctx, nodeID, payload); err != nil {
		nuts.L.Warnf("[Telemetry] Dropping payload from node %s: %v", nodeID, err)
		if b.OnError != nil {
			b.OnError(nodeID, err)
		}
	}
}

// NodeFromTopic returns the last topic segment
func NodeFromTopic(topic string) string {
	topic = strings.TrimRight(topic, "/")
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
