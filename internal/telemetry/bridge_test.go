package telemetry

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/hydrozen/leakwatch/internal/repository/memory"
)

func TestNodeFromTopic(t *testing.T) {
	cases := map[string]string{
		"hydrozen/nodes/node1":  "node1",
		"hydrozen/nodes/node2/": "node2",
		"node3":                 "node3",
		"":                      "",
	}
	for topic, want := range cases {
		if got := NodeFromTopic(topic); got != want {
			t.Errorf("NodeFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}

func TestHandleMessageStoresSnapshot(t *testing.T) {
	store := memory.NewSnapshotStore()
	b := NewBridge(config.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "test", TopicPrefix: "hydrozen/nodes/"}, store)

	if got := b.Topic(); got != "hydrozen/nodes/+" {
		t.Errorf("Topic = %q", got)
	}

	b.HandleMessage("hydrozen/nodes/node1", []byte(`{"Temperature":"21.5","pressure":1010,"predicted_humidity":55}`))

	snap, err := store.Latest(context.Background(), "node1")
	if err != nil || snap == nil {
		t.Fatalf("expected stored snapshot, got %v, %v", snap, err)
	}
	if snap.Temperature != 21.5 || snap.Humidity != 55 || snap.Pressure != 1010 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestHandleMessageReportsErrors(t *testing.T) {
	store := memory.NewSnapshotStore()
	b := NewBridge(config.MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "hydrozen/nodes"}, store)

	var failed []string
	b.OnError = func(nodeID string, err error) { failed = append(failed, nodeID) }

	b.HandleMessage("hydrozen/nodes/node1", []byte(`[1,2,3]`))
	store.Fail("Put", stderrors.New("down"))
	b.HandleMessage("hydrozen/nodes/node2", []byte(`{"humidity":1}`))

	if len(failed) != 2 || failed[0] != "node1" || failed[1] != "node2" {
		t.Errorf("failed = %v", failed)
	}
}
