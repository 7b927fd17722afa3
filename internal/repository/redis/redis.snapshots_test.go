package redis

import (
	"testing"

	"github.com/hydrozen/leakwatch/internal/errors"
)

func TestKeyAndChannel(t *testing.T) {
	s := NewSnapshotStore(nil, "telemetry:node:")
	if got := s.Key("node1"); got != "telemetry:node:node1" {
		t.Errorf("Key = %q", got)
	}
	if got := s.Channel("node1"); got != "telemetry:node:node1:updates" {
		t.Errorf("Channel = %q", got)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := decodeSnapshot("node2", []byte(`{"humidity":41.5,"pressure":1012,"flow_rate":3.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.NodeID != "node2" {
		t.Errorf("NodeID = %q, want node2", snap.NodeID)
	}
	if snap.Humidity != 41.5 || !snap.HasFlowRate() || *snap.FlowRate != 3.5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if _, err := decodeSnapshot("node2", []byte(`not json`)); errors.TypeOf(err) != errors.ErrorTypeInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}
