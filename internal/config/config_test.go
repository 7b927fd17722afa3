package config

import (
	"testing"
	"time"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("LEAKWATCH_DATABASE__DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Anomaly.Variant != "humidity_pressure" || cfg.Anomaly.MinConsecutive != 1 {
		t.Fatalf("unexpected anomaly defaults %+v", cfg.Anomaly)
	}
	if cfg.Notification.Channel != "log" {
		t.Fatalf("expected log channel by default, got %s", cfg.Notification.Channel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEAKWATCH_DATABASE__DRIVER", "memory")
	t.Setenv("LEAKWATCH_ANOMALY__VARIANT", "flow_rate")
	t.Setenv("LEAKWATCH_NOTIFICATION__CHANNEL", "kafka")
	t.Setenv("LEAKWATCH_NOTIFICATION__KAFKA__BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Anomaly.Variant != "flow_rate" {
		t.Fatalf("expected flow_rate, got %s", cfg.Anomaly.Variant)
	}
	if len(cfg.Notification.Kafka.Brokers) != 2 || cfg.Notification.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Notification.Kafka.Brokers)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without host", map[string]string{"LEAKWATCH_DATABASE__DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"LEAKWATCH_DATABASE__DRIVER": "mongo"}},
		{"same nodes", map[string]string{"LEAKWATCH_DATABASE__DRIVER": "memory", "LEAKWATCH_ANOMALY__NODE_B": "node1"}},
		{"email without recipients", map[string]string{"LEAKWATCH_DATABASE__DRIVER": "memory", "LEAKWATCH_NOTIFICATION__CHANNEL": "email"}},
		{"unknown variant", map[string]string{"LEAKWATCH_DATABASE__DRIVER": "memory", "LEAKWATCH_ANOMALY__VARIANT": "sound"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
