// FilePath: internal/models/models.telemetry.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SensorSnapshot is the latest reading of one sensor node. It is always
// overwritten by the next reading; no history is kept.
type SensorSnapshot struct {
	NodeID      string    `json:"node_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	FlowRate    *float64  `json:"flow_rate,omitempty"`
	Airflow     *float64  `json:"airflow,omitempty"`
	WindSpeed   *float64  `json:"wind_speed,omitempty"`
	Altitude    *float64  `json:"altitude,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// HasFlowRate reports whether the node runs the flow-rate deployment variant.
func (s *SensorSnapshot) HasFlowRate() bool {
	return s != nil && s.FlowRate != nil
}

// ParseTelemetry converts a raw node payload into a SensorSnapshot.
//
// Both deployment shapes are accepted:
//
//	{"Temperature", "airflow", "altitude", "pressure", "wind_speed", "predicted_humidity"}
//	{"flow_rate", ...}
//
// Keys are matched case-insensitively. Missing or non-numeric fields are
// treated as 0 (required metrics) or absent (optional metrics). Only a payload
// that is not a JSON object is rejected.
func ParseTelemetry(nodeID string, raw []byte, observedAt time.Time) (*SensorSnapshot, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("telemetry payload for node %s is not an object: %w", nodeID, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("telemetry payload for node %s is empty", nodeID)
	}

	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		normalized[strings.ToLower(k)] = v
	}

	snap := &SensorSnapshot{
		NodeID:     nodeID,
		ObservedAt: observedAt,
	}
	snap.Temperature, _ = numberField(normalized, "temperature")
	snap.Pressure, _ = numberField(normalized, "pressure")
	if h, ok := numberField(normalized, "predicted_humidity"); ok {
		snap.Humidity = h
	} else {
		snap.Humidity, _ = numberField(normalized, "humidity")
	}
	snap.FlowRate = optionalField(normalized, "flow_rate")
	snap.Airflow = optionalField(normalized, "airflow")
	snap.WindSpeed = optionalField(normalized, "wind_speed")
	snap.Altitude = optionalField(normalized, "altitude")

	if ts, ok := normalized["observed_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			snap.ObservedAt = parsed
		}
	}
	return snap, nil
}

func numberField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func optionalField(fields map[string]any, key string) *float64 {
	v, ok := numberField(fields, key)
	if !ok {
		return nil
	}
	return &v
}
