// FilePath: internal/models/models.alert.go
package models

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ClassifierVariant selects which metrics the anomaly classifier compares.
type ClassifierVariant string

const (
	VariantHumidityPressure ClassifierVariant = "humidity_pressure"
	VariantFlowRate         ClassifierVariant = "flow_rate"
)

type AlertStatus string

const (
	// AlertTransient is an alert that only lives in the current evaluation cycle.
	AlertTransient AlertStatus = "transient"
	// AlertPending is an escalated alert waiting for maintenance.
	AlertPending AlertStatus = "pending"
)

type NodePair struct {
	NodeA string `json:"node_a" db:"node_a"`
	NodeB string `json:"node_b" db:"node_b"`
}

// Alert is produced by the classifier when two nodes diverge. It is never
// mutated; the next evaluation cycle supersedes it.
type Alert struct {
	ID               string            `json:"id" db:"id"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	LocationLabel    string            `json:"location_label" db:"location_label"`
	Severity         Severity          `json:"severity" db:"severity"`
	MetricDifference float64           `json:"metric_difference" db:"metric_difference"`
	Variant          ClassifierVariant `json:"variant" db:"variant"`
	SourceNodes      NodePair          `json:"source_nodes" db:"-"`
	Status           AlertStatus       `json:"status" db:"status"`
}

// AlertState is the monitor's view of the current node pair.
type AlertState struct {
	Alert     *Alert          `json:"alert"`
	NodeA     *SensorSnapshot `json:"node_a"`
	NodeB     *SensorSnapshot `json:"node_b"`
	Breaches  int             `json:"consecutive_breaches"`
	UpdatedAt time.Time       `json:"updated_at"`
}
