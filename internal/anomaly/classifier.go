// FilePath: internal/anomaly/classifier.go
package anomaly

import (
	"math"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Divergence thresholds between two nodes
const (
	HumidityTrigger = 10.0
	PressureTrigger = 5.0
	HumidityMedium  = 15.0
	HumidityHigh    = 20.0

	FlowTrigger = 10.0
	FlowMedium  = 20.0
	FlowHigh    = 30.0
)

// Classifier turns a pair of node snapshots into at most one Alert.
// It holds no state between calls.
type Classifier struct {
	Variant models.ClassifierVariant
	// Labels maps node ids to human readable locations. Unknown nodes are
	// labelled with their id.
	Labels map[string]string
	Clock  func() time.Time
	NewID  func() string
}

// NewClassifier creates a classifier for the given variant
func NewClassifier(variant models.ClassifierVariant, labels map[string]string) *Classifier {
	if variant == "" {
		variant = models.VariantHumidityPressure
	}
	return &Classifier{
		Variant: variant,
		Labels:  labels,
		Clock:   time.Now,
		NewID:   func() string { return nuts.NID("alt", 12) },
	}
}

// Classify compares a and b using the configured variant. A missing snapshot
// yields nil.
func (c *Classifier) Classify(a, b *models.SensorSnapshot) *models.Alert {
	var alert *models.Alert
	switch c.Variant {
	case models.VariantFlowRate:
		alert = ClassifyFlow(a, b)
	default:
		alert = ClassifyHumidity(a, b)
	}
	if alert == nil {
		return nil
	}
	alert.ID = c.NewID()
	alert.CreatedAt = c.Clock()
	alert.LocationLabel = c.label(alert.LocationLabel)
	return alert
}

func (c *Classifier) label(nodeID string) string {
	if l, ok := c.Labels[nodeID]; ok && l != "" {
		return l
	}
	return nodeID
}

// ClassifyHumidity fires when the humidity difference exceeds 10 or the
// pressure difference exceeds 5. Severity follows the humidity difference, so
// a pressure-only trigger is low. Node A is named as the source when the
// humidity difference dominates, node B otherwise.
//
// The returned alert has LocationLabel set to the source node id and no ID or
// timestamp.
func ClassifyHumidity(a, b *models.SensorSnapshot) *models.Alert {
	if a == nil || b == nil {
		return nil
	}
	humidityDiff := math.Abs(a.Humidity - b.Humidity)
	pressureDiff := math.Abs(a.Pressure - b.Pressure)

	if !(humidityDiff > HumidityTrigger || pressureDiff > PressureTrigger) {
		return nil
	}

	severity := models.SeverityLow
	switch {
	case humidityDiff > HumidityHigh:
		severity = models.SeverityHigh
	case humidityDiff > HumidityMedium:
		severity = models.SeverityMedium
	}

	source := b.NodeID
	if humidityDiff > pressureDiff {
		source = a.NodeID
	}

	return &models.Alert{
		LocationLabel:    source,
		Severity:         severity,
		MetricDifference: math.Max(humidityDiff, pressureDiff),
		Variant:          models.VariantHumidityPressure,
		SourceNodes:      models.NodePair{NodeA: a.NodeID, NodeB: b.NodeID},
		Status:           models.AlertTransient,
	}
}

// ClassifyFlow fires when the flow-rate difference exceeds 10. Both nodes
// must report a flow rate. The node with the larger flow is named as source.
func ClassifyFlow(a, b *models.SensorSnapshot) *models.Alert {
	if !a.HasFlowRate() || !b.HasFlowRate() {
		return nil
	}
	flowDiff := math.Abs(*a.FlowRate - *b.FlowRate)
	if flowDiff <= FlowTrigger {
		return nil
	}

	severity := models.SeverityLow
	switch {
	case flowDiff > FlowHigh:
		severity = models.SeverityHigh
	case flowDiff > FlowMedium:
		severity = models.SeverityMedium
	}

	source := b.NodeID
	if *a.FlowRate > *b.FlowRate {
		source = a.NodeID
	}

	return &models.Alert{
		LocationLabel:    source,
		Severity:         severity,
		MetricDifference: flowDiff,
		Variant:          models.VariantFlowRate,
		SourceNodes:      models.NodePair{NodeA: a.NodeID, NodeB: b.NodeID},
		Status:           models.AlertTransient,
	}
}
