// FilePath: internal/notify/notify.go

// Package notify delivers escalated leak alerts to the maintenance team.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hydrozen/leakwatch/internal/models"
)

// Escalation is the payload handed to a notification channel.
type Escalation struct {
	Alert *models.Alert          `json:"alert"`
	Node1 *models.SensorSnapshot `json:"node1"`
	Node2 *models.SensorSnapshot `json:"node2"`
}

// Subject returns the mail subject / message title for the escalation.
func (e Escalation) Subject() string {
	return fmt.Sprintf("Urgent: Water Leakage Alert - %s Severity", strings.ToUpper(string(e.Alert.Severity)))
}

// Notifier is a single delivery attempt. Implementations never retry.
type Notifier interface {
	Notify(ctx context.Context, e Escalation) error
}

// Channels supported by New.
const (
	ChannelEmail = "email"
	ChannelKafka = "kafka"
	ChannelLog   = "log"
)
