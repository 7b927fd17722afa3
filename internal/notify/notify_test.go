package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/segmentio/kafka-go"
)

func escalation() Escalation {
	flow := 42.0
	return Escalation{
		Alert: &models.Alert{
			ID:               "alt_1",
			CreatedAt:        time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC),
			LocationLabel:    "Basement",
			Severity:         models.SeverityHigh,
			MetricDifference: 24.56,
		},
		Node1: &models.SensorSnapshot{NodeID: "n1", Humidity: 72.34, Pressure: 1012.1, Temperature: 21.5, FlowRate: &flow},
		Node2: &models.SensorSnapshot{NodeID: "n2", Humidity: 47.78, Pressure: 1011.9, Temperature: 20.9},
	}
}

func TestSubject(t *testing.T) {
	want := "Urgent: Water Leakage Alert - HIGH Severity"
	if got := escalation().Subject(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderHTML(t *testing.T) {
	body, err := RenderHTML(escalation())
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{
		"<strong>Location:</strong> Basement",
		"<strong>Severity:</strong> HIGH",
		"24.6 units",
		"2026-05-02 09:30:00 UTC",
		"Humidity: 72.3%",
		"Humidity: 47.8%",
		"Flow rate: 42.0",
		"Location 2:",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderHTMLMissingNode(t *testing.T) {
	e := escalation()
	e.Node2 = nil
	body, err := RenderHTML(e)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(body, "No reading available.") {
		t.Fatal("expected placeholder for missing node")
	}
}

func TestEmailNotifier(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{
		Host: "smtp.example.org", Port: 587,
		Username: "alerts", Password: "secret",
		From: "alerts@example.org", To: []string{"maintenance@example.org"},
	})
	var gotAddr string
	var gotMsg []byte
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	if err := n.Notify(context.Background(), escalation()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAddr != "smtp.example.org:587" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	if !strings.Contains(string(gotMsg), "Subject: Urgent: Water Leakage Alert - HIGH Severity\r\n") {
		t.Fatalf("subject header missing:\n%s", gotMsg)
	}

	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return stderrors.New("550 rejected") }
	if err := n.Notify(context.Background(), escalation()); err == nil {
		t.Fatal("expected send failure to surface")
	}
}

func TestEmailNotifierRequiresRecipient(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "localhost", Port: 25})
	if err := n.Notify(context.Background(), escalation()); err == nil {
		t.Fatal("expected error without recipients")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{topic: "leak-alerts", writer: w}

	if err := n.Notify(context.Background(), escalation()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "alt_1" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	var decoded Escalation
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if decoded.Alert.LocationLabel != "Basement" || decoded.Node1.NodeID != "n1" {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	w.err = stderrors.New("broker unavailable")
	if err := n.Notify(context.Background(), escalation()); err == nil {
		t.Fatal("expected publish failure to surface")
	}
}
