// FilePath: internal/notify/email.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const alertTemplate = `<h2>Water Leakage Alert</h2>
<p><strong>Location:</strong> {{.Alert.LocationLabel}}</p>
<p><strong>Severity:</strong> {{upper .Alert.Severity}}</p>
<p><strong>Difference:</strong> {{printf "%.1f" .Alert.MetricDifference}} units</p>
<p><strong>Time:</strong> {{.Alert.CreatedAt.Format "2006-01-02 15:04:05 MST"}}</p>

<h3>Node Readings</h3>
{{template "node" node "Location 1" .Node1}}
{{template "node" node "Location 2" .Node2}}
<p>Please investigate and address this issue immediately.</p>
{{define "node"}}<h4>{{.Title}}:</h4>
{{if .Snapshot}}<ul>
  <li>Humidity: {{printf "%.1f" .Snapshot.Humidity}}%</li>
  <li>Pressure: {{printf "%.1f" .Snapshot.Pressure}} hPa</li>
  <li>Temperature: {{printf "%.1f" .Snapshot.Temperature}}°C</li>
  {{if .Snapshot.FlowRate}}<li>Flow rate: {{printf "%.1f" (deref .Snapshot.FlowRate)}}</li>{{end}}
</ul>{{else}}<p>No reading available.</p>{{end}}
{{end}}`

type nodeView struct {
	Title    string
	Snapshot *models.SensorSnapshot
}

var alertTmpl = template.Must(template.New("alert").Funcs(template.FuncMap{
	"upper": func(s models.Severity) string { return strings.ToUpper(string(s)) },
	"node":  func(title string, s *models.SensorSnapshot) nodeView { return nodeView{Title: title, Snapshot: s} },
	"deref": func(f *float64) float64 { return *f },
}).Parse(alertTemplate))

// RenderHTML renders the maintenance mail body for e.
func RenderHTML(e Escalation) (string, error) {
	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, e); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EmailConfig holds the SMTP settings of the maintenance mailbox.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier sends escalations as HTML mail over SMTP.
type EmailNotifier struct {
	cfg      EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:      cfg,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// Notify renders and sends one mail. Context cancellation is only honoured
// before the SMTP dialog starts.
func (n *EmailNotifier) Notify(ctx context.Context, e Escalation) error {
	if e.Alert == nil {
		return fmt.Errorf("escalation without alert")
	}
	if len(n.cfg.To) == 0 {
		return fmt.Errorf("no maintenance recipient configured")
	}
	body, err := RenderHTML(e)
	if err != nil {
		return fmt.Errorf("failed to render alert mail: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", e.Subject())
	fmt.Fprintf(&msg, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.sendMail(addr, auth, n.cfg.From, n.cfg.To, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send alert mail via %s: %w", addr, err)
	}
	nuts.L.Infof("[Notify] Sent leak alert %s to %s", e.Alert.ID, strings.Join(n.cfg.To, ", "))
	return nil
}
