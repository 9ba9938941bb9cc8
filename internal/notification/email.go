package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/smukkama/weather-monitor/internal/protocol"
	"github.com/smukkama/weather-monitor/pkg/config"
)

var temperatureTemplate = template.Must(template.New("temperature").Parse(`
Weather Alert: {{.Kind}}
========================

City: {{.City}}
Current Value: {{printf "%.1f" .Value}}{{.Unit}}
Threshold: {{.Threshold}}{{.Unit}}
Raised At: {{.CreatedAt.Format "2006-01-02 15:04:05 MST"}}
Alert ID: {{.ID}}

{{.Message}}

---
Weather Monitor Notification System
`))

var forecastTemplate = template.Must(template.New("forecast").Funcs(template.FuncMap{"join": strings.Join}).Parse(`
Weather Forecast Alert: {{.Kind}}
=================================

City: {{.City}}
Dates: {{join .Dates ", "}}
Threshold: {{.Threshold}}
Raised At: {{.CreatedAt.Format "2006-01-02 15:04:05 MST"}}
Alert ID: {{.ID}}

{{.Message}}

---
Weather Monitor Notification System
`))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *slog.Logger
	send   sendFunc
	now    func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{config: cfg, logger: logger, send: smtp.SendMail, now: time.Now}
}

// Configured reports whether SMTP credentials are present.
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendAlertNotification sends an email for an alert notification
func (e *EmailNotifier) SendAlertNotification(alert *protocol.AlertNotification) error {
	subject, body, err := Render(alert)
	if err != nil {
		return err
	}
	return e.sendEmail(subject, body)
}

// Render returns the subject and plain-text body for alert.
func Render(alert *protocol.AlertNotification) (string, string, error) {
	var tmpl *template.Template
	var subject string

	switch alert.Type {
	case protocol.AlertTypeTemperature:
		tmpl = temperatureTemplate
		subject = fmt.Sprintf("Weather Alert: %s in %s", alert.Kind, alert.City)
	case protocol.AlertTypeForecast:
		tmpl = forecastTemplate
		subject = fmt.Sprintf("Forecast Alert: %s in %s", alert.Kind, alert.City)
	default:
		return "", "", fmt.Errorf("unknown notification type: %s", alert.Type)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}
	return subject, buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if !e.Configured() {
		e.logger.Info("SMTP not configured, skipping email", "subject", subject, "body", body)
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.config.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	if err := e.send(e.addr(), auth, e.config.From, []string{e.config.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("email sent", "subject", subject)
	return nil
}

func (e *EmailNotifier) addr() string {
	return net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	client, err := smtp.Dial(e.addr())
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	return client.Close()
}
