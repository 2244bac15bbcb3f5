// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/models"
)

const (
	emailTimeout  = 30 * time.Second
	emailFromName = "CheckClock"
)

var emailBody = template.Must(template.New("alert").Parse(`<div style="font-family:Segoe UI,Arial,sans-serif;color:#444;">
<h2 style="color:#b00020;margin:0 0 8px 0;">{{.Alert.Title}}</h2>
<p>An error was detected on the attendance clock.</p>
<hr style="border:none;border-top:1px solid #eee;margin:12px 0;" />
<h3 style="margin:8px 0;">Device context</h3>
<table cellpadding="4" style="border-collapse:collapse;">
<tr><th align="left">Office</th><td>{{.Office}}</td></tr>
<tr><th align="left">Device</th><td>{{.Device}}</td></tr>
<tr><th align="left">Severity</th><td>{{.Alert.Severity}}</td></tr>
<tr><th align="left">Time</th><td>{{.When}}</td></tr>
<tr><th align="left">Ticket</th><td>{{.Ticket}}</td></tr>
</table>
<h3 style="margin:8px 0;">Error detail</h3>
<pre style="background:#f7f7f7;border:1px solid #eee;padding:10px;white-space:pre-wrap;">{{.Alert.Message}}{{if .Alert.Exception}}
{{.Alert.Exception}}{{end}}</pre>
{{- if .Alert.Context}}
<h3 style="margin:8px 0;">Additional data</h3>
<pre style="background:#f7f7f7;border:1px solid #eee;padding:10px;white-space:pre-wrap;">{{.Alert.Context}}</pre>
{{- end}}
<p style="font-size:12px;color:#777;">This message was generated automatically by CheckClock.</p>
</div>
`))

// MissingEmailFields lists the SMTP settings an alert email cannot do without.
func MissingEmailFields(cfg config.EmailConfig) []string {
	var missing []string
	if strings.TrimSpace(cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if cfg.Port <= 0 {
		missing = append(missing, "port")
	}
	if cfg.User != "" && cfg.Password == "" {
		missing = append(missing, "password")
	}
	if sender(cfg) == "" {
		missing = append(missing, "from")
	}
	if len(recipients(cfg.Recipients)) == 0 {
		missing = append(missing, "recipients")
	}
	return missing
}

// EmailNotifier sends alerts as HTML mail.
type EmailNotifier struct {
	cfg    config.EmailConfig
	office config.OfficeConfig

	timeout time.Duration
	ticket  func() string
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(cfg config.EmailConfig, office config.OfficeConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:     cfg,
		office:  office,
		timeout: emailTimeout,
		ticket:  uuid.NewString,
	}
}

func (n *EmailNotifier) Name() string { return "email" }

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, alert models.AdminErrorAlert) error {
	if missing := MissingEmailFields(n.cfg); len(missing) > 0 {
		return fmt.Errorf("smtp configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	to := recipients(n.cfg.Recipients)
	msg, err := n.message(alert, to, n.ticket())
	if err != nil {
		return err
	}
	return n.send(ctx, to, msg)
}

// Subject formats the alert mail subject line.
func (n *EmailNotifier) Subject(alert models.AdminErrorAlert, ticket string) string {
	return fmt.Sprintf("[CheckClock] %s | Oficina %s | Ticket: %s", alert.Title, n.officeKey(alert), ticket)
}

func (n *EmailNotifier) officeKey(alert models.AdminErrorAlert) string {
	if alert.OfficeID != "" {
		return alert.OfficeID
	}
	return n.office.OfficeKey()
}

func (n *EmailNotifier) message(alert models.AdminErrorAlert, to []string, ticket string) ([]byte, error) {
	device := alert.DeviceID
	if device == "" {
		device = n.office.DeviceUUID
	}
	when := alert.Timestamp
	if when.IsZero() {
		when = time.Now()
	}

	var body bytes.Buffer
	err := emailBody.Execute(&body, struct {
		Alert  models.AdminErrorAlert
		Office string
		Device string
		When   string
		Ticket string
	}{alert, n.officeKey(alert), device, when.Format("2006/01/02 15:04:05"), ticket})
	if err != nil {
		return nil, fmt.Errorf("render alert email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", emailFromName, sender(n.cfg))
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject(alert, ticket)))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func (n *EmailNotifier) send(ctx context.Context, to []string, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	dialer := &net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if n.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if n.cfg.User != "" {
		auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(sender(n.cfg)); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	accepted := 0
	var rcptErr error
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			rcptErr = fmt.Errorf("recipient %s rejected: %w", rcpt, err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return rcptErr
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	_ = client.Quit()
	return nil
}

// sender falls back to the SMTP user when no From address is set.
func sender(cfg config.EmailConfig) string {
	if cfg.From != "" {
		return cfg.From
	}
	return cfg.User
}

// recipients splits entries on ',' and ';' and drops blanks.
func recipients(list []string) []string {
	var out []string
	for _, entry := range list {
		for _, addr := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ';' }) {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}
