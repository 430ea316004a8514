// Package mail renders and sends transactional marketplace email. Templates
// are selected by the name carried on the email event; an unknown template
// name is an error so the consumer can drop the message visibly.
package mail

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/gigmarket/backend/internal/event"
)

// Config holds SMTP settings for the outgoing mail account.
type Config struct {
	Host        string
	Port        string
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// Mailer renders a template for an email event and hands the result to the
// configured sender.
type Mailer struct {
	config Config
	sender emailSender
}

// emailSender abstracts the sending mechanism for testing.
type emailSender interface {
	send(from, to, subject, htmlBody string) error
}

// New creates a Mailer backed by SMTP.
func New(config Config) (*Mailer, error) {
	if config.Host == "" || config.Port == "" {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	return &Mailer{config: config, sender: &smtpSender{config: config}}, nil
}

// Send renders the event's template and mails it to the receiver.
func (m *Mailer) Send(ev event.Email) error {
	if ev.Receiver == "" {
		return fmt.Errorf("email without receiver")
	}
	tmpl, ok := templates[ev.Template]
	if !ok {
		return fmt.Errorf("unknown email template %q", ev.Template)
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, ev); err != nil {
		return fmt.Errorf("render template %s: %w", ev.Template, err)
	}

	from := m.config.FromAddress
	if m.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromAddress)
	}
	if err := m.sender.send(from, ev.Receiver, tmpl.subject, buf.String()); err != nil {
		return fmt.Errorf("send to %s: %w", ev.Receiver, err)
	}
	return nil
}

// smtpSender sends email via SMTP.
type smtpSender struct {
	config Config
}

func (s *smtpSender) send(from, to, subject, htmlBody string) error {
	addr := s.config.Host + ":" + s.config.Port

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" + htmlBody

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Pass, s.config.Host)
	}

	return smtp.SendMail(addr, auth, s.config.FromAddress, []string{to}, []byte(msg))
}
