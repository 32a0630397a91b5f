// Package email delivers transactional mail. The engine only sees the
// Sender interface; the SMTP implementation can be swapped for a provider
// SDK without touching fulfillment.
package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Sender sends one HTML email.
type Sender interface {
	Send(to, subject, html string) error
}

// SMTPSender talks to a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{Addr: addr, From: from, Auth: auth}
}

func (s *SMTPSender) Send(to, subject, html string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		html,
	}, "\r\n")
	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogSender logs instead of sending. Development only.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(to, subject, _ string) error {
	s.Log.Info("email stub: not sending",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
