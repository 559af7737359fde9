// Package notify provides NotificationSender implementations for the
// engine's outbound dispatcher: an SMTP email sender and a zap-logging
// sender used for SMS in deployments without a gateway and in
// development.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/veloxparts/authcore"
)

// SMTPConfig holds the mail relay settings. Implicit TLS is dialed on
// the configured port.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers email notifications over SMTP with implicit TLS.
// Non-email channels are rejected; pair it with another sender through
// Mux for SMS.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, n authcore.Notification) error {
	if n.Channel != authcore.ChannelEmail {
		return fmt.Errorf("smtp sender: unsupported channel %q", n.Channel)
	}

	subject, body := renderEmail(n)
	msg := buildMessage(s.cfg.From, n.Recipient, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = client.Quit() }()

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(n.Recipient); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}

func renderEmail(n authcore.Notification) (string, string) {
	name := n.Vars["firstName"]
	if name == "" {
		name = "there"
	}

	switch n.Template {
	case authcore.TemplateUserRegistered:
		return "Welcome to VeloxParts",
			fmt.Sprintf("Hi %s,\n\nYour VeloxParts account is ready.", name)
	case authcore.TemplateVerifyEmail:
		return "Verify your email",
			fmt.Sprintf("Hi %s,\n\nPlease verify your email address to finish setting up your account.", name)
	case authcore.TemplateLoginOTP:
		return "Your login code",
			fmt.Sprintf("Your one-time login code is %s. It expires in 10 minutes.", n.Vars["otp"])
	case authcore.TemplateResetOTP:
		return "Your password reset code",
			fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.", n.Vars["otp"])
	default:
		return "VeloxParts notification", "You have a new notification."
	}
}
