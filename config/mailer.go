package config

import (
	"crypto/tls"
	"errors"
	"os"
	"strconv"
	"time"

	mail "github.com/go-mail/mail/v2"
)

// ErrMailerNotConfigured is returned when SMTP_HOST or SMTP_FROM is missing.
var ErrMailerNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// MailerSettings describes the outbound SMTP relay.
type MailerSettings struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string // e.g. "Admissions <no-reply@your.org>"
	SkipTLSVerify bool
	Timeout       time.Duration
}

// LoadMailerSettings reads SMTP_* variables.
func LoadMailerSettings() MailerSettings {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	return MailerSettings{
		Host:          os.Getenv("SMTP_HOST"),
		Port:          port,
		User:          os.Getenv("SMTP_USER"),
		Password:      os.Getenv("SMTP_PASS"),
		From:          os.Getenv("SMTP_FROM"),
		SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
		Timeout:       envDuration("SMTP_TIMEOUT", 15*time.Second),
	}
}

// Configured reports whether enough settings exist to dial the relay.
func (s MailerSettings) Configured() bool {
	return s.Host != "" && s.From != ""
}

// SendMail delivers one HTML message. The dial and each SMTP command are bounded by s.Timeout.
func (s MailerSettings) SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !s.Configured() {
		return ErrMailerNotConfigured
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Password)
	d.Timeout = s.Timeout
	if s.Port == 465 {
		d.SSL = true
	} else {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.SkipTLSVerify, // dev only
	}

	return d.DialAndSend(m)
}
