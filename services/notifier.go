package services

import (
	"context"
	"log"
	"sync"

	"admissions-api/config"
)

// Notifier delivers one message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier sends through the configured SMTP relay.
type SMTPNotifier struct {
	Mailer config.MailerSettings
}

func NewSMTPNotifier(settings config.MailerSettings) *SMTPNotifier {
	return &SMTPNotifier{Mailer: settings}
}

// Send returns when the relay answers or ctx ends, whichever comes first.
// The dialer timeout bounds the abandoned goroutine.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	done := make(chan error, 1)
	go func() {
		done <- n.Mailer.SendMail([]string{to}, subject, body)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogNotifier only logs; it is used when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail (smtp disabled) to=%s subject=%q", to, subject)
	return nil
}

// SentMessage is one message captured by RecordingNotifier.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// RecordingNotifier keeps every message in memory. Fail, when set, decides per recipient
// whether the send errors.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentMessage
	Fail func(to string) error
}

func (n *RecordingNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Fail != nil {
		if err := n.Fail(to); err != nil {
			return err
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *RecordingNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.sent...)
}
