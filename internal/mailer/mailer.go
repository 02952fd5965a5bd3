// internal/mailer/mailer.go
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-gomail/gomail"

	"github.com/sportapp/campaign-dispatcher/internal/model"
)

// DefaultSendTimeout bounds one SMTP delivery attempt; after it the attempt
// counts as a transport failure and is subject to the job's retry budget.
const DefaultSendTimeout = 300 * time.Second

// Message is one rendered outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string

	// Headers carries transport-level metadata (campaign id, recipient row
	// id, tracking token) when open tracking is enabled.
	Headers map[string]string
}

// Sender delivers a message using the transport described by a tenant's
// email setting. The setting is passed per call; implementations must not
// hold shared mutable transport state, since concurrent jobs for different
// tenants use different settings.
type Sender interface {
	Send(ctx context.Context, setting *model.EmailSetting, msg *Message) error
}

// SMTPSender sends through the tenant's SMTP server via gomail.
type SMTPSender struct {
	// Timeout per delivery attempt; DefaultSendTimeout when zero.
	Timeout time.Duration
}

func NewSMTPSender() *SMTPSender {
	return &SMTPSender{Timeout: DefaultSendTimeout}
}

func (s *SMTPSender) Send(ctx context.Context, setting *model.EmailSetting, msg *Message) error {
	d := gomail.NewDialer(setting.MailHost, setting.MailPort, setting.MailUsername, setting.MailPassword)

	switch strings.ToLower(setting.MailEncryption) {
	case "ssl", "smtps":
		d.SSL = true
	case "none", "":
		// opportunistic STARTTLS only
	default: // "tls", "starttls"
		d.TLSConfig = &tls.Config{ServerName: setting.MailHost}
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", setting.MailFromAddress, setting.MailFromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	m.SetBody("text/html", msg.HTML)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// gomail has no context support; run the dial-and-send in a goroutine
	// and abandon it on timeout. The connection is leaked until the OS-level
	// TCP timeout fires, which is acceptable for a failed attempt.
	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s:%d failed: %w", setting.MailHost, setting.MailPort, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send via %s:%d timed out after %s", setting.MailHost, setting.MailPort, timeout)
	}
}

var _ Sender = (*SMTPSender)(nil)
