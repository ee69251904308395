package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const smtpTimeout = 30 * time.Second

// SMTPTransport sends mail through an SMTP relay. Port 465 uses implicit
// TLS; other ports require STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	user     string
	pass     string
	from     string
	fromName string
}

func NewSMTPTransport(host string, port int, user, pass, from, fromName string) *SMTPTransport {
	if port == 0 {
		port = 587
	}
	return &SMTPTransport{host: host, port: port, user: user, pass: pass, from: from, fromName: fromName}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(t.fromName, t.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", t.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithTimeout(smtpTimeout),
	}
	if t.port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if t.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.user),
			mail.WithPassword(t.pass),
		)
	}

	client, err := mail.NewClient(t.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, smtpTimeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}
