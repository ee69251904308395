package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport delivers messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Config selects and configures a transport.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	FromName     string
	SendGridKey  string
	SendGridFrom string
}

// New picks SMTP when a host is configured, then SendGrid when an API key is
// set, and otherwise falls back to logging messages.
func New(cfg Config, log zerolog.Logger) Transport {
	switch {
	case cfg.SMTPHost != "":
		from := cfg.SMTPFrom
		if from == "" {
			from = cfg.SMTPUser
		}
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, from, cfg.FromName)
	case cfg.SendGridKey != "":
		return NewSendGridTransport(cfg.SendGridKey, cfg.SendGridFrom, cfg.FromName)
	default:
		return NewLogTransport(log)
	}
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	log zerolog.Logger
}

func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("email not sent: no mail transport configured")
	return nil
}
