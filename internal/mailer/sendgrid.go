package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridTransport sends mail through the SendGrid v3 API.
type SendGridTransport struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridTransport(apiKey, from, fromName string) *SendGridTransport {
	return &SendGridTransport{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (t *SendGridTransport) Name() string { return "sendgrid" }

func (t *SendGridTransport) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(t.fromName, t.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := t.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}
