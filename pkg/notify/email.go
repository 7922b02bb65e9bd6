package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/noah-isme/sims-api/pkg/config"
)

// SendGridMailer delivers email through the SendGrid v3 API.
type SendGridMailer struct {
	from *sgmail.Email
	send func(*sgmail.SGMailV3) (*rest.Response, error)
}

// NewSendGridMailer builds a mailer from configuration.
func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	client := sendgrid.NewSendClient(cfg.APIKey)
	return &SendGridMailer{
		from: sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		send: client.Send,
	}
}

// SendEmail implements EmailSender.
func (m *SendGridMailer) SendEmail(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("email recipient required")
	}

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	p.Subject = msg.Subject

	m3 := sgmail.NewV3Mail()
	m3.SetFrom(m.from)
	m3.AddPersonalizations(p)
	m3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	res, err := m.send(m3)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
