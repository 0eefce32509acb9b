package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendgridEndpoint = "/v3/mail/send"

// Sendgrid delivers mail through the SendGrid v3 API, an alternative to a
// raw SMTP relay when the account has no app-password support
type Sendgrid struct {
	key  string
	from string
	host string
}

// NewSendgrid creates a SendGrid sender with the given API key
func NewSendgrid(key, from string) *Sendgrid {
	return &Sendgrid{key: key, from: from, host: "https://api.sendgrid.com"}
}

// Send submits one message to the SendGrid API
func (s *Sendgrid) Send(ctx context.Context, e Email) error {
	if len(e.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	p := sgmail.NewPersonalization()
	p.Subject = e.Subject
	for _, to := range e.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("", s.from))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", e.HTML))

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message, status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
