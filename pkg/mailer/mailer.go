// Package mailer delivers rendered digests. Providers implement Sender:
// an authenticated SMTP relay, the SendGrid API, or a console writer for
// dry runs.
package mailer

import (
	"context"
	"strings"

	"github.com/go-pkgz/lgr"
)

// Email is one outbound HTML message
type Email struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a message to its recipients
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Console logs the message instead of delivering it, useful for dry runs
// and local testing without credentials
type Console struct{}

// Send writes the message to the log and reports success
func (Console) Send(_ context.Context, e Email) error {
	lgr.Printf("[INFO] console mail to %s, subject %q, body %d bytes",
		strings.Join(e.To, ", "), e.Subject, len(e.HTML))
	lgr.Printf("[DEBUG] message body: %s", e.HTML)
	return nil
}
