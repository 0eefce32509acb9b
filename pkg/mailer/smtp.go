package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// SMTP sends mail through an authenticated relay over an encrypted
// connection, implicit TLS by default (the gmail:465 scheme) or STARTTLS
// on submission ports.
type SMTP struct {
	host        string
	port        int
	from        string
	password    string
	startTLS    bool
	insecureTLS bool
	timeout     time.Duration
}

// SMTPConfig holds relay parameters. From doubles as the auth username.
type SMTPConfig struct {
	Host        string
	Port        int
	From        string
	Password    string
	StartTLS    bool // negotiate TLS on a plain connection instead of dialing TLS
	InsecureTLS bool // skip certificate verification, for self-hosted relays
	Timeout     time.Duration
}

// NewSMTP creates an SMTP sender, defaulting to the gmail relay
func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{
		host:        cfg.Host,
		port:        cfg.Port,
		from:        cfg.From,
		password:    cfg.Password,
		startTLS:    cfg.StartTLS,
		insecureTLS: cfg.InsecureTLS,
		timeout:     cfg.Timeout,
	}
}

// Send delivers one message. The whole SMTP conversation runs under a single
// deadline so a hung relay cannot block the run indefinitely.
func (s *SMTP) Send(ctx context.Context, e Email) error {
	if len(e.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	tlsConf := &tls.Config{
		ServerName:         s.host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.insecureTLS, //nolint:gosec // operator-controlled, off by default
	}

	var conn net.Conn
	var err error
	if s.startTLS {
		dialer := net.Dialer{Timeout: s.timeout}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := tls.Dialer{NetDialer: &net.Dialer{Timeout: s.timeout}, Config: tlsConf}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if err = conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set smtp deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", addr, err)
	}
	defer client.Close()

	if s.startTLS {
		if err = client.StartTLS(tlsConf); err != nil {
			return fmt.Errorf("starttls with %s: %w", addr, err)
		}
	}

	if s.password != "" {
		if err = client.Auth(smtp.PlainAuth("", s.from, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth for %s: %w", s.from, err)
		}
	}

	if err = client.Mail(s.from); err != nil {
		return fmt.Errorf("set sender %s: %w", s.from, err)
	}
	for _, rcpt := range e.To {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("add recipient %s: %w", rcpt, err)
		}
	}

	msg, err := s.message(e)
	if err != nil {
		return fmt.Errorf("assemble message: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err = writer.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

// message assembles a multipart/alternative MIME document with a single
// quoted-printable HTML part
func (s *SMTP) message(e Email) ([]byte, error) {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")

	alt := multipart.NewWriter(&msg)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alt.Boundary())

	part, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/html; charset="utf-8"`},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	qp := quotedprintable.NewWriter(part)
	if _, err = io.WriteString(qp, e.HTML); err != nil {
		return nil, fmt.Errorf("encode html part: %w", err)
	}
	if err = qp.Close(); err != nil {
		return nil, fmt.Errorf("finish html part: %w", err)
	}
	if err = alt.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	return msg.Bytes(), nil
}
