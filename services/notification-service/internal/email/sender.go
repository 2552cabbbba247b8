package email

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultFrom = "no-reply@timely.local"

type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SMTPSender delivers plain-text mail over unauthenticated SMTP (Mailpit in dev, a relay in prod).
type SMTPSender struct {
	addr string
	host string
	from string
	now  func() time.Time
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = defaultFrom
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, port),
		host: host,
		from: from,
		now:  time.Now,
	}
}

// Send honours ctx for the dial and for the whole SMTP exchange.
func (s *SMTPSender) Send(ctx context.Context, to string, subject string, body string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt %s: %w", to, err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(s.buildMessage(to, subject, body))); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func (s *SMTPSender) buildMessage(to, subject, body string) string {
	domain := defaultFrom[strings.LastIndex(defaultFrom, "@")+1:]
	if at := strings.LastIndex(s.from, "@"); at >= 0 {
		domain = s.from[at+1:]
	}
	headers := []string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + s.now().UTC().Format(time.RFC1123Z),
		"Message-ID: <" + uuid.NewString() + "@" + domain + ">",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
	}
	body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body + "\r\n"
}
