// Package mail is the outbound email collaborator.
//
// Delivery mechanics are out of this subsystem's hands — services
// depend on the Mailer interface only. The SMTP implementation covers
// real deployments; LogMailer keeps local development working without
// an SMTP server.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Message is one outbound email. Text and HTML are alternative bodies;
// for verification codes the raw code appears in both and is never
// retrievable again after delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages out of band.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers via a plain SMTP relay with AUTH PLAIN.
type SMTPMailer struct {
	addr string // host:port
	auth smtp.Auth
	from string
}

// NewSMTPMailer configures delivery through the given relay.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
	}
}

// Send builds a multipart/alternative MIME message and hands it to the
// relay. net/smtp's SendMail is synchronous; callers who care about
// latency should invoke Send from a goroutine.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const boundary = "gohost-mime-boundary"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	if msg.HTML != "" {
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
// Development only — the body (including any verification code) ends up
// in the process log.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("mail (not delivered, log mailer active)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
