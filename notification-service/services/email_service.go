package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub001/notification-service/config"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

var ErrEmptyRecipient = errors.New("recipient cannot be empty")

// Message is a rendered email ready for delivery.
type Message struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailResponse represents the response after sending an email
type EmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}

// EmailService renders the account emails and hands them to a Sender.
type EmailService struct {
	sender    Sender
	templates *TemplateService
	log       logging.Logger
	now       func() time.Time
}

// NewEmailService creates a new email service
func NewEmailService(sender Sender, log logging.Logger) *EmailService {
	if log == nil {
		log = logging.Nop()
	}
	return &EmailService{
		sender:    sender,
		templates: NewTemplateService(),
		log:       log,
		now:       time.Now,
	}
}

// SendVerificationEmail sends the link that confirms an email address.
func (es *EmailService) SendVerificationEmail(ctx context.Context, to, name, link string) (*EmailResponse, error) {
	return es.send(ctx, to, "Verify your EventHub email address", TemplateVerification, map[string]any{
		"Name": displayName(name),
		"Link": link,
	})
}

// SendPasswordResetEmail sends password reset email
func (es *EmailService) SendPasswordResetEmail(ctx context.Context, to, name, link, expiresIn string) (*EmailResponse, error) {
	return es.send(ctx, to, "Reset your EventHub password", TemplatePasswordReset, map[string]any{
		"Name":      displayName(name),
		"Link":      link,
		"ExpiresIn": expiresIn,
	})
}

func (es *EmailService) SendPasswordChangedEmail(ctx context.Context, to, name, changedAt string) (*EmailResponse, error) {
	return es.send(ctx, to, "Your EventHub password was changed", TemplatePasswordChanged, map[string]any{
		"Name":      displayName(name),
		"ChangedAt": changedAt,
	})
}

func (es *EmailService) send(ctx context.Context, to, subject, templateID string, vars map[string]any) (*EmailResponse, error) {
	if strings.TrimSpace(to) == "" {
		return nil, ErrEmptyRecipient
	}

	body, err := es.templates.RenderTemplate(templateID, vars)
	if err != nil {
		return nil, err
	}

	sentAt := es.now().UTC().Format(time.RFC3339)
	msg := Message{ID: uuid.NewString(), To: to, Subject: subject, HTML: body}
	if err := es.sender.Send(ctx, msg); err != nil {
		es.log.Error(ctx, "email delivery failed", "template", templateID, "message_id", msg.ID, "error", err)
		return &EmailResponse{Success: false, Message: "Failed to send email", SentAt: sentAt}, err
	}

	es.log.Info(ctx, "email sent", "template", templateID, "message_id", msg.ID)
	return &EmailResponse{Success: true, Message: "Email sent successfully", SentAt: sentAt}, nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	var conn net.Conn
	var err error
	// Port 465 uses implicit TLS, other ports may upgrade with STARTTLS
	if s.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS && s.cfg.Port != "465" {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(BuildMessage(s.cfg.FromName, s.cfg.From, msg))); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// BuildMessage renders headers and body in RFC 5322 form.
func BuildMessage(fromName, from string, msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", msg.ID, domainOf(from))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.String()
}

func domainOf(addr string) string {
	if at := strings.LastIndexByte(addr, '@'); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return "localhost"
}

// LogSender records messages instead of delivering them. It is used when no
// SMTP relay is configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	if log == nil {
		log = logging.Nop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info(ctx, "smtp disabled, email not delivered", "to", msg.To, "subject", msg.Subject, "message_id", msg.ID)
	return nil
}
