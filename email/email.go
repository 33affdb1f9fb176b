package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"nikwetu/config"
)

var ErrNotConfigured = errors.New("smtp is not configured")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       string
	send     sendFunc
}

func NewEmailService(cfg config.Config) *EmailService {
	to := cfg.ContactEmail
	if to == "" {
		to = cfg.SMTPFrom
	}
	return &EmailService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *EmailService) Configured() bool {
	return e != nil && e.host != "" && e.to != ""
}

// SendContactMessage forwards a contact form submission to the newsroom
// inbox with the visitor as Reply-To.
func (e *EmailService) SendContactMessage(name, replyTo, message string) error {
	if !e.Configured() {
		return ErrNotConfigured
	}

	name = headerSafe(name)
	replyTo = headerSafe(replyTo)

	subject := fmt.Sprintf("Contact form: %s", name)
	body := fmt.Sprintf(`
New message from the News Nikwetu contact form.

Name:  %s
Email: %s

%s

---
News Nikwetu
`, name, replyTo, message)

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Reply-To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n", e.from, e.to, replyTo, subject, body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := e.send(addr, auth, e.from, []string{e.to}, []byte(msg)); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	return nil
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}
