package email

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

const resetSubject = "Código de recuperación de contraseña"

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender envía correos HTML via SMTP con gomail.
type SMTPSender struct {
	dialer   mailDialer
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		from = username
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SMTPSender) SendPasswordResetCode(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.buildResetMessage(toEmail, code, expiresAt, time.Now().UTC())
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildResetMessage(toEmail, code string, expiresAt, now time.Time) *gomail.Message {
	m := gomail.NewMessage()
	if strings.TrimSpace(s.fromName) != "" {
		m.SetHeader("From", m.FormatAddress(s.from, s.fromName))
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", resetSubject)

	minutes := int(math.Ceil(expiresAt.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	body := fmt.Sprintf(`<p>Tu código de verificación es: <strong>%s</strong></p>
<p>Este código expirará en %d minutos.</p>`, code, minutes)
	m.SetBody("text/html", body)
	return m
}
