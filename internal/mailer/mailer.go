package mailer

import (
	"fmt"
	"net/smtp"
)

// Mailer отправляет транзакционные письма пользователям.
type Mailer interface {
	SendOTP(toEmail, code string) error
	SendPasswordReset(toEmail, code string) error
}

// SMTPMailer отправляет письма через обычный SMTP с PLAIN авторизацией.
type SMTPMailer struct {
	host string
	port string
	from string
	pass string
}

func NewSMTPMailer(host, port, from, pass string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, pass: pass}
}

// SendOTP отправляет код подтверждения email.
func (m *SMTPMailer) SendOTP(toEmail, code string) error {
	msg := fmt.Sprintf(`Subject: SafeQly - Email Verification

Dear user,

Your one-time verification code is:

%s

Please enter this code to complete your registration. The code expires in 10 minutes.

Thank you,
SafeQly Team
`, code)

	return m.send(toEmail, msg)
}

// SendPasswordReset отправляет код для сброса пароля.
func (m *SMTPMailer) SendPasswordReset(toEmail, code string) error {
	msg := fmt.Sprintf(`Subject: SafeQly - Password Reset

Dear user,

Your password reset code is:

%s

If you did not request a password reset, please ignore this message. The code expires in 10 minutes.

Thank you,
SafeQly Team
`, code)

	return m.send(toEmail, msg)
}

func (m *SMTPMailer) send(toEmail, msg string) error {
	addr := m.host + ":" + m.port
	err := smtp.SendMail(
		addr,
		smtp.PlainAuth("", m.from, m.pass, m.host),
		m.from,
		[]string{toEmail},
		[]byte(msg),
	)
	if err != nil {
		return fmt.Errorf("mailer: send to %s: %w", toEmail, err)
	}
	return nil
}
