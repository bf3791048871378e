package bookmarket

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailSender delivers the transactional messages the auth workflow
// needs. Failures come back as errors and are reported to the caller;
// nothing here retries.
type EmailSender interface {
	// SendSignupOTPEmail delivers the signup verification code.
	SendSignupOTPEmail(to, otp, name string) error

	// SendOTPEmail delivers the password-reset code.
	SendOTPEmail(to, otp, name string) error

	// SendWelcomeEmail greets a freshly verified account.
	SendWelcomeEmail(to, name string) error
}

// ConsoleEmailSender is a development implementation that logs emails
// instead of delivering them.
type ConsoleEmailSender struct {
	Logger *zap.Logger
}

func (c *ConsoleEmailSender) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *ConsoleEmailSender) SendSignupOTPEmail(to, otp, name string) error {
	c.logger().Info("email: signup verification",
		zap.String("to", to), zap.String("name", name), zap.String("otp", otp))
	return nil
}

func (c *ConsoleEmailSender) SendOTPEmail(to, otp, name string) error {
	c.logger().Info("email: password reset",
		zap.String("to", to), zap.String("name", name), zap.String("otp", otp))
	return nil
}

func (c *ConsoleEmailSender) SendWelcomeEmail(to, name string) error {
	c.logger().Info("email: welcome", zap.String("to", to), zap.String("name", name))
	return nil
}

// SMTPEmailSender delivers mail over a plain SMTP relay.
type SMTPEmailSender struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	FromAddr string
}

func (s *SMTPEmailSender) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %q <%s>\r\n", s.FromName, s.FromAddr)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, s.FromAddr, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPEmailSender) SendSignupOTPEmail(to, otp, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour Book Marketplace verification code is %s.\nIt expires in 10 minutes.\n\nIf you did not sign up, you can ignore this email.\n",
		name, otp)
	return s.send(to, "Book Marketplace - Verify your signup", body)
}

func (s *SMTPEmailSender) SendOTPEmail(to, otp, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour password reset code is %s.\nIt expires in 10 minutes.\n\nIf you did not request a reset, you can ignore this email.\n",
		name, otp)
	return s.send(to, "Book Marketplace - Password reset code", body)
}

func (s *SMTPEmailSender) SendWelcomeEmail(to, name string) error {
	body := fmt.Sprintf("Hi %s,\n\nYour account is verified. Welcome to Book Marketplace!\n", name)
	return s.send(to, "Welcome to Book Marketplace", body)
}

// sendInBackground dispatches a best-effort email without blocking the
// request. Failures are logged to the given sink, never surfaced.
func sendInBackground(logger *zap.Logger, what string, send func() error) {
	go func() {
		if err := send(); err != nil {
			logger.Error("background email send failed",
				zap.String("email", what), zap.Error(err))
		}
	}()
}
