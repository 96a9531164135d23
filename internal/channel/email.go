package channel

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/pawline/notify-api/pkg/logger"
)

const defaultEmailTimeout = 15 * time.Second

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// EmailSender delivers messages over SMTP.
type EmailSender struct {
	cfg    EmailConfig
	logger *logger.Logger

	// send is swappable in tests; defaults to a gomail dial-and-send.
	send func(m *gomail.Message) error
}

func NewEmailSender(cfg EmailConfig, logger *logger.Logger) *EmailSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmailTimeout
	}

	s := &EmailSender{cfg: cfg, logger: logger}
	s.send = func(m *gomail.Message) error {
		dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		return dialer.DialAndSend(m)
	}
	return s
}

// Send delivers one email. gomail has no context support, so the dial runs in
// a goroutine and the call is bounded by the configured timeout.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) Result {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return FailedPermanently("email credentials not configured")
	}
	if to == "" {
		return FailedPermanently("empty email recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return Failed(fmt.Sprintf("smtp send failed: %v", err))
		}
		return Sent("")
	case <-ctx.Done():
		s.logger.Debug("email send timed out", "to", to)
		return Failed(fmt.Sprintf("smtp send timed out after %s", s.cfg.Timeout))
	}
}
