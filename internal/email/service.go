package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

// NewService returns an SMTP sender, or a sender that only logs when SMTP is disabled.
func NewService(cfg config.SMTPConfig, log *logger.Logger) Service {
	if !cfg.Enabled {
		return &disabledService{logger: log}
	}
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func (s *smtpService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(buildMessage(s.from, msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

type disabledService struct {
	logger *logger.Logger
}

func (s *disabledService) Send(_ context.Context, msg Message) error {
	s.logger.Debug("smtp disabled, email not sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
