package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/config"
	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// SMTPSender relays mail through an authenticated SMTP server with
// mandatory STARTTLS (implicit TLS on port 465).
type SMTPSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

// NewSMTPSender creates a sender from configuration. An unconfigured relay
// is allowed at boot; Send then fails with ErrNotConfigured.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:     cfg,
		timeout: cfg.Timeout,
	}
}

// Configured reports whether Send can reach a relay.
func (s *SMTPSender) Configured() bool {
	return s.cfg.Configured()
}

// Send builds the MIME message and delivers it over a fresh connection.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Server, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().
				Err(err).
				Dur("timeout", s.timeout).
				Str("smtp_server", s.cfg.Server).
				Msg("SMTP send timed out")
		} else {
			log.Warn().
				Err(err).
				Str("smtp_server", s.cfg.Server).
				Int("smtp_port", s.cfg.Port).
				Msg("Failed to send email")
		}
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send email: %w", err)
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	log.Info().
		Str("subject", msg.Subject).
		Msg("Email sent")
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTPSender) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.SenderName, s.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	if s.cfg.ReplyTo != "" {
		if err := m.ReplyTo(s.cfg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetDate()

	if msg.Text != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		if msg.HTML != "" {
			m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
		}
	} else {
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}
