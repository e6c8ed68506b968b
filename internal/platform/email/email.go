package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"workhours/internal/platform/config"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, msg Message) error {
	slog.Info("email disabled, dropping message", "subject", msg.Subject, "to", strings.Join(msg.To, ","), "attachments", len(msg.Attachments))
	return nil
}

// New picks the transport named by EMAIL_TRANSPORT. With email disabled every
// message is dropped after a log line.
func New(ctx context.Context, cfg config.Config) (Mailer, error) {
	if !cfg.EmailEnabled {
		return noopMailer{}, nil
	}
	switch cfg.EmailTransport {
	case config.EmailTransportSES:
		return newSESMailer(ctx)
	case config.EmailTransportSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp transport requires SMTP_HOST")
		}
		return &smtpMailer{
			host:     cfg.SMTPHost,
			port:     cfg.SMTPPort,
			user:     cfg.SMTPUser,
			password: cfg.SMTPPassword,
			useTLS:   cfg.SMTPUseTLS,
		}, nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.EmailTransport)
	}
}

func recipients(msg Message) []string {
	out := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		if to = strings.TrimSpace(to); to != "" {
			out = append(out, to)
		}
	}
	return out
}
