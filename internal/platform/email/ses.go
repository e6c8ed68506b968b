package email

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type rawEmailSender interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

type sesMailer struct {
	client rawEmailSender
}

func newSESMailer(ctx context.Context) (*sesMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &sesMailer{client: ses.NewFromConfig(cfg)}, nil
}

func (s *sesMailer) Send(ctx context.Context, msg Message) error {
	to := recipients(msg)
	if len(to) == 0 {
		return fmt.Errorf("email %q has no recipients", msg.Subject)
	}
	raw, err := Build(msg)
	if err != nil {
		return err
	}
	res, err := s.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Destinations: to,
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	if res != nil && res.MessageId != nil {
		slog.Info("email sent", "transport", "ses", "messageId", *res.MessageId, "subject", msg.Subject)
	}
	return nil
}
