package notify

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// SNSSender sends SMS messages via AWS SNS.
type SNSSender struct {
	client *sns.Client
	logger *slog.Logger
}

func NewSNSSender(region string, logger *slog.Logger) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SNSSender{client: sns.NewFromConfig(cfg), logger: logger}, nil
}

func (s *SNSSender) SendSMS(ctx context.Context, phone, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phone,
		Message:     &message,
	})
	if err != nil {
		s.logger.Error("failed to send sms via SNS", slog.Any("error", err))
		return fmt.Errorf("failed to send sms: %w", err)
	}

	s.logger.Info("sms sent")
	return nil
}
