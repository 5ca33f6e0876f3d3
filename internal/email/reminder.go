package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/domain"
)

// Sender delivers reminder emails via Amazon SES. When no from address
// is configured the sender is disabled and every send is a no-op.
type Sender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
	logger    *slog.Logger
}

// NewSender creates a new email sender
func NewSender(ctx context.Context, cfg *config.EmailConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.FromEmail == "" {
		logger.Info("email sender disabled: no from address configured")
		return &Sender{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg)
	logger.Info("email sender enabled", "from", cfg.FromEmail, "region", cfg.AWSRegion)

	return &Sender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		enabled:   true,
		logger:    logger,
	}, nil
}

// Enabled reports whether the sender can deliver email
func (s *Sender) Enabled() bool {
	return s.enabled
}

// SendReminder emails a user about their unfinished games
func (s *Sender) SendReminder(ctx context.Context, user domain.User, unfinishedGames int) error {
	if !s.enabled {
		return nil
	}
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}

	subject := "You have unfinished Hangman games!"
	body := fmt.Sprintf(
		"Hello %s,\n\nYou have %d unfinished Hangman game(s) waiting for you. "+
			"Come back and finish them before the gallows do!\n",
		user.Name, unfinishedGames,
	)

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data: aws.String(subject),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data: aws.String(body),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("sending reminder to %s: %w", user.Email, err)
	}

	if result.MessageId != nil {
		s.logger.Debug("reminder sent", "user_id", user.ID, "message_id", *result.MessageId)
	}
	return nil
}
