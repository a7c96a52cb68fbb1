package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendEmergencyCode delivers the fallback second-factor code.
func (s *AWSSESEmailService) SendEmergencyCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .code { font-size: 32px; letter-spacing: 6px; font-weight: bold; text-align: center;
                background-color: #f8f9fa; padding: 16px; border-radius: 4px; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Your emergency sign-in code</h1>
        <p>You asked for a one-time code because your authenticator app is unavailable. Enter this code on the sign-in screen:</p>
        <p class="code">%s</p>
        <div class="warning">
            <strong>Security Notice:</strong> This code expires in %d minutes and can be used once.
        </div>
        <p><strong>Didn't try to sign in?</strong><br>
        Someone may know your password. Change it as soon as possible.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, code, minutes)

	textBody := fmt.Sprintf(`Your emergency sign-in code

You asked for a one-time code because your authenticator app is unavailable. Enter this code on the sign-in screen:

    %s

Security Notice: This code expires in %d minutes and can be used once.

Didn't try to sign in? Someone may know your password. Change it as soon as possible.

This is an automated message. Please do not reply to this email.
`, code, minutes)

	return s.send(ctx, email, "Your emergency sign-in code", htmlBody, textBody)
}

// SendInvitation delivers the invitation link with the optional note from
// the inviting administrator.
func (s *AWSSESEmailService) SendInvitation(ctx context.Context, email, token, adminMessage string, expiresAt time.Time) error {
	inviteLink := fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, token)

	messageBlock := ""
	messageText := ""
	if adminMessage != "" {
		messageBlock = fmt.Sprintf(`<blockquote style="border-left: 4px solid #0066cc; padding-left: 12px; color: #444;">%s</blockquote>`, adminMessage)
		messageText = fmt.Sprintf("\nA note from the person who invited you:\n\n    %s\n", adminMessage)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>You've been invited</h1>
        <p>An administrator has invited you to create an account. Click the link below to set up your password and get started:</p>
        %s
        <p><a href="%s" class="button">Accept Invitation</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This invitation expires on %s. If you weren't expecting it, you can ignore this email.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, messageBlock, inviteLink, inviteLink, expiresAt.Format("January 2, 2006"))

	textBody := fmt.Sprintf(`You've been invited

An administrator has invited you to create an account. Open the link below to set up your password and get started:
%s
%s

This invitation expires on %s. If you weren't expecting it, you can ignore this email.

This is an automated message. Please do not reply to this email.
`, messageText, inviteLink, expiresAt.Format("January 2, 2006"))

	return s.send(ctx, email, "You've been invited to create an account", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send email", slog.String("subject", subject), slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
