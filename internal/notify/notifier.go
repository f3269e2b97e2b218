package notify

import (
	"context"
	"fmt"
	"log/slog"

	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
)

// Notifier submits outbound verification messages to the dispatcher. Both
// methods return immediately; delivery happens on the worker pool and its
// outcome is never reported back to the caller.
type Notifier struct {
	dispatcher *Dispatcher
	mailer     Mailer
	sms        SMSSender
	siteURL    string
	logger     *slog.Logger
}

func NewNotifier(dispatcher *Dispatcher, mailer Mailer, sms SMSSender, siteURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		mailer:     mailer,
		sms:        sms,
		siteURL:    siteURL,
		logger:     logger,
	}
}

// VerificationEmail queues the email carrying the one-time activation link.
func (n *Notifier) VerificationEmail(name, email string, token uuid.UUID) {
	if n.mailer == nil {
		n.logger.Info("email delivery disabled, skipping verification email")
		return
	}

	link := fmt.Sprintf("%s/api/v1/users/email-verify/%s", n.siteURL, token)
	htmlBody, textBody := verificationBodies(name, link)

	n.logger.Info("queueing verification email",
		slog.String("recipient", pkglogger.SanitizedEmail(email)))
	n.dispatcher.Submit("verification-email", func(ctx context.Context) error {
		return n.mailer.SendEmail(ctx, "Email Verification", email, htmlBody, textBody)
	})
}

// OTPSMS queues the SMS carrying the one-time phone verification code.
func (n *Notifier) OTPSMS(phone, otp string) {
	if n.sms == nil {
		n.logger.Info("sms delivery disabled, skipping otp sms")
		return
	}

	message := fmt.Sprintf("%s is your verification code.", otp)

	n.logger.Info("queueing otp sms",
		slog.String("recipient", pkglogger.SanitizedPhone(phone)))
	n.dispatcher.Submit("otp-sms", func(ctx context.Context) error {
		return n.sms.SendSMS(ctx, phone, message)
	})
}

func verificationBodies(name, link string) (string, string) {
	if name == "" {
		name = "there"
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
        <h1>Verify Your Email Address</h1>
        <p>Hi %s,</p>
        <p>Thank you for creating an account. To complete your registration, please verify your email address by clicking the link below:</p>
        <p><a href="%s" class="button">Verify Email Address</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p><strong>Didn't create this account?</strong><br>
        If you didn't sign up for this account, you can ignore this email. Your email address will not be verified.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, name, link, link)

	textBody := fmt.Sprintf(`Verify Your Email Address

Hi %s,

Thank you for creating an account. To complete your registration, please verify your email address by visiting the link below:

%s

Didn't create this account?
If you didn't sign up for this account, you can ignore this email. Your email address will not be verified.

This is an automated message. Please do not reply to this email.
`, name, link)

	return htmlBody, textBody
}
