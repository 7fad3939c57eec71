package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/infrastructure/smtp"
	"github.com/go-shop-api/internal/infrastructure/sns"
)

// Notifier delivers a verification code out-of-band. Delivery is best-effort:
// callers treat failures as warnings, never as issuance failures.
type Notifier interface {
	SendCode(ctx context.Context, destination string, purpose domain.Purpose, code string) error
}

type notifier struct {
	mailer    smtp.Mailer
	smsSender sns.SMSSender
}

// New builds a Notifier that routes by destination shape: addresses containing
// "@" go out as email, everything else as SMS. smsSender may be nil when SNS
// is not configured; SMS destinations then fail delivery (still best-effort).
func New(mailer smtp.Mailer, smsSender sns.SMSSender) Notifier {
	return &notifier{mailer: mailer, smsSender: smsSender}
}

func (n *notifier) SendCode(ctx context.Context, destination string, purpose domain.Purpose, code string) error {
	if strings.Contains(destination, "@") {
		return n.mailer.SendEmail(destination, emailSubject(purpose), "Your verification code: "+code)
	}
	if n.smsSender == nil {
		return fmt.Errorf("sms delivery not configured")
	}
	return n.smsSender.SendSMS(ctx, destination, "Your verification code: "+code)
}

func emailSubject(purpose domain.Purpose) string {
	switch purpose {
	case domain.PurposeResetPassword:
		return "Password reset code"
	default:
		return "Confirm your registration"
	}
}
