package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/pkg/id"
)

// Store is the persistence surface the service needs for verification codes.
// Put must write through the (subject, purpose) slot so that a fresh issue
// replaces the previous code rather than coexisting with it; that keying is
// what serializes concurrent issuance.
type Store interface {
	Put(ctx context.Context, v *domain.VerificationCode) error
	Current(ctx context.Context, subject string, purpose domain.Purpose) (*domain.VerificationCode, error)
	FindActive(ctx context.Context, subject, code string, purpose domain.Purpose, now time.Time) (*domain.VerificationCode, error)
	MarkConsumed(ctx context.Context, subject string, purpose domain.Purpose, verificationID string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// Notifier delivers an issued code to its destination, best-effort.
type Notifier interface {
	SendCode(ctx context.Context, destination string, purpose domain.Purpose, code string) error
}

// IssuedCode is the result of a successful issuance. Callers must not expose
// the code itself in API responses outside development environments.
type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

type Service interface {
	Issue(ctx context.Context, subject string, purpose domain.Purpose, destination string) (*IssuedCode, error)
	Verify(ctx context.Context, subject, code string, purpose domain.Purpose) (string, error)
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}

// ServiceDeps bundles the constructor arguments for NewService.
type ServiceDeps struct {
	Store    Store
	Notifier Notifier
	CodeTTL  time.Duration // validity window of an issued code
	Cooldown time.Duration // minimum gap between issues per (subject, purpose)
}

type service struct {
	store    Store
	notifier Notifier
	ttl      time.Duration
	cooldown time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:    deps.Store,
		notifier: deps.Notifier,
		ttl:      deps.CodeTTL,
		cooldown: deps.Cooldown,
	}
}

// Issue persists a fresh 6-digit code for (subject, purpose) and delivers it
// out-of-band. The write replaces any outstanding code for the pair, so a new
// issue is also the supersession. Persistence success, not delivery success,
// decides the outcome: a failed delivery is logged and the code stays
// redeemable through other channels.
func (s *service) Issue(ctx context.Context, subject string, purpose domain.Purpose, destination string) (*IssuedCode, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}

	now := time.Now()

	// Cooldown is measured from the persisted creation time of the current
	// code so it survives process restarts.
	current, err := s.store.Current(ctx, subject, purpose)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if current != nil {
		if since := now.Sub(current.CreatedTime()); since < s.cooldown {
			return nil, fmt.Errorf("code issued %s ago, retry in %s: %w",
				since.Round(time.Second), (s.cooldown - since).Round(time.Second), domain.ErrRateLimited)
		}
		if !current.Consumed && !current.Expired(now) {
			slog.Info("superseding outstanding verification code",
				"subject", subject, "purpose", purpose)
		}
	}

	code, err := randomCode()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.ttl)

	v := &domain.VerificationCode{
		VerificationID: id.New(),
		Subject:        subject,
		SubjectPurpose: domain.SubjectPurposeKey(subject, purpose),
		Purpose:        purpose,
		Code:           code,
		CreatedAt:      now.UnixNano(),
		ExpiresAt:      expiresAt.Unix(),
	}
	if err := s.store.Put(ctx, v); err != nil {
		return nil, err
	}

	// Delivery failure never rolls back issuance; the persisted code remains
	// redeemable (e.g. via support).
	if err := s.notifier.SendCode(ctx, destination, purpose, code); err != nil {
		slog.Warn("verification code delivery failed",
			"subject", subject, "purpose", purpose, "err", err)
	}

	return &IssuedCode{Code: code, ExpiresAt: expiresAt}, nil
}

// Verify consumes the matching active code exactly once. Every failure mode
// collapses into ErrCodeInvalid so callers cannot distinguish whether a code
// was wrong, expired or already used.
func (s *service) Verify(ctx context.Context, subject, code string, purpose domain.Purpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}

	v, err := s.store.FindActive(ctx, subject, code, purpose, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("verification failed: %w", domain.ErrCodeInvalid)
		}
		return "", err
	}

	consumed, err := s.store.MarkConsumed(ctx, subject, purpose, v.VerificationID)
	if err != nil {
		return "", err
	}
	if !consumed {
		// Lost the race against a concurrent verify of the same code.
		return "", fmt.Errorf("verification failed: %w", domain.ErrCodeInvalid)
	}
	return v.VerificationID, nil
}

// Cleanup deletes codes that are expired, or consumed and older than the
// caller-supplied retention window. It never runs on its own schedule.
func (s *service) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	if retention < 0 {
		return 0, fmt.Errorf("negative retention window: %w", domain.ErrBadRequest)
	}
	deleted, err := s.store.DeleteExpired(ctx, time.Now(), retention)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		slog.Info("cleaned up verification codes", "deleted", deleted, "retention", retention)
	}
	return deleted, nil
}

// randomCode draws a uniform 6-digit code in [100000, 999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
