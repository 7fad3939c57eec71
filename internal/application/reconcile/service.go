package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-shop-api/internal/domain"
)

// actorAutoConfirm tags history entries written by the sweep.
const actorAutoConfirm = "auto-confirm"

// OrderStore is the persistence surface the sweep needs.
type OrderStore interface {
	FindEligible(ctx context.Context, status domain.OrderStatus, olderThan time.Time) ([]domain.Order, error)
	TransitionIfStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)
	AppendHistory(ctx context.Context, orderID string, entry domain.OrderTransition) error
}

// Result classifies the outcome of one order within a pass.
type Result string

const (
	ResultConfirmed Result = "confirmed"
	// ResultSkipped means the conditional update matched zero rows: the order
	// left PENDING_CONFIRMATION concurrently. Not an error.
	ResultSkipped Result = "already_transitioned"
	ResultFailed  Result = "failed"
)

// Outcome is the per-order record a pass returns.
type Outcome struct {
	OrderID string `json:"order_id"`
	Result  Result `json:"result"`
	Error   string `json:"error,omitempty"`
}

// Service runs auto-confirmation passes over the order table.
type Service struct {
	orders OrderStore
	grace  time.Duration
}

// NewService builds the pass runner. grace is the policy constant owned by
// the order domain: how long an order must sit in PENDING_CONFIRMATION before
// the sweep may confirm it.
func NewService(orders OrderStore, grace time.Duration) *Service {
	return &Service{orders: orders, grace: grace}
}

// RunPass confirms every eligible order independently and returns one outcome
// per order. A single order's failure never aborts the sweep; only the
// eligibility query itself failing fails the pass.
func (s *Service) RunPass(ctx context.Context) ([]Outcome, error) {
	cutoff := time.Now().Add(-s.grace)
	eligible, err := s.orders.FindEligible(ctx, domain.OrderStatusPendingConfirmation, cutoff)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(eligible))
	confirmed, skipped, failed := 0, 0, 0
	for _, o := range eligible {
		applied, err := s.orders.TransitionIfStatus(ctx, o.OrderID,
			domain.OrderStatusPendingConfirmation, domain.OrderStatusConfirmed)
		switch {
		case err != nil:
			failed++
			slog.Error("auto-confirm transition failed", "order_id", o.OrderID, "err", err)
			outcomes = append(outcomes, Outcome{OrderID: o.OrderID, Result: ResultFailed, Error: err.Error()})
		case !applied:
			// A concurrent transition (e.g. admin cancellation) won; that
			// transition is authoritative.
			skipped++
			outcomes = append(outcomes, Outcome{OrderID: o.OrderID, Result: ResultSkipped})
		default:
			confirmed++
			entry := domain.OrderTransition{
				From:  domain.OrderStatusPendingConfirmation,
				To:    domain.OrderStatusConfirmed,
				Actor: actorAutoConfirm,
				At:    time.Now().UnixNano(),
			}
			if err := s.orders.AppendHistory(ctx, o.OrderID, entry); err != nil {
				slog.Warn("could not append order history", "order_id", o.OrderID, "err", err)
			}
			outcomes = append(outcomes, Outcome{OrderID: o.OrderID, Result: ResultConfirmed})
		}
	}

	slog.Info("auto-confirm pass finished",
		"eligible", len(eligible), "confirmed", confirmed, "skipped", skipped, "failed", failed)
	return outcomes, nil
}
