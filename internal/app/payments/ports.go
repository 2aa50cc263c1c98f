package payments

import (
	"context"
	"time"

	"payment-service/internal/domain"
)

// PaymentStore persists payments. FindByID and FindByOrderID return
// domain.ErrPaymentNotFound when no record matches.
type PaymentStore interface {
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	FindByID(ctx context.Context, id int64) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID int64) ([]*domain.Payment, error)
}

// Metrics records payment outcomes; implementations must be safe for concurrent use.
type Metrics interface {
	PaymentProcessed(status domain.PaymentStatus)
	RefundAttempted(outcome string)
	ObserveOperation(operation string, outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) PaymentProcessed(domain.PaymentStatus)          {}
func (nopMetrics) RefundAttempted(string)                         {}
func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
