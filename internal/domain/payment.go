package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// DefaultPaymentMethod is stored when the caller does not name a payment method.
const DefaultPaymentMethod = "MOCK_CARD"

var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusSuccess: {PaymentStatusRefunded},
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s PaymentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment is a single payment attempt for an order. Only Status changes after creation.
type Payment struct {
	ID            int64
	OrderID       int64
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod string
	Status        PaymentStatus
	TransactionID string
	CreatedAt     time.Time
}

// NewPayment builds a PENDING payment. The store assigns ID on first save.
func NewPayment(orderID, userID int64, amount decimal.Decimal, paymentMethod, transactionID string, createdAt time.Time) *Payment {
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}
	return &Payment{
		OrderID:       orderID,
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		Status:        PaymentStatusPending,
		TransactionID: transactionID,
		CreatedAt:     createdAt,
	}
}

func (p *Payment) transitionTo(next PaymentStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return InvalidTransitionf("Cannot transition payment from %s to %s", p.Status, next)
	}
	p.Status = next
	return nil
}

// Resolve moves a PENDING payment to SUCCESS or FAILED.
func (p *Payment) Resolve(outcome PaymentStatus) error {
	if outcome != PaymentStatusSuccess && outcome != PaymentStatusFailed {
		return InvalidTransitionf("Payment outcome must be %s or %s, got %s", PaymentStatusSuccess, PaymentStatusFailed, outcome)
	}
	return p.transitionTo(outcome)
}

// Refund moves a SUCCESS payment to REFUNDED.
func (p *Payment) Refund() error {
	if p.Status == PaymentStatusRefunded {
		return InvalidTransitionf("Payment has already been refunded")
	}
	if p.Status != PaymentStatusSuccess {
		return InvalidTransitionf("Only successful payments can be refunded")
	}
	return p.transitionTo(PaymentStatusRefunded)
}

// Clone returns a copy that shares no mutable state with p.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
