package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateTypePayment           = "payment"
	MessageTypePaymentStatusChange = "payment.status_changed"
)

// PaymentStatusChangedEvent is published for every persisted payment write.
type PaymentStatusChangedEvent struct {
	PaymentID     int64           `json:"paymentId"`
	OrderID       int64           `json:"orderId"`
	UserID        int64           `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId"`
	PaymentMethod string          `json:"paymentMethod"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewPaymentStatusChangedEvent(p *Payment, at time.Time) PaymentStatusChangedEvent {
	return PaymentStatusChangedEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		PaymentMethod: p.PaymentMethod,
		Timestamp:     at,
	}
}

// PaymentRequestedEvent asks the service to process a payment for an order.
type PaymentRequestedEvent struct {
	OrderID       *int64           `json:"orderId"`
	UserID        *int64           `json:"userId"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
}
