package payments

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const amountScale = 2

// maxAmount is the first value that does not fit NUMERIC(19,2).
var maxAmount = decimal.New(1, 17)

// FieldErrors maps a request field to its validation message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewProcessPaymentCommand checks request shape before the command reaches the service.
func NewProcessPaymentCommand(orderID, userID *int64, amount *decimal.Decimal, paymentMethod string) (ProcessPaymentCommand, error) {
	errs := FieldErrors{}
	if orderID == nil {
		errs["orderId"] = "Order ID is required"
	}
	if userID == nil {
		errs["userId"] = "User ID is required"
	}
	if amount == nil {
		errs["amount"] = "Amount is required"
	} else if !amount.IsPositive() {
		errs["amount"] = "Amount must be positive"
	} else if !amount.Equal(amount.Truncate(amountScale)) {
		errs["amount"] = "Amount must have at most 2 decimal places"
	} else if amount.GreaterThanOrEqual(maxAmount) {
		errs["amount"] = "Amount is too large"
	}
	if len(errs) > 0 {
		return ProcessPaymentCommand{}, errs
	}
	// A blank method falls back to the default; anything else is kept verbatim.
	if strings.TrimSpace(paymentMethod) == "" {
		paymentMethod = ""
	}
	return ProcessPaymentCommand{
		OrderID:       *orderID,
		UserID:        *userID,
		Amount:        *amount,
		PaymentMethod: paymentMethod,
	}, nil
}

func NewRefundPaymentCommand(paymentID *int64, reason string) (RefundPaymentCommand, error) {
	if paymentID == nil {
		return RefundPaymentCommand{}, FieldErrors{"paymentId": "Payment ID is required"}
	}
	return RefundPaymentCommand{PaymentID: *paymentID, Reason: reason}, nil
}
