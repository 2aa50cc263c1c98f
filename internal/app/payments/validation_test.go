package payments

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewProcessPaymentCommand(t *testing.T) {
	tests := []struct {
		name    string
		orderID *int64
		userID  *int64
		amount  *decimal.Decimal
		want    FieldErrors
	}{
		{"valid", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("59.98")), nil},
		{"missing everything", nil, nil, nil, FieldErrors{
			"orderId": "Order ID is required",
			"userId":  "User ID is required",
			"amount":  "Amount is required",
		}},
		{"zero amount", ptr(int64(1)), ptr(int64(2)), ptr(decimal.Zero), FieldErrors{"amount": "Amount must be positive"}},
		{"negative amount", ptr(int64(1)), ptr(int64(2)), ptr(decimal.NewFromInt(-5)), FieldErrors{"amount": "Amount must be positive"}},
		{"trailing zeros beyond cents", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("59.980")), nil},
		{"sub-cent amount", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("0.001")), FieldErrors{"amount": "Amount must have at most 2 decimal places"}},
		{"three decimal places", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("1.005")), FieldErrors{"amount": "Amount must have at most 2 decimal places"}},
		{"largest storable amount", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("99999999999999999.99")), nil},
		{"too large", ptr(int64(1)), ptr(int64(2)), ptr(decimal.RequireFromString("100000000000000000")), FieldErrors{"amount": "Amount is too large"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := NewProcessPaymentCommand(tt.orderID, tt.userID, tt.amount, "  Visa  ")
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, int64(1), cmd.OrderID)
				assert.Equal(t, int64(2), cmd.UserID)
				assert.Equal(t, "  Visa  ", cmd.PaymentMethod)
				return
			}
			var fieldErrs FieldErrors
			require.True(t, errors.As(err, &fieldErrs))
			assert.Equal(t, tt.want, fieldErrs)
		})
	}
}

func TestNewRefundPaymentCommand(t *testing.T) {
	_, err := NewRefundPaymentCommand(nil, "")
	assert.EqualError(t, err, "validation failed: paymentId: Payment ID is required")

	cmd, err := NewRefundPaymentCommand(ptr(int64(3)), "Customer requested")
	require.NoError(t, err)
	assert.Equal(t, RefundPaymentCommand{PaymentID: 3, Reason: "Customer requested"}, cmd)
}

func TestNewProcessPaymentCommand_BlankMethodUsesDefault(t *testing.T) {
	cmd, err := NewProcessPaymentCommand(ptr(int64(1)), ptr(int64(2)), ptr(decimal.NewFromInt(5)), "   ")
	require.NoError(t, err)
	assert.Empty(t, cmd.PaymentMethod)
}

func TestNewRefundPaymentCommand_KeepsReasonVerbatim(t *testing.T) {
	cmd, err := NewRefundPaymentCommand(ptr(int64(3)), "  late delivery ")
	require.NoError(t, err)
	assert.Equal(t, "  late delivery ", cmd.Reason)
}
