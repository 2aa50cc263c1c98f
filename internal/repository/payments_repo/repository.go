package payments_repo

import (
	"context"

	"payment-service/internal/domain"
)

// PaymentRepository is implemented by the postgres and memory stores.
type PaymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	FindByID(ctx context.Context, id int64) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID int64) ([]*domain.Payment, error)
}
