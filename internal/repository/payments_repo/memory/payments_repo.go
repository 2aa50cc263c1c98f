package memory

import (
	"context"
	"sort"
	"sync"

	"payment-service/internal/domain"
	"payment-service/internal/repository/payments_repo"
)

// PaymentRepository keeps payments in process memory. It is used for local runs and tests.
var _ payments_repo.PaymentRepository = (*PaymentRepository)(nil)

type PaymentRepository struct {
	mu       sync.RWMutex
	lastID   int64
	payments map[int64]*domain.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[int64]*domain.Payment)}
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID == 0 {
		r.lastID++
		stored := payment.Clone()
		stored.ID = r.lastID
		r.payments[stored.ID] = stored
		return stored.Clone(), nil
	}

	stored, ok := r.payments[payment.ID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	stored.Status = payment.Status
	return stored.Clone(), nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	found, err := r.filter(ctx, func(p *domain.Payment) bool { return p.OrderID == orderID })
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return found[0], nil
}

func (r *PaymentRepository) FindByUserID(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	return r.filter(ctx, func(p *domain.Payment) bool { return p.UserID == userID })
}

// filter returns copies of matching payments in id order.
func (r *PaymentRepository) filter(ctx context.Context, match func(*domain.Payment) bool) ([]*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Payment, 0)
	for _, p := range r.payments {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
