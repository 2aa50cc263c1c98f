package payments

import (
	"context"
	"math/rand"
	"sync"

	"payment-service/internal/domain"
)

const DefaultSuccessRate = 0.9

// OutcomeResolver decides whether a pending payment succeeds or fails.
type OutcomeResolver interface {
	Resolve(ctx context.Context, payment *domain.Payment) domain.PaymentStatus
}

// RandomOutcomeResolver mocks an external processor with a weighted coin flip.
type RandomOutcomeResolver struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
}

func NewRandomOutcomeResolver(random *rand.Rand, successRate float64) *RandomOutcomeResolver {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &RandomOutcomeResolver{random: random, successRate: successRate}
}

func (r *RandomOutcomeResolver) Resolve(_ context.Context, _ *domain.Payment) domain.PaymentStatus {
	r.mu.Lock()
	roll := r.random.Float64()
	r.mu.Unlock()

	if roll < r.successRate {
		return domain.PaymentStatusSuccess
	}
	return domain.PaymentStatusFailed
}

func (r *RandomOutcomeResolver) SuccessRate() float64 { return r.successRate }

// FixedOutcomeResolver always returns the same outcome.
type FixedOutcomeResolver domain.PaymentStatus

func (f FixedOutcomeResolver) Resolve(context.Context, *domain.Payment) domain.PaymentStatus {
	return domain.PaymentStatus(f)
}
