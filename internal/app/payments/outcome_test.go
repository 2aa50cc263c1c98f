package payments

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"payment-service/internal/domain"
)

func TestRandomOutcomeResolver_Extremes(t *testing.T) {
	always := NewRandomOutcomeResolver(rand.New(rand.NewSource(1)), 1)
	never := NewRandomOutcomeResolver(rand.New(rand.NewSource(1)), 0)

	for i := 0; i < 1000; i++ {
		assert.Equal(t, domain.PaymentStatusSuccess, always.Resolve(context.Background(), nil))
		assert.Equal(t, domain.PaymentStatusFailed, never.Resolve(context.Background(), nil))
	}
}

func TestRandomOutcomeResolver_ClampsRate(t *testing.T) {
	assert.Equal(t, 1.0, NewRandomOutcomeResolver(rand.New(rand.NewSource(1)), 3).SuccessRate())
	assert.Equal(t, 0.0, NewRandomOutcomeResolver(rand.New(rand.NewSource(1)), -1).SuccessRate())
}

func TestRandomOutcomeResolver_SameSeedSameSequence(t *testing.T) {
	a := NewRandomOutcomeResolver(rand.New(rand.NewSource(99)), 0.5)
	b := NewRandomOutcomeResolver(rand.New(rand.NewSource(99)), 0.5)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Resolve(context.Background(), nil), b.Resolve(context.Background(), nil))
	}
}

func TestFixedOutcomeResolver(t *testing.T) {
	r := FixedOutcomeResolver(domain.PaymentStatusFailed)
	assert.Equal(t, domain.PaymentStatusFailed, r.Resolve(context.Background(), nil))
}
