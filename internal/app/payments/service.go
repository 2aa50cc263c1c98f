package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"payment-service/internal/domain"
)

const (
	MessageProcessSucceeded = "Payment processed successfully"
	MessageProcessFailed    = "Payment processing failed"
	MessageRetrieved        = "Payment retrieved successfully"
	MessageRefunded         = "Payment refunded successfully"

	opProcess      = "process"
	opGetByID      = "get_by_id"
	opGetByOrderID = "get_by_order_id"
	opGetByUserID  = "get_by_user_id"
	opRefund       = "refund"

	tracerName = "payment-service/payments"
)

type ProcessPaymentCommand struct {
	OrderID       int64
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod string
}

type RefundPaymentCommand struct {
	PaymentID int64
	Reason    string
}

// PaymentResult is a payment projection annotated with a human-readable message.
type PaymentResult struct {
	Payment *domain.Payment
	Message string
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (*PaymentResult, error)
	GetPaymentByID(ctx context.Context, id int64) (*PaymentResult, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*PaymentResult, error)
	GetPaymentsByUserID(ctx context.Context, userID int64) ([]PaymentResult, error)
	RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (*PaymentResult, error)
}

type Option func(*paymentService)

func WithClock(now func() time.Time) Option {
	return func(s *paymentService) { s.now = now }
}

func WithTransactionIDGenerator(gen func() string) Option {
	return func(s *paymentService) { s.newTransactionID = gen }
}

func WithMetrics(m Metrics) Option {
	return func(s *paymentService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *paymentService) {
		if t != nil {
			s.tracer = t
		}
	}
}

type paymentService struct {
	store            PaymentStore
	resolver         OutcomeResolver
	now              func() time.Time
	newTransactionID func() string
	metrics          Metrics
	tracer           trace.Tracer
	logger           *zap.Logger
}

func NewPaymentService(store PaymentStore, resolver OutcomeResolver, logger *zap.Logger, opts ...Option) PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &paymentService{
		store:            store,
		resolver:         resolver,
		now:              time.Now,
		newTransactionID: uuid.NewString,
		metrics:          nopMetrics{},
		tracer:           otel.Tracer(tracerName),
		logger:           logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment stores a PENDING payment, resolves its outcome and stores the result.
// Both writes are kept so the PENDING window is visible to store-level event hooks.
func (s *paymentService) ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (_ *PaymentResult, err error) {
	ctx, finish := s.startOperation(ctx, opProcess,
		attribute.Int64("order.id", cmd.OrderID),
		attribute.Int64("user.id", cmd.UserID),
	)
	defer func() { finish(err) }()

	payment := domain.NewPayment(cmd.OrderID, cmd.UserID, cmd.Amount, cmd.PaymentMethod, s.newTransactionID(), s.now())

	payment, err = s.store.Save(ctx, payment)
	if err != nil {
		s.logger.Error("Failed to create pending payment", zap.Int64("order_id", cmd.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to create payment for order %d: %w", cmd.OrderID, err)
	}
	s.logger.Debug("Pending payment created",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("transaction_id", payment.TransactionID),
	)

	if err = payment.Resolve(s.resolver.Resolve(ctx, payment)); err != nil {
		s.logger.Error("Payment outcome rejected by state machine", zap.Int64("payment_id", payment.ID), zap.Error(err))
		return nil, err
	}

	payment, err = s.store.Save(ctx, payment)
	if err != nil {
		s.logger.Error("Failed to store payment outcome", zap.Int64("order_id", cmd.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to update payment status for order %d: %w", cmd.OrderID, err)
	}
	s.metrics.PaymentProcessed(payment.Status)

	message := MessageProcessFailed
	if payment.Status == domain.PaymentStatusSuccess {
		message = MessageProcessSucceeded
	}
	s.logger.Info("Payment processed",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.Int64("user_id", payment.UserID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(payment.Status)),
	)
	return &PaymentResult{Payment: payment, Message: message}, nil
}

func (s *paymentService) GetPaymentByID(ctx context.Context, id int64) (_ *PaymentResult, err error) {
	ctx, finish := s.startOperation(ctx, opGetByID, attribute.Int64("payment.id", id))
	defer func() { finish(err) }()

	payment, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Message: MessageRetrieved}, nil
}

func (s *paymentService) GetPaymentByOrderID(ctx context.Context, orderID int64) (_ *PaymentResult, err error) {
	ctx, finish := s.startOperation(ctx, opGetByOrderID, attribute.Int64("order.id", orderID))
	defer func() { finish(err) }()

	payment, err := s.store.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.NotFoundf("Payment not found for order id: %d", orderID)
		}
		return nil, fmt.Errorf("failed to get payment for order %d: %w", orderID, err)
	}
	return &PaymentResult{Payment: payment, Message: MessageRetrieved}, nil
}

func (s *paymentService) GetPaymentsByUserID(ctx context.Context, userID int64) (_ []PaymentResult, err error) {
	ctx, finish := s.startOperation(ctx, opGetByUserID, attribute.Int64("user.id", userID))
	defer func() { finish(err) }()

	found, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for user %d: %w", userID, err)
	}
	results := make([]PaymentResult, 0, len(found))
	for _, p := range found {
		results = append(results, PaymentResult{Payment: p, Message: MessageRetrieved})
	}
	return results, nil
}

// RefundPayment moves a SUCCESS payment to REFUNDED. The status check and the write
// are not atomic; two concurrent refunds of the same payment can both pass the check.
func (s *paymentService) RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (_ *PaymentResult, err error) {
	ctx, finish := s.startOperation(ctx, opRefund, attribute.Int64("payment.id", cmd.PaymentID))
	defer func() { finish(err) }()

	payment, err := s.findByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	if err = payment.Refund(); err != nil {
		s.metrics.RefundAttempted("rejected")
		s.logger.Warn("Refund rejected",
			zap.Int64("payment_id", payment.ID),
			zap.String("status", string(payment.Status)),
			zap.Error(err),
		)
		return nil, err
	}

	payment, err = s.store.Save(ctx, payment)
	if err != nil {
		s.metrics.RefundAttempted("error")
		s.logger.Error("Failed to store refund", zap.Int64("payment_id", cmd.PaymentID), zap.Error(err))
		return nil, fmt.Errorf("failed to refund payment %d: %w", cmd.PaymentID, err)
	}
	s.metrics.RefundAttempted("refunded")

	message := MessageRefunded
	if strings.TrimSpace(cmd.Reason) != "" {
		message += ". Reason: " + cmd.Reason
	}
	s.logger.Info("Payment refunded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("reason", cmd.Reason),
	)
	return &PaymentResult{Payment: payment, Message: message}, nil
}

func (s *paymentService) findByID(ctx context.Context, id int64) (*domain.Payment, error) {
	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.NotFoundf("Payment not found with id: %d", id)
		}
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return payment, nil
}

func (s *paymentService) startOperation(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "PaymentService."+op, trace.WithAttributes(attrs...))
	start := s.now()

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.metrics.ObserveOperation(op, outcome, s.now().Sub(start))
	}
}
