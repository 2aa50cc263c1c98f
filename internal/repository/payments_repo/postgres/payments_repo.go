package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"payment-service/internal/domain"
	"payment-service/internal/repository/payments_repo"
)

const paymentColumns = `id, order_id, user_id, amount, payment_method, status, transaction_id, created_at`

// OutboxWriter records a message in the same transaction as the payment write.
type OutboxWriter interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
}

var _ payments_repo.PaymentRepository = (*PaymentRepository)(nil)

type PaymentRepository struct {
	db     *sql.DB
	outbox OutboxWriter
	topic  string
	now    func() time.Time
}

// NewPaymentRepository returns a postgres store. When outbox is nil no status events are recorded.
func NewPaymentRepository(db *sql.DB, outbox OutboxWriter, topic string) *PaymentRepository {
	return &PaymentRepository{db: db, outbox: outbox, topic: topic, now: time.Now}
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var saved *domain.Payment
	if payment.ID == 0 {
		saved, err = r.insertTx(ctx, tx, payment)
	} else {
		saved, err = r.updateStatusTx(ctx, tx, payment)
	}
	if err == nil {
		err = r.recordStatusChangeTx(ctx, tx, saved)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, fmt.Errorf("rollback failed after %v: %w", err, rbErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment write: %w", err)
	}
	return saved, nil
}

func (r *PaymentRepository) insertTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (order_id, user_id, amount, payment_method, status, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	saved := payment.Clone()
	err := querier.QueryRowContext(ctx, query,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		payment.PaymentMethod,
		string(payment.Status),
		payment.TransactionID,
		payment.CreatedAt,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment for order %d: %w", payment.OrderID, err)
	}
	return saved, nil
}

// updateStatusTx writes only the status column; the other columns are immutable.
func (r *PaymentRepository) updateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + paymentColumns
	saved, err := scanPayment(querier.QueryRowContext(ctx, query, string(payment.Status), r.now(), payment.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to update payment status %d: %w", payment.ID, err)
	}
	return saved, nil
}

func (r *PaymentRepository) recordStatusChangeTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	if r.outbox == nil {
		return nil
	}
	now := r.now()
	payload, err := json.Marshal(domain.NewPaymentStatusChangedEvent(payment, now))
	if err != nil {
		return fmt.Errorf("failed to encode payment status event: %w", err)
	}
	id := strconv.FormatInt(payment.ID, 10)
	msg := &domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateID:   id,
		AggregateType: domain.AggregateTypePayment,
		MessageType:   domain.MessageTypePaymentStatusChange,
		Topic:         r.topic,
		Key:           id,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}
	if err := r.outbox.CreateMessageTx(ctx, querier, msg); err != nil {
		return fmt.Errorf("failed to record payment status event: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by id %d: %w", id, err)
	}
	return payment, nil
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY id ASC LIMIT 1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by order id %d: %w", orderID, err)
	}
	return payment, nil
}

func (r *PaymentRepository) FindByUserID(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for user %d: %w", userID, err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var status string
	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.PaymentMethod,
		&status,
		&payment.TransactionID,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}
