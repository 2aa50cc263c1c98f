package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-service/internal/domain"
	outbox_postgres "payment-service/internal/repository/outbox_repo/postgres"
)

const eventsTopic = "payment_status_updates"

var (
	createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	columns   = []string{"id", "order_id", "user_id", "amount", "payment_method", "status", "transaction_id", "created_at"}
)

// eventStatus matches an outbox payload carrying the given payment status.
type eventStatus domain.PaymentStatus

func (e eventStatus) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var evt domain.PaymentStatusChangedEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return false
	}
	return evt.Status == domain.PaymentStatus(e)
}

func newMockRepo(t *testing.T, withOutbox bool) (*PaymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var writer OutboxWriter
	if withOutbox {
		writer = outbox_postgres.NewOutboxRepository()
	}
	return NewPaymentRepository(db, writer, eventsTopic), mock
}

func expectOutboxInsert(mock sqlmock.Sqlmock, paymentID string, status domain.PaymentStatus) *sqlmock.ExpectedExec {
	return mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs(sqlmock.AnyArg(), paymentID, domain.AggregateTypePayment, domain.MessageTypePaymentStatusChange,
			eventsTopic, paymentID, eventStatus(status), string(domain.OutboxStatusPending), sqlmock.AnyArg())
}

func paymentRow(id int64, status domain.PaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(id, int64(10), int64(20), "59.98", "MOCK_CARD", string(status), "txn-1", createdAt)
}

func TestPaymentRepository_SaveInsertsPendingPayment(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	payment := domain.NewPayment(10, 20, decimal.RequireFromString("59.98"), "", "txn-1", createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(int64(10), int64(20), "59.98", "MOCK_CARD", "PENDING", "txn-1", createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	expectOutboxInsert(mock, "5", domain.PaymentStatusPending).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), payment)
	require.NoError(t, err)

	assert.Equal(t, int64(5), saved.ID)
	assert.Equal(t, int64(0), payment.ID, "input payment must not be mutated")
	assert.Equal(t, domain.PaymentStatusPending, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_SaveUpdatesStatusOnly(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	payment := domain.NewPayment(10, 20, decimal.RequireFromString("59.98"), "", "txn-1", createdAt)
	payment.ID = 5
	payment.Status = domain.PaymentStatusSuccess

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE payments`)).
		WithArgs("SUCCESS", sqlmock.AnyArg(), int64(5)).
		WillReturnRows(paymentRow(5, domain.PaymentStatusSuccess))
	expectOutboxInsert(mock, "5", domain.PaymentStatusSuccess).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), payment)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, saved.Status)
	assert.True(t, saved.Amount.Equal(decimal.RequireFromString("59.98")))
	assert.Equal(t, createdAt, saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_SaveUnknownPayment(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	payment := domain.NewPayment(10, 20, decimal.NewFromInt(1), "", "txn-1", createdAt)
	payment.ID = 99

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), payment)

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_SaveRollsBackWhenOutboxFails(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	payment := domain.NewPayment(10, 20, decimal.NewFromInt(1), "", "txn-1", createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO payments`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO outbox_messages`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), payment)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_SaveWithoutOutbox(t *testing.T) {
	repo, mock := newMockRepo(t, false)
	payment := domain.NewPayment(10, 20, decimal.NewFromInt(1), "CARD", "txn-1", createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO payments`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), payment)
	require.NoError(t, err)

	assert.Equal(t, int64(1), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepo(t, false)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(paymentRow(5, domain.PaymentStatusRefunded))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE id = $1`)).
		WithArgs(int64(6)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection refused"))

	payment, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, "txn-1", payment.TransactionID)

	_, err = repo.FindByID(context.Background(), 6)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = repo.FindByID(context.Background(), 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPaymentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_FindByOrderIDReturnsEarliest(t *testing.T) {
	repo, mock := newMockRepo(t, false)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = $1 ORDER BY id ASC LIMIT 1`)).
		WithArgs(int64(10)).
		WillReturnRows(paymentRow(3, domain.PaymentStatusSuccess))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = $1`)).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(columns))

	payment, err := repo.FindByOrderID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), payment.ID)

	_, err = repo.FindByOrderID(context.Background(), 11)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_FindByUserID(t *testing.T) {
	repo, mock := newMockRepo(t, false)

	rows := sqlmock.NewRows(columns).
		AddRow(int64(1), int64(10), int64(20), "5.00", "MOCK_CARD", "SUCCESS", "txn-1", createdAt).
		AddRow(int64(2), int64(11), int64(20), "7.25", "CARD", "FAILED", "txn-2", createdAt)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 ORDER BY id ASC`)).WithArgs(int64(20)).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 ORDER BY id ASC`)).WithArgs(int64(21)).WillReturnRows(sqlmock.NewRows(columns))

	payments, err := repo.FindByUserID(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(1), payments[0].ID)
	assert.Equal(t, domain.PaymentStatusFailed, payments[1].Status)
	assert.True(t, payments[1].Amount.Equal(decimal.RequireFromString("7.25")))

	empty, err := repo.FindByUserID(context.Background(), 21)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.NoError(t, mock.ExpectationsWereMet())
}
