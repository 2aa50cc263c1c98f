package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-service/internal/domain"
)

var outboxColumns = []string{"id", "aggregate_id", "aggregate_type", "message_type", "topic", "key_value", "payload", "status", "created_at", "sent_at"}

func newMockDB(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock, domain.Querier) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewOutboxRepository()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	return repo, mock, db
}

func TestOutboxRepository_CreateMessageTx(t *testing.T) {
	repo, mock, db := newMockDB(t)
	createdAt := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	msg := &domain.OutboxMessage{
		ID:            "msg-1",
		AggregateID:   "5",
		AggregateType: domain.AggregateTypePayment,
		MessageType:   domain.MessageTypePaymentStatusChange,
		Topic:         "payment_status_updates",
		Key:           "5",
		Payload:       []byte(`{"status":"SUCCESS"}`),
		Status:        domain.OutboxStatusPending,
		CreatedAt:     createdAt,
	}

	mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs("msg-1", "5", "payment", "payment.status_changed", "payment_status_updates", "5",
			[]byte(`{"status":"SUCCESS"}`), "PENDING", createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateMessageTx(context.Background(), db, msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_GetPendingMessages(t *testing.T) {
	repo, mock, db := newMockDB(t)
	createdAt := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(outboxColumns).
		AddRow("msg-1", "5", "payment", "payment.status_changed", "payment_status_updates", "5", []byte(`{}`), "PENDING", createdAt, nil).
		AddRow("msg-2", "6", "payment", "payment.status_changed", "", "6", []byte(`{}`), "PENDING", createdAt, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs("PENDING", 10).
		WillReturnRows(rows)

	messages, err := repo.GetPendingMessages(context.Background(), db, 10)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, domain.OutboxStatusPending, messages[0].Status)
	assert.Nil(t, messages[0].SentAt)
	assert.Equal(t, "", messages[1].Topic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkMessagesAsSent(t *testing.T) {
	repo, mock, db := newMockDB(t)
	ids := []string{"msg-1", "msg-2"}

	mock.ExpectExec(`UPDATE outbox_messages`).
		WithArgs("SENT", repo.now(), pq.Array(ids)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.MarkMessagesAsSent(context.Background(), db, ids))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkMessagesAsSentPartialUpdate(t *testing.T) {
	repo, mock, db := newMockDB(t)

	mock.ExpectExec(`UPDATE outbox_messages`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkMessagesAsSent(context.Background(), db, []string{"msg-1", "msg-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2, got 1")
}

func TestOutboxRepository_MarkMessagesAsFailed(t *testing.T) {
	repo, mock, db := newMockDB(t)

	mock.ExpectExec(`UPDATE outbox_messages`).
		WithArgs("FAILED", pq.Array([]string{"msg-3"})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkMessagesAsFailed(context.Background(), db, []string{"msg-3"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkNothing(t *testing.T) {
	repo, mock, db := newMockDB(t)

	require.NoError(t, repo.MarkMessagesAsSent(context.Background(), db, nil))
	require.NoError(t, repo.MarkMessagesAsFailed(context.Background(), db, []string{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
