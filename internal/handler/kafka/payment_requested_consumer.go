package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/domain"
	kafka_infra "payment-service/internal/infrastructure/kafka"
)

// PaymentRequestedMessageHandler processes PaymentRequestedEvent messages.
// Malformed or invalid messages are dropped; engine failures leave the offset uncommitted.
func PaymentRequestedMessageHandler(paymentService payments.PaymentService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		logger.Info("Received Kafka message for payment processing",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		var evt domain.PaymentRequestedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to PaymentRequestedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		cmd, err := payments.NewProcessPaymentCommand(evt.OrderID, evt.UserID, evt.Amount, evt.PaymentMethod)
		if err != nil {
			logger.Warn("Dropping invalid PaymentRequestedEvent", zap.Error(err), zap.Int64("offset", msg.Offset))
			return nil
		}

		existing, err := paymentService.GetPaymentByOrderID(ctx, cmd.OrderID)
		switch {
		case err == nil:
			logger.Info("Payment already exists for order, skipping",
				zap.Int64("order_id", cmd.OrderID),
				zap.Int64("payment_id", existing.Payment.ID),
				zap.String("status", string(existing.Payment.Status)),
			)
			return nil
		case !errors.Is(err, domain.ErrPaymentNotFound):
			return fmt.Errorf("failed to check existing payment for order %d: %w", cmd.OrderID, err)
		}

		res, err := paymentService.ProcessPayment(ctx, cmd)
		if err != nil {
			logger.Error("Failed to process payment request",
				zap.Int64("order_id", cmd.OrderID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to process payment request for order %d: %w", cmd.OrderID, err)
		}

		logger.Info("Successfully processed payment request",
			zap.Int64("order_id", cmd.OrderID),
			zap.Int64("payment_id", res.Payment.ID),
			zap.String("status", string(res.Payment.Status)),
		)
		return nil
	}
}
