package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/domain"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type ProcessPaymentRequest struct {
	OrderID       *int64           `json:"orderId"`
	UserID        *int64           `json:"userId"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod string           `json:"paymentMethod"`
}

type RefundPaymentRequest struct {
	PaymentID *int64 `json:"paymentId"`
	Reason    string `json:"reason"`
}

type PaymentResponse struct {
	ID            int64       `json:"id"`
	OrderID       int64       `json:"orderId"`
	UserID        int64       `json:"userId"`
	Amount        json.Number `json:"amount"`
	Status        string      `json:"status"`
	TransactionID string      `json:"transactionId"`
	Message       string      `json:"message"`
	CreatedAt     string      `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    int               `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func newPaymentResponse(res payments.PaymentResult) PaymentResponse {
	p := res.Payment
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        json.Number(p.Amount.String()),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		Message:       res.Message,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *PaymentHandler) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for ProcessPayment", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	cmd, err := payments.NewProcessPaymentCommand(req.OrderID, req.UserID, req.Amount, req.PaymentMethod)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.ProcessPayment(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newPaymentResponse(*res))
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "Invalid payment ID format")
	if !ok {
		return
	}

	res, err := h.service.GetPaymentByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPaymentResponse(*res))
}

func (h *PaymentHandler) GetPaymentByOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "orderId", "Invalid order ID format")
	if !ok {
		return
	}

	res, err := h.service.GetPaymentByOrderID(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPaymentResponse(*res))
}

func (h *PaymentHandler) GetPaymentsByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId", "Invalid user ID format")
	if !ok {
		return
	}

	results, err := h.service.GetPaymentsByUserID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]PaymentResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, newPaymentResponse(res))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) RefundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for RefundPayment", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	cmd, err := payments.NewRefundPaymentCommand(req.PaymentID, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.RefundPayment(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newPaymentResponse(*res))
}

func (h *PaymentHandler) pathID(w http.ResponseWriter, r *http.Request, param, invalidMsg string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.logger.Debug("Invalid path parameter", zap.String("param", param), zap.String("value", raw))
		h.writeError(w, http.StatusBadRequest, invalidMsg, nil)
		return 0, false
	}
	return id, true
}

func (h *PaymentHandler) writeServiceError(w http.ResponseWriter, err error) {
	var fieldErrs payments.FieldErrors

	switch {
	case errors.As(err, &fieldErrs):
		h.writeError(w, http.StatusBadRequest, "Validation failed", fieldErrs)
	case errors.Is(err, domain.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, messageOf(err), nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusBadRequest, messageOf(err), nil)
	default:
		h.logger.Error("Unexpected error while handling payment request", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func messageOf(err error) string {
	var target *domain.Error
	if errors.As(err, &target) {
		return target.Message
	}
	return err.Error()
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: status, Details: details})
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
