package handler

import (
	"time"

	"amethyst-storefront/internal/adapter/http/dto"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"
	"amethyst-storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles the crypto payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
	reconSvc   ports.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService, reconSvc ports.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, reconSvc: reconSvc}
}

// CreatePayment handles POST /api/v1/payments.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.paymentSvc.CreatePayment(c.Request.Context(), ports.CreatePaymentRequest{
		OrderID:    orderID,
		FiatAmount: req.Amount,
		Currency:   parseCurrency(req.Currency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toQuoteResponse(quote))
}

// CheckPayment handles POST /api/v1/payments/check.
func (h *PaymentHandler) CheckPayment(c *gin.Context) {
	var req dto.CheckPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.reconSvc.CheckPayment(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CheckPaymentResponse{
		OrderID:     result.OrderID.String(),
		Paid:        result.Paid,
		Status:      string(result.Status),
		ConfirmedAt: formatTime(result.ConfirmedAt),
	})
}

// GetPayment handles GET /api/v1/payments/:order_id. It never calls an explorer.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("order_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.paymentSvc.GetPayment(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toStatusResponse(order))
}

// Sweep handles POST /api/v1/payments/sweep.
func (h *PaymentHandler) Sweep(c *gin.Context) {
	result, err := h.reconSvc.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SweepResponse{
		ConfirmedCount: result.ConfirmedCount,
		TotalChecked:   result.TotalChecked,
		Failed:         result.Failed,
		Skipped:        result.Skipped,
		SkippedReason:  result.SkippedReason,
		Message:        result.Summary(),
	})
}

func parseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("order_id must be a UUID")
	}
	return id, nil
}

// parseCurrency maps request input to a Currency. Unknown names are passed
// through untouched so the service reports them as unsupported.
func parseCurrency(raw string) domain.Currency {
	if c, ok := domain.ParseCurrency(raw); ok {
		return c
	}
	return domain.Currency(raw)
}

func toQuoteResponse(q *ports.PaymentQuote) dto.PaymentQuoteResponse {
	expected := q.ExpectedAmount.StringFixed(q.Currency.Decimals())
	resp := dto.PaymentQuoteResponse{
		OrderID:        q.OrderID.String(),
		Address:        q.Address,
		Currency:       string(q.Currency),
		ExpectedAmount: expected,
		AmountEUR:      q.FiatAmount,
		Rate:           q.Rate.Price,
		RateSource:     q.Rate.Source,
		Degraded:       q.Rate.Degraded(),
		QRURI:          q.PaymentURI,
		ExpiresAt:      q.ExpiresAt.UTC().Format(time.RFC3339),
	}
	switch q.Currency {
	case domain.CurrencyBitcoin:
		resp.AmountBTC = &expected
	case domain.CurrencyLitecoin:
		resp.AmountLTC = &expected
	}
	return resp
}

func toStatusResponse(o *domain.Order) dto.PaymentStatusResponse {
	resp := dto.PaymentStatusResponse{
		OrderID:     o.ID.String(),
		Status:      string(o.Status),
		TotalEUR:    o.TotalEUR,
		ConfirmedAt: formatTime(o.ConfirmedAt),
	}
	if b := o.Binding; b != nil {
		currency := string(b.Currency)
		address := b.Address
		expected := b.ExpectedAmount.StringFixed(b.Currency.Decimals())
		resp.Currency = &currency
		resp.Address = &address
		resp.ExpectedAmount = &expected
		resp.BoundAt = formatTime(&b.CreatedAt)
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
