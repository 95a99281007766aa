package handler

import (
	"errors"
	"net/http"

	"amethyst-storefront/internal/adapter/http/dto"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// LegacyHandler serves the single action-dispatch endpoint the storefront
// checkout was built against. Bodies are flat, without the response envelope.
type LegacyHandler struct {
	paymentSvc ports.PaymentService
	reconSvc   ports.ReconciliationService
}

func NewLegacyHandler(paymentSvc ports.PaymentService, reconSvc ports.ReconciliationService) *LegacyHandler {
	return &LegacyHandler{paymentSvc: paymentSvc, reconSvc: reconSvc}
}

// Dispatch handles POST /api/v1/crypto-payment.
func (h *LegacyHandler) Dispatch(c *gin.Context) {
	var req dto.LegacyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		legacyError(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		legacyError(c, err)
		return
	}

	switch req.Action {
	case dto.ActionCreatePayment:
		quote, err := h.paymentSvc.CreatePayment(c.Request.Context(), ports.CreatePaymentRequest{
			OrderID:    orderID,
			FiatAmount: req.Amount,
			Currency:   parseCurrency(req.Currency),
		})
		if err != nil {
			legacyError(c, err)
			return
		}
		expected := quote.ExpectedAmount.StringFixed(quote.Currency.Decimals())
		resp := dto.LegacyCreateResponse{
			Address:   quote.Address,
			AmountEUR: quote.FiatAmount,
			QRURL:     quote.PaymentURI,
		}
		if quote.Currency == domain.CurrencyLitecoin {
			resp.AmountLTC = &expected
		} else {
			resp.AmountBTC = &expected
		}
		c.JSON(http.StatusOK, resp)

	case dto.ActionCheckPayment:
		result, err := h.reconSvc.CheckPayment(c.Request.Context(), orderID)
		if err != nil {
			legacyError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.LegacyCheckResponse{Paid: result.Paid})

	default:
		legacyError(c, apperror.Validation("Invalid action"))
	}
}

func legacyError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, dto.LegacyErrorResponse{Error: appErr.Message})
		return
	}
	c.Error(err) //nolint:errcheck
	c.JSON(http.StatusInternalServerError, dto.LegacyErrorResponse{Error: "Internal server error"})
}
