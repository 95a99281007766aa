package dto

import "github.com/shopspring/decimal"

// --- Payment DTOs ---

// CreatePaymentRequest is the body of POST /api/v1/payments.
// Amount accepts a JSON number or a decimal string.
type CreatePaymentRequest struct {
	OrderID  string          `json:"order_id" binding:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"omitempty,currency_code"`
}

type CheckPaymentRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
}

type PaymentQuoteResponse struct {
	OrderID        string          `json:"order_id"`
	Address        string          `json:"address"`
	Currency       string          `json:"currency"`
	ExpectedAmount string          `json:"expected_amount"`
	AmountBTC      *string         `json:"amount_btc,omitempty"`
	AmountLTC      *string         `json:"amount_ltc,omitempty"`
	AmountEUR      decimal.Decimal `json:"amount_eur"`
	Rate           decimal.Decimal `json:"rate"`
	RateSource     string          `json:"rate_source"`
	Degraded       bool            `json:"degraded"`
	QRURI          string          `json:"qr_uri"`
	ExpiresAt      string          `json:"expires_at"`
}

type CheckPaymentResponse struct {
	OrderID     string  `json:"order_id"`
	Paid        bool    `json:"paid"`
	Status      string  `json:"status"`
	ConfirmedAt *string `json:"confirmed_at,omitempty"`
}

// PaymentStatusResponse is the read-only view of an order's payment.
type PaymentStatusResponse struct {
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status"`
	TotalEUR       decimal.Decimal `json:"total_eur"`
	Currency       *string         `json:"currency,omitempty"`
	Address        *string         `json:"address,omitempty"`
	ExpectedAmount *string         `json:"expected_amount,omitempty"`
	BoundAt        *string         `json:"bound_at,omitempty"`
	ConfirmedAt    *string         `json:"confirmed_at,omitempty"`
}

type SweepResponse struct {
	ConfirmedCount int    `json:"confirmed_count"`
	TotalChecked   int    `json:"total_checked"`
	Failed         int    `json:"failed"`
	Skipped        int    `json:"skipped"`
	SkippedReason  string `json:"skipped_reason,omitempty"`
	Message        string `json:"message"`
}

// --- Legacy storefront DTOs ---

const (
	ActionCreatePayment = "create-payment"
	ActionCheckPayment  = "check-payment"
)

// LegacyPaymentRequest is the single-endpoint body used by the storefront checkout.
type LegacyPaymentRequest struct {
	Action   string          `json:"action" binding:"required,oneof=create-payment check-payment"`
	OrderID  string          `json:"orderId" binding:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"omitempty,currency_code"`
}

type LegacyCreateResponse struct {
	Address   string          `json:"address"`
	AmountBTC *string         `json:"amount_btc,omitempty"`
	AmountLTC *string         `json:"amount_ltc,omitempty"`
	AmountEUR decimal.Decimal `json:"amount_eur"`
	QRURL     string          `json:"qr_url"`
}

type LegacyCheckResponse struct {
	Paid bool `json:"paid"`
}

type LegacyErrorResponse struct {
	Error string `json:"error"`
}
