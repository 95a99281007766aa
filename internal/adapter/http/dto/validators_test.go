package dto

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreatePaymentRequest{
		OrderID:  "  6f1c2d3e-0000-4000-8000-000000000001  ",
		Currency: " litecoin ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "6f1c2d3e-0000-4000-8000-000000000001", req.OrderID)
	assert.Equal(t, "litecoin", req.Currency)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := LegacyPaymentRequest{Action: "<script>create-payment</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Action, "&lt;script&gt;")
	assert.NotContains(t, req.Action, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	addr := "  bc1qxyz  "
	resp := PaymentStatusResponse{Address: &addr}
	SanitizeStruct(&resp)

	assert.Equal(t, "bc1qxyz", *resp.Address)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	resp := PaymentStatusResponse{OrderID: "x"}
	SanitizeStruct(&resp)
	assert.Nil(t, resp.Address)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestCurrencyCode_Valid(t *testing.T) {
	cases := []string{"bitcoin", "BTC", "ltc", "Litecoin", "dogecoin"}
	for _, tc := range cases {
		assert.True(t, currencyCodeRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestCurrencyCode_Invalid(t *testing.T) {
	cases := []string{
		"b",             // too short
		"btc ",          // space
		"<b>btc</b>",    // markup
		"bitcoin;DROP",  // semicolon
		"ethereum-2024", // digits and dash
		"",
	}
	for _, tc := range cases {
		assert.False(t, currencyCodeRe.MatchString(tc), "expected invalid: %q", tc)
	}
}

func TestCreatePaymentRequest_Binding(t *testing.T) {
	valid := CreatePaymentRequest{
		OrderID:  "6f1c2d3e-0000-4000-8000-000000000001",
		Amount:   decimal.RequireFromString("49.90"),
		Currency: "ltc",
	}
	assert.NoError(t, binding.Validator.ValidateStruct(valid))

	noCurrency := valid
	noCurrency.Currency = ""
	assert.NoError(t, binding.Validator.ValidateStruct(noCurrency))

	badID := valid
	badID.OrderID = "order-1"
	assert.Error(t, binding.Validator.ValidateStruct(badID))

	badCurrency := valid
	badCurrency.Currency = "btc$"
	assert.Error(t, binding.Validator.ValidateStruct(badCurrency))
}

func TestLegacyPaymentRequest_Binding(t *testing.T) {
	req := LegacyPaymentRequest{Action: ActionCheckPayment, OrderID: "6f1c2d3e-0000-4000-8000-000000000001"}
	assert.NoError(t, binding.Validator.ValidateStruct(req))

	req.Action = "refund"
	assert.Error(t, binding.Validator.ValidateStruct(req))
}

func TestCreatePaymentRequest_AmountAcceptsNumberAndString(t *testing.T) {
	var fromNumber, fromString CreatePaymentRequest
	require.NoError(t, json.Unmarshal([]byte(`{"order_id":"x","amount":45.5}`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`{"order_id":"x","amount":"45.50"}`), &fromString))

	assert.True(t, fromNumber.Amount.Equal(decimal.RequireFromString("45.5")))
	assert.True(t, fromNumber.Amount.Equal(fromString.Amount))
}
