package domain

// AddressSnapshot is the confirmed inflow to an address derived from one explorer response.
type AddressSnapshot struct {
	Address string `json:"address"`
	// ReceivedMinor counts only confirmed funds inside the attribution window.
	ReceivedMinor int64 `json:"received_minor"`
	// PendingMinor is mempool inflow, reported for logging only.
	PendingMinor int64  `json:"pending_minor"`
	TxCount      int    `json:"tx_count"`
	Explorer     string `json:"explorer"`
}

// DefaultPaymentEpsilon is the absolute shortfall in minor units still accepted as paid.
const DefaultPaymentEpsilon int64 = 1000

// Covers reports whether received funds settle an expected amount: the shortfall
// must be strictly below epsilon. Overpayment always covers.
func Covers(receivedMinor, expectedMinor, epsilon int64) bool {
	if expectedMinor <= 0 {
		return false
	}
	return expectedMinor-receivedMinor < epsilon
}
