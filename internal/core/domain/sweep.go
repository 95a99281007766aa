package domain

import "fmt"

// SweepResult aggregates one batch reconciliation pass.
type SweepResult struct {
	TotalChecked   int    `json:"total_checked"`
	ConfirmedCount int    `json:"confirmed_count"`
	Failed         int    `json:"failed"`
	Skipped        int    `json:"skipped"`
	SkippedReason  string `json:"skipped_reason,omitempty"`
}

// Summary is the human readable outcome line.
func (r SweepResult) Summary() string {
	if r.SkippedReason != "" {
		return fmt.Sprintf("Crypto monitor skipped: %s.", r.SkippedReason)
	}
	if r.TotalChecked == 0 {
		return "No pending orders to check"
	}
	return fmt.Sprintf("Crypto monitor completed. Confirmed %d orders out of %d pending orders.",
		r.ConfirmedCount, r.TotalChecked)
}
