package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSourceStaticDefault marks a quote that came from the hardcoded last-resort price.
const RateSourceStaticDefault = "static_default"

// RateQuote is a point-in-time fiat price for one unit of a cryptocurrency. Never persisted.
type RateQuote struct {
	Currency  Currency        `json:"currency"`
	Fiat      string          `json:"fiat"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Degraded reports whether the quote is the static fallback rather than a market price.
func (q RateQuote) Degraded() bool {
	return q.Source == RateSourceStaticDefault
}
