package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is a supported cryptocurrency kind.
type Currency string

const (
	CurrencyBitcoin  Currency = "bitcoin"
	CurrencyLitecoin Currency = "litecoin"
)

// FiatCurrency is the ISO code every order total is denominated in.
const FiatCurrency = "EUR"

// minorUnitsPerCoin is the satoshi/litoshi count per major unit. Both chains use 8 decimals.
const minorUnitsPerCoin = 8

// SupportedCurrencies lists every currency the subsystem can quote and check.
func SupportedCurrencies() []Currency {
	return []Currency{CurrencyBitcoin, CurrencyLitecoin}
}

// ParseCurrency maps user input ("bitcoin", "BTC", "ltc"...) to a Currency.
// An empty string defaults to bitcoin.
func ParseCurrency(s string) (Currency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bitcoin", "btc":
		return CurrencyBitcoin, true
	case "litecoin", "ltc":
		return CurrencyLitecoin, true
	default:
		return "", false
	}
}

// Valid reports whether c is one of the supported kinds.
func (c Currency) Valid() bool {
	return c == CurrencyBitcoin || c == CurrencyLitecoin
}

// Ticker returns the exchange ticker symbol (BTC, LTC).
func (c Currency) Ticker() string {
	switch c {
	case CurrencyBitcoin:
		return "BTC"
	case CurrencyLitecoin:
		return "LTC"
	default:
		return strings.ToUpper(string(c))
	}
}

// URIScheme returns the BIP21-style scheme used by wallet apps.
func (c Currency) URIScheme() string {
	return string(c)
}

// Decimals is the number of fractional digits of the major unit.
func (c Currency) Decimals() int32 {
	return minorUnitsPerCoin
}

// ToMinorUnits converts a major-unit amount to integer minor units, truncating sub-minor dust.
func (c Currency) ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(c.Decimals()).Truncate(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func (c Currency) FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -c.Decimals())
}
