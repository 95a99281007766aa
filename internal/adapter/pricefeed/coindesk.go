package pricefeed

import (
	"context"
	"fmt"
	"strings"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/shopspring/decimal"
)

// CoinDesk quotes bitcoin only, from the BPI current price document.
type CoinDesk struct {
	baseURL string
	client  httpjson.HTTPClient
}

func NewCoinDesk(baseURL string, client httpjson.HTTPClient) *CoinDesk {
	return &CoinDesk{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *CoinDesk) Name() string { return "coindesk" }

type bpiResponse struct {
	BPI map[string]struct {
		Rate      string          `json:"rate"`
		RateFloat decimal.Decimal `json:"rate_float"`
	} `json:"bpi"`
}

// FetchRate returns the EUR price of one bitcoin.
func (c *CoinDesk) FetchRate(ctx context.Context, currency domain.Currency) (decimal.Decimal, error) {
	if currency != domain.CurrencyBitcoin {
		return decimal.Zero, fmt.Errorf("%w: coindesk does not quote %s", ports.ErrSourceResponse, currency)
	}

	var body bpiResponse
	endpoint := fmt.Sprintf("%s/bpi/currentprice/%s.json", c.baseURL, domain.FiatCurrency)
	if err := httpjson.Get(ctx, c.client, endpoint, &body); err != nil {
		return decimal.Zero, err
	}

	entry, ok := body.BPI[domain.FiatCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: coindesk: no %s entry", ports.ErrSourceResponse, domain.FiatCurrency)
	}

	// rate is formatted with thousands separators, e.g. "63,021.4512"
	if entry.Rate != "" {
		price, err := decimal.NewFromString(strings.ReplaceAll(entry.Rate, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: coindesk: rate %q: %v", ports.ErrSourceResponse, entry.Rate, err)
		}
		return validPrice(c.Name(), price)
	}
	return validPrice(c.Name(), entry.RateFloat)
}
