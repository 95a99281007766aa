// Package pricefeed implements ports.RateSource against public EUR price APIs.
package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/shopspring/decimal"
)

// CoinGecko quotes both bitcoin and litecoin via /simple/price.
type CoinGecko struct {
	baseURL string
	client  httpjson.HTTPClient
}

func NewCoinGecko(baseURL string, client httpjson.HTTPClient) *CoinGecko {
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// FetchRate returns the EUR price of one coin.
func (c *CoinGecko) FetchRate(ctx context.Context, currency domain.Currency) (decimal.Decimal, error) {
	fiat := strings.ToLower(domain.FiatCurrency)
	q := url.Values{}
	q.Set("ids", string(currency))
	q.Set("vs_currencies", fiat)
	endpoint := c.baseURL + "/simple/price?" + q.Encode()

	// {"bitcoin":{"eur":91234.5}}
	var body map[string]map[string]decimal.Decimal
	if err := httpjson.Get(ctx, c.client, endpoint, &body); err != nil {
		return decimal.Zero, err
	}

	price, ok := body[string(currency)][fiat]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: coingecko: no %s/%s price", ports.ErrSourceResponse, currency, fiat)
	}
	return validPrice(c.Name(), price)
}

func validPrice(source string, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive price %s", ports.ErrSourceResponse, source, price)
	}
	return price, nil
}
