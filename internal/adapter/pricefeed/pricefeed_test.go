package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCoinGecko_FetchRate(t *testing.T) {
	tests := []struct {
		name     string
		currency domain.Currency
		body     string
		want     string
	}{
		{"bitcoin", domain.CurrencyBitcoin, `{"bitcoin":{"eur":91234.56}}`, "91234.56"},
		{"litecoin", domain.CurrencyLitecoin, `{"litecoin":{"eur":118.2}}`, "118.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, tt.body, func(r *http.Request) {
				assert.Equal(t, "/simple/price", r.URL.Path)
				assert.Equal(t, string(tt.currency), r.URL.Query().Get("ids"))
				assert.Equal(t, "eur", r.URL.Query().Get("vs_currencies"))
			})

			src := NewCoinGecko(srv.URL+"/", httpjson.NewClient(time.Second))
			price, err := src.FetchRate(context.Background(), tt.currency)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(price), price.String())
			assert.Equal(t, "coingecko", src.Name())
		})
	}
}

func TestCoinGecko_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing coin", http.StatusOK, `{}`},
		{"missing fiat", http.StatusOK, `{"bitcoin":{"usd":1}}`},
		{"zero price", http.StatusOK, `{"bitcoin":{"eur":0}}`},
		{"rate limited", http.StatusTooManyRequests, `{"status":{"error_code":429}}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, nil)
			_, err := NewCoinGecko(srv.URL, httpjson.NewClient(time.Second)).FetchRate(context.Background(), domain.CurrencyBitcoin)
			assert.ErrorIs(t, err, ports.ErrSourceResponse)
		})
	}
}

func TestCoinDesk_FetchRate(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"bpi":{"EUR":{"code":"EUR","rate":"63,021.4512","rate_float":63021.4512}}}`, func(r *http.Request) {
		assert.Equal(t, "/bpi/currentprice/EUR.json", r.URL.Path)
	})

	src := NewCoinDesk(srv.URL, httpjson.NewClient(time.Second))
	price, err := src.FetchRate(context.Background(), domain.CurrencyBitcoin)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("63021.4512").Equal(price))
	assert.Equal(t, "coindesk", src.Name())
}

func TestCoinDesk_RateFloatOnly(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"bpi":{"EUR":{"rate_float":60000.5}}}`, nil)

	price, err := NewCoinDesk(srv.URL, httpjson.NewClient(time.Second)).FetchRate(context.Background(), domain.CurrencyBitcoin)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60000.5").Equal(price))
}

func TestCoinDesk_Errors(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"bpi":{"USD":{"rate":"1.0"}}}`, nil)
	src := NewCoinDesk(srv.URL, httpjson.NewClient(time.Second))

	_, err := src.FetchRate(context.Background(), domain.CurrencyBitcoin)
	assert.ErrorIs(t, err, ports.ErrSourceResponse)

	_, err = src.FetchRate(context.Background(), domain.CurrencyLitecoin)
	assert.ErrorIs(t, err, ports.ErrSourceResponse)

	bad := serve(t, http.StatusOK, `{"bpi":{"EUR":{"rate":"n/a"}}}`, nil)
	_, err = NewCoinDesk(bad.URL, httpjson.NewClient(time.Second)).FetchRate(context.Background(), domain.CurrencyBitcoin)
	assert.ErrorIs(t, err, ports.ErrSourceResponse)
}
