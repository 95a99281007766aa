package main

import (
	"fmt"

	"amethyst-storefront/config"
	"amethyst-storefront/internal/adapter/explorer"
	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/adapter/pricefeed"
	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/internal/service"
	"amethyst-storefront/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// buildRateOracle wires CoinGecko first and CoinDesk second for bitcoin,
// CoinGecko alone for litecoin, then the configured static defaults.
func buildRateOracle(cfg config.RatesConfig, cache ports.RateCache, clk clock.Clock, log zerolog.Logger) (*service.RateOracle, error) {
	client := httpjson.NewClient(cfg.Timeout)
	gecko := pricefeed.NewCoinGecko(cfg.CoinGeckoURL, client)
	desk := pricefeed.NewCoinDesk(cfg.CoinDeskURL, client)

	chains := map[domain.Currency][]ports.RateSource{
		domain.CurrencyBitcoin:  {gecko, desk},
		domain.CurrencyLitecoin: {gecko},
	}

	defaults := make(map[domain.Currency]decimal.Decimal, 2)
	for currency, raw := range map[domain.Currency]string{
		domain.CurrencyBitcoin:  cfg.DefaultBTC,
		domain.CurrencyLitecoin: cfg.DefaultLTC,
	} {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("default %s rate %q: %w", currency, raw, err)
		}
		defaults[currency] = price
	}

	return service.NewRateOracle(chains, defaults, cache, cfg.CacheTTL, clk, logger.Component(log, "rate_oracle")), nil
}

// buildLedgerScanner wires blockstream then mempool.space for bitcoin and blockchair for litecoin.
func buildLedgerScanner(cfg config.ExplorersConfig, pay config.PaymentConfig, budget ports.ExplorerBudget, log zerolog.Logger) *service.LedgerScanner {
	client := httpjson.NewClient(cfg.Timeout)
	explorers := []ports.Explorer{
		explorer.NewEsplora("blockstream", cfg.BlockstreamURL, client, cfg.MaxPages),
		explorer.NewEsplora("mempool", cfg.MempoolURL, client, cfg.MaxPages),
		explorer.NewBlockchair(cfg.BlockchairURL, cfg.BlockchairAPIKey, client),
	}
	return service.NewLedgerScanner(explorers, budget, pay.EpsilonMinor, logger.Component(log, "ledger_scanner"))
}

func walletAddresses(cfg config.WalletConfig) map[domain.Currency][]string {
	return map[domain.Currency][]string{
		domain.CurrencyBitcoin:  cfg.BitcoinAddresses,
		domain.CurrencyLitecoin: cfg.LitecoinAddresses,
	}
}
