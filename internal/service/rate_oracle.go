package service

import (
	"context"
	"time"

	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateOracle implements ports.RateOracle with an ordered fallback chain per
// currency, ending in a static default price.
type RateOracle struct {
	chains   map[domain.Currency][]ports.RateSource
	defaults map[domain.Currency]decimal.Decimal
	cache    ports.RateCache
	cacheTTL time.Duration
	clock    clock.Clock
	log      zerolog.Logger
}

// NewRateOracle creates a RateOracle. cache may be nil; a zero cacheTTL disables caching.
func NewRateOracle(
	chains map[domain.Currency][]ports.RateSource,
	defaults map[domain.Currency]decimal.Decimal,
	cache ports.RateCache,
	cacheTTL time.Duration,
	clk clock.Clock,
	log zerolog.Logger,
) *RateOracle {
	return &RateOracle{
		chains:   chains,
		defaults: defaults,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clk,
		log:      log,
	}
}

// GetRate returns the EUR price of one coin. It never fails for a supported
// currency with a configured default: when every source fails the static
// default is returned and reported as degraded.
func (o *RateOracle) GetRate(ctx context.Context, currency domain.Currency) (domain.RateQuote, error) {
	if !currency.Valid() {
		return domain.RateQuote{}, apperror.ErrUnsupportedCurrency(string(currency))
	}

	if q, ok := o.cached(ctx, currency); ok {
		return q, nil
	}

	for _, src := range o.chains[currency] {
		price, err := src.FetchRate(ctx, currency)
		if err != nil {
			o.log.Warn().Err(err).
				Str("source", src.Name()).
				Str("currency", string(currency)).
				Msg("rate source failed, trying next")
			continue
		}

		q := domain.RateQuote{
			Currency:  currency,
			Fiat:      domain.FiatCurrency,
			Price:     price,
			Source:    src.Name(),
			FetchedAt: o.clock.Now(),
		}
		o.store(ctx, q)
		return q, nil
	}

	price, ok := o.defaults[currency]
	if !ok || !price.IsPositive() {
		return domain.RateQuote{}, apperror.ErrConfiguration("No rate source or default price for " + currency.Ticker())
	}

	o.log.Warn().
		Bool("degraded", true).
		Str("currency", string(currency)).
		Str("price", price.String()).
		Msg("all rate sources failed, using static default price")

	return domain.RateQuote{
		Currency:  currency,
		Fiat:      domain.FiatCurrency,
		Price:     price,
		Source:    domain.RateSourceStaticDefault,
		FetchedAt: o.clock.Now(),
	}, nil
}

func (o *RateOracle) cached(ctx context.Context, currency domain.Currency) (domain.RateQuote, bool) {
	if o.cache == nil || o.cacheTTL <= 0 {
		return domain.RateQuote{}, false
	}
	q, err := o.cache.Get(ctx, currency)
	if err != nil {
		o.log.Warn().Err(err).Str("currency", string(currency)).Msg("rate cache read failed, fetching live")
		return domain.RateQuote{}, false
	}
	if q == nil || q.Degraded() || !q.Price.IsPositive() {
		return domain.RateQuote{}, false
	}
	// Bounded staleness holds even if the backing store kept the key longer.
	if o.clock.Now().Sub(q.FetchedAt) > o.cacheTTL {
		return domain.RateQuote{}, false
	}
	return *q, true
}

func (o *RateOracle) store(ctx context.Context, q domain.RateQuote) {
	if o.cache == nil || o.cacheTTL <= 0 {
		return
	}
	if err := o.cache.Set(ctx, q, o.cacheTTL); err != nil {
		o.log.Warn().Err(err).Str("currency", string(q.Currency)).Msg("rate cache write failed")
	}
}
