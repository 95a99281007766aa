package service

import (
	"context"
	"errors"
	"fmt"

	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/rs/zerolog"
)

var errBudgetExhausted = fmt.Errorf("%w: request budget exhausted", ports.ErrSourceUnavailable)

// LedgerScanner implements ports.LedgerScanner. Explorers are tried in the
// order given for each currency until one returns a usable snapshot.
type LedgerScanner struct {
	chains  map[domain.Currency][]ports.Explorer
	budget  ports.ExplorerBudget
	epsilon int64
	log     zerolog.Logger
}

// NewLedgerScanner creates a LedgerScanner. budget may be nil.
func NewLedgerScanner(explorers []ports.Explorer, budget ports.ExplorerBudget, epsilon int64, log zerolog.Logger) *LedgerScanner {
	chains := make(map[domain.Currency][]ports.Explorer)
	for _, ex := range explorers {
		chains[ex.Currency()] = append(chains[ex.Currency()], ex)
	}
	return &LedgerScanner{
		chains:  chains,
		budget:  budget,
		epsilon: epsilon,
		log:     log,
	}
}

// IsPaid reports whether confirmed inflow to the address since check.Since
// falls short of the expected amount by less than epsilon.
//
// A malformed explorer response is ordinary non-payment: (false, nil).
// Only when every explorer in the chain is unreachable does IsPaid return an
// ExternalSourceError.
func (s *LedgerScanner) IsPaid(ctx context.Context, check ports.PaymentCheck) (bool, error) {
	if !check.Currency.Valid() {
		return false, apperror.ErrUnsupportedCurrency(string(check.Currency))
	}
	expected := check.Currency.ToMinorUnits(check.ExpectedAmount)
	if expected <= 0 {
		return false, nil
	}

	chain := s.chains[check.Currency]
	if len(chain) == 0 {
		return false, apperror.ErrConfiguration("No explorer configured for " + check.Currency.Ticker())
	}

	var (
		lastErr     error
		badResponse bool
	)
	for _, ex := range chain {
		if err := ctx.Err(); err != nil {
			return false, apperror.ErrExternalSource(err)
		}
		if !s.allow(ctx, ex.Name()) {
			lastErr = errBudgetExhausted
			s.log.Warn().Str("explorer", ex.Name()).Str("address", check.Address).Msg("explorer budget exhausted, trying next")
			continue
		}

		snap, err := ex.ReceivedSince(ctx, check.Address, check.Since)
		if err != nil {
			lastErr = err
			if errors.Is(err, ports.ErrSourceResponse) {
				badResponse = true
			}
			s.log.Warn().Err(err).
				Str("explorer", ex.Name()).
				Str("address", check.Address).
				Msg("explorer query failed, trying next")
			continue
		}

		paid := domain.Covers(snap.ReceivedMinor, expected, s.epsilon)
		s.log.Debug().
			Str("explorer", ex.Name()).
			Str("address", check.Address).
			Int64("expected_minor", expected).
			Int64("received_minor", snap.ReceivedMinor).
			Int64("pending_minor", snap.PendingMinor).
			Bool("paid", paid).
			Msg("ledger scanned")
		return paid, nil
	}

	if badResponse {
		s.log.Warn().Err(lastErr).
			Str("currency", string(check.Currency)).
			Str("address", check.Address).
			Msg("no usable explorer response, treating as not paid")
		return false, nil
	}
	return false, apperror.ErrExternalSource(lastErr)
}

// allow consumes budget for the explorer. A failing budget store never blocks a check.
func (s *LedgerScanner) allow(ctx context.Context, explorer string) bool {
	if s.budget == nil {
		return true
	}
	ok, err := s.budget.Allow(ctx, explorer)
	if err != nil {
		s.log.Warn().Err(err).Str("explorer", explorer).Msg("explorer budget check failed, allowing request")
		return true
	}
	return ok
}
