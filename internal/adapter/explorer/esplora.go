// Package explorer implements ports.Explorer against public blockchain explorer APIs.
package explorer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
)

// esploraChainPageSize is the number of confirmed txs an Esplora page holds.
const esploraChainPageSize = 25

type esploraTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed bool  `json:"confirmed"`
		BlockTime int64 `json:"block_time"`
	} `json:"status"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
}

// Esplora reads bitcoin address history from an Esplora API
// (blockstream.info, mempool.space).
type Esplora struct {
	name     string
	baseURL  string
	client   httpjson.HTTPClient
	maxPages int
}

func NewEsplora(name, baseURL string, client httpjson.HTTPClient, maxPages int) *Esplora {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Esplora{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		maxPages: maxPages,
	}
}

func (e *Esplora) Name() string { return e.name }

func (e *Esplora) Currency() domain.Currency { return domain.CurrencyBitcoin }

// ReceivedSince sums outputs paying address in confirmed txs whose block time is at or after since.
// Confirmed history is newest first, so paging stops at the first page reaching past since.
func (e *Esplora) ReceivedSince(ctx context.Context, address string, since time.Time) (*domain.AddressSnapshot, error) {
	snap := &domain.AddressSnapshot{Address: address, Explorer: e.name}
	base := e.baseURL + "/address/" + url.PathEscape(address) + "/txs"
	endpoint := base
	cutoff := since.Unix()

	for page := 0; page < e.maxPages; page++ {
		var txs []esploraTx
		if err := httpjson.Get(ctx, e.client, endpoint, &txs); err != nil {
			return nil, err
		}

		confirmed := 0
		lastConfirmed := ""
		reachedCutoff := false
		for _, tx := range txs {
			paid := outputsTo(tx, address)
			if !tx.Status.Confirmed {
				snap.PendingMinor += paid
				continue
			}
			confirmed++
			lastConfirmed = tx.TxID
			if tx.Status.BlockTime < cutoff {
				reachedCutoff = true
				continue
			}
			if paid > 0 {
				snap.ReceivedMinor += paid
				snap.TxCount++
			}
		}

		if reachedCutoff || confirmed < esploraChainPageSize || lastConfirmed == "" {
			return snap, nil
		}
		endpoint = fmt.Sprintf("%s/chain/%s", base, lastConfirmed)
	}
	return snap, nil
}

func outputsTo(tx esploraTx, address string) int64 {
	var sum int64
	for _, out := range tx.Vout {
		if out.Address == address {
			sum += out.Value
		}
	}
	return sum
}
