package explorer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
)

// blockchairTimeLayout is the UTC timestamp format of blockchair transaction rows.
const blockchairTimeLayout = "2006-01-02 15:04:05"

// blockchairMempoolBlock is the block_id of unconfirmed transactions.
const blockchairMempoolBlock = -1

type blockchairDashboard struct {
	Data map[string]struct {
		Address struct {
			Received int64 `json:"received"`
		} `json:"address"`
		Transactions []struct {
			BlockID       int64  `json:"block_id"`
			Hash          string `json:"hash"`
			Time          string `json:"time"`
			BalanceChange int64  `json:"balance_change"`
		} `json:"transactions"`
	} `json:"data"`
}

// Blockchair reads litecoin address history from the blockchair dashboard endpoint.
type Blockchair struct {
	baseURL string
	apiKey  string
	client  httpjson.HTTPClient
}

func NewBlockchair(baseURL, apiKey string, client httpjson.HTTPClient) *Blockchair {
	return &Blockchair{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (b *Blockchair) Name() string { return "blockchair" }

func (b *Blockchair) Currency() domain.Currency { return domain.CurrencyLitecoin }

// ReceivedSince sums positive confirmed balance changes at or after since.
func (b *Blockchair) ReceivedSince(ctx context.Context, address string, since time.Time) (*domain.AddressSnapshot, error) {
	q := url.Values{}
	q.Set("transaction_details", "true")
	q.Set("state", "latest")
	if b.apiKey != "" {
		q.Set("key", b.apiKey)
	}
	endpoint := fmt.Sprintf("%s/litecoin/dashboards/address/%s?%s", b.baseURL, url.PathEscape(address), q.Encode())

	var body blockchairDashboard
	if err := httpjson.Get(ctx, b.client, endpoint, &body); err != nil {
		return nil, err
	}

	entry, ok := body.Data[address]
	if !ok {
		return nil, fmt.Errorf("%w: blockchair: address %s missing from response", ports.ErrSourceResponse, address)
	}

	snap := &domain.AddressSnapshot{Address: address, Explorer: b.Name()}
	for _, tx := range entry.Transactions {
		if tx.BalanceChange <= 0 {
			continue
		}
		if tx.BlockID == blockchairMempoolBlock {
			snap.PendingMinor += tx.BalanceChange
			continue
		}
		at, err := time.ParseInLocation(blockchairTimeLayout, tx.Time, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: blockchair: tx %s time %q: %v", ports.ErrSourceResponse, tx.Hash, tx.Time, err)
		}
		if at.Before(since) {
			continue
		}
		snap.ReceivedMinor += tx.BalanceChange
		snap.TxCount++
	}
	return snap, nil
}
