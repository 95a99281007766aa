package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"amethyst-storefront/internal/adapter/httpjson"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopAddr = "bc1qshopaddress"

func tx(id string, confirmed bool, blockTime int64, outs ...any) map[string]any {
	vout := []map[string]any{}
	for i := 0; i+1 < len(outs); i += 2 {
		vout = append(vout, map[string]any{"scriptpubkey_address": outs[i], "value": outs[i+1]})
	}
	return map[string]any{
		"txid":   id,
		"status": map[string]any{"confirmed": confirmed, "block_time": blockTime},
		"vout":   vout,
	}
}

func esploraServer(t *testing.T, pages map[string][]map[string]any, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEsplora_ReceivedSince(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	pages := map[string][]map[string]any{
		"/address/" + shopAddr + "/txs": {
			tx("mempool1", false, 0, shopAddr, 7000),
			tx("new", true, since.Unix()+600, shopAddr, 30000, "bc1qchange", 999),
			tx("split", true, since.Unix()+60, shopAddr, 10000, shopAddr, 10000),
			tx("exact", true, since.Unix(), shopAddr, 1),
			tx("old", true, since.Unix()-1, shopAddr, 500000),
		},
	}
	srv := esploraServer(t, pages, nil)

	e := NewEsplora("blockstream", srv.URL, httpjson.NewClient(time.Second), 4)
	snap, err := e.ReceivedSince(context.Background(), shopAddr, since)
	require.NoError(t, err)

	assert.Equal(t, int64(50001), snap.ReceivedMinor, "only confirmed outputs to the address at or after since")
	assert.Equal(t, int64(7000), snap.PendingMinor)
	assert.Equal(t, 3, snap.TxCount)
	assert.Equal(t, "blockstream", snap.Explorer)
	assert.Equal(t, domain.CurrencyBitcoin, e.Currency())
}

func TestEsplora_Paginates(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	first := make([]map[string]any, 0, esploraChainPageSize)
	for i := 0; i < esploraChainPageSize; i++ {
		first = append(first, tx(fmt.Sprintf("p1-%d", i), true, since.Unix()+10_000-int64(i), "bc1qother", 1))
	}
	pages := map[string][]map[string]any{
		"/address/" + shopAddr + "/txs":                 first,
		"/address/" + shopAddr + "/txs/chain/p1-24":     {tx("pay", true, since.Unix()+100, shopAddr, 42000)},
		"/address/" + shopAddr + "/txs/chain/never-hit": {},
	}
	var hits int32
	srv := esploraServer(t, pages, &hits)

	snap, err := NewEsplora("mempool", srv.URL, httpjson.NewClient(time.Second), 4).
		ReceivedSince(context.Background(), shopAddr, since)
	require.NoError(t, err)
	assert.Equal(t, int64(42000), snap.ReceivedMinor)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestEsplora_StopsAtMaxPages(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	full := make([]map[string]any, 0, esploraChainPageSize)
	for i := 0; i < esploraChainPageSize; i++ {
		full = append(full, tx(fmt.Sprintf("t%d", i), true, since.Unix()+100, shopAddr, 1))
	}
	pages := map[string][]map[string]any{"/address/" + shopAddr + "/txs": full}
	var hits int32
	srv := esploraServer(t, pages, &hits)

	snap, err := NewEsplora("blockstream", srv.URL, httpjson.NewClient(time.Second), 1).
		ReceivedSince(context.Background(), shopAddr, since)
	require.NoError(t, err)
	assert.Equal(t, int64(esploraChainPageSize), snap.ReceivedMinor)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestEsplora_StopsAtCutoff(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)
	full := make([]map[string]any, 0, esploraChainPageSize)
	for i := 0; i < esploraChainPageSize-1; i++ {
		full = append(full, tx(fmt.Sprintf("t%d", i), true, since.Unix()+100, "bc1qother", 1))
	}
	full = append(full, tx("older", true, since.Unix()-100, shopAddr, 99))
	var hits int32
	srv := esploraServer(t, map[string][]map[string]any{"/address/" + shopAddr + "/txs": full}, &hits)

	snap, err := NewEsplora("blockstream", srv.URL, httpjson.NewClient(time.Second), 4).
		ReceivedSince(context.Background(), shopAddr, since)
	require.NoError(t, err)
	assert.Zero(t, snap.ReceivedMinor)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestEsplora_Errors(t *testing.T) {
	srv := esploraServer(t, map[string][]map[string]any{}, nil)
	_, err := NewEsplora("blockstream", srv.URL, httpjson.NewClient(time.Second), 2).
		ReceivedSince(context.Background(), shopAddr, time.Time{})
	assert.ErrorIs(t, err, ports.ErrSourceResponse)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := down.URL
	down.Close()
	_, err = NewEsplora("blockstream", url, httpjson.NewClient(time.Second), 2).
		ReceivedSince(context.Background(), shopAddr, time.Time{})
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}
