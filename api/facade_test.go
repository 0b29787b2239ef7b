package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdfcterminal/breaker"
	"usdfcterminal/clients"
	"usdfcterminal/clients/dex"
	"usdfcterminal/clients/explorer"
	"usdfcterminal/clients/indexer"
	"usdfcterminal/clients/rpc"
	"usdfcterminal/history"
)

// selectorDoer answers eth_call requests by the 4-byte function
// selector embedded in the request's "data" param, so concurrently
// issued composite reads each get the response meant for them
// regardless of arrival order.
type selectorDoer struct {
	byRequest map[string]string // selector -> hex result (or "ERR:message")
	calls     int
}

type rpcParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

func (d *selectorDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	var buf []byte
	if req.Body != nil {
		buf, _ = io.ReadAll(req.Body)
	}
	var body struct {
		ID     int64     `json:"id"`
		Params []any     `json:"params"`
		Method string    `json:"method"`
	}
	_ = json.Unmarshal(buf, &body)

	selector := ""
	if len(body.Params) > 0 {
		raw, _ := json.Marshal(body.Params[0])
		var p rpcParams
		_ = json.Unmarshal(raw, &p)
		if len(p.Data) >= 10 {
			selector = p.Data[:10]
		}
	}

	result, ok := d.byRequest[selector]
	if !ok {
		result = "0x0"
	}

	var payload []byte
	if strings.HasPrefix(result, "ERR:") {
		payload, _ = json.Marshal(map[string]any{
			"jsonrpc": "2.0", "id": body.ID,
			"error": map[string]any{"code": -32000, "message": strings.TrimPrefix(result, "ERR:")},
		})
	} else {
		payload, _ = json.Marshal(map[string]any{"jsonrpc": "2.0", "id": body.ID, "result": result})
	}
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(payload))}, nil
}

// wei18 renders amount (a whole-unit quantity) as the wei-scale hex word
// the chain RPC returns, i.e. amount * 10^18.
func wei18(amount int64) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	value := new(big.Int).Mul(big.NewInt(amount), scale)
	return "0x" + value.Text(16)
}

func newTestFacade(t *testing.T, doer clients.HTTPDoer, now func() time.Time) *Facade {
	t.Helper()
	rpcClient := rpc.New([]string{"http://primary"}, rpc.Contracts{
		USDFCToken:    "0xtoken",
		TroveManager:  "0xtrove",
		SortedTroves:  "0xsorted",
		PriceFeed:     "0xprice",
		StabilityPool: "0xsp",
		ActivePool:    "0xap",
	}, doer, 0, 0)

	explorerClient := explorer.New("http://explorer", doer, 0)
	indexerClient := indexer.New("http://indexer", doer, 0)
	dexClient := dex.New("http://dex", doer, 0)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: 3,
		FailureWindow:    30 * time.Second,
		OpenTimeout:      10 * time.Second,
		HalfOpenTimeout:  10 * time.Second,
	}, now)

	ring := history.NewRing(60)

	f := New(Clients{RPC: rpcClient, Explorer: explorerClient, Indexer: indexerClient, DEX: dexClient},
		breakers, ring, nil, PoolConfig{PrimaryPool: "0xpool"}, TokenConfig{USDFCToken: "0xtoken"}, now)
	return f
}

// happyMetrics wires every selector GetProtocolMetrics touches to the
// scenario-1 fixture from the component design: collateral 500000,
// price 5, debt 1000000 -> TCR 250.0.
func happyMetrics() map[string]string {
	return map[string]string{
		"0x18160ddd": wei18(1000000), // totalSupply
		"0x887105d3": wei18(500000),  // getEntireSystemColl
		"0x49eefeee": "0x7",          // getTroveOwnersCount (plain uint256 count, not wei-scaled)
		"0x0490be83": wei18(5),       // lastGoodPrice
		"0x284ce5d8": wei18(1000000), // getEntireSystemDebt
		"0x0d9a6b35": wei18(200000),  // getTotalDebtDeposits (stability pool)
		"0x4a59ff51": wei18(300000),  // getETH (active pool)
	}
}

func TestGetProtocolMetricsHappyPathComputesTCR(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return current }
	doer := &selectorDoer{byRequest: happyMetrics()}
	f := newTestFacade(t, doer, now)

	metrics, err := f.GetProtocolMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 250.0, metrics.TCR, 1e-6)
	assert.False(t, metrics.DebtIsProxy)

	callsAfterFirst := doer.calls
	metrics2, err := f.GetProtocolMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 250.0, metrics2.TCR, 1e-6)
	assert.Equal(t, callsAfterFirst, doer.calls, "second call within TTL must not touch the network")
}

func TestGetProtocolMetricsDebtProxyNeverCached(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return current }
	fixtures := happyMetrics()
	fixtures["0x284ce5d8"] = "ERR:execution reverted" // getEntireSystemDebt reverts
	doer := &selectorDoer{byRequest: fixtures}
	f := newTestFacade(t, doer, now)

	metrics, err := f.GetProtocolMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 250.0, metrics.TCR, 1e-6)
	assert.True(t, metrics.DebtIsProxy)

	callsAfterFirst := doer.calls
	_, err = f.GetProtocolMetrics(context.Background())
	require.NoError(t, err)
	assert.Greater(t, doer.calls, callsAfterFirst, "debt read must never be served from cache")
}

// explorerDoer always serves the same HTTP status/body, isolating the
// explorer endpoint's breaker from any other client's traffic.
type explorerDoer struct {
	status int
	body   string
	calls  int
}

func (d *explorerDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	return &http.Response{StatusCode: d.status, Body: io.NopCloser(strings.NewReader(d.body))}, nil
}

func TestHolderCountBreakerTripsAndRecovers(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return current }
	doer := &explorerDoer{status: 500, body: "server error"}
	f := newTestFacade(t, doer, now)

	for i := 0; i < 3; i++ {
		_, err := f.GetHolderCount(context.Background())
		require.Error(t, err)
	}

	_, err := f.GetHolderCount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit")
	callsWhileOpen := doer.calls

	current = current.Add(11 * time.Second)
	doer.status, doer.body = 200, `{"token_holders_count":"42"}`
	count, err := f.GetHolderCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), count)
	assert.Equal(t, callsWhileOpen, doer.calls-1, "the rejected call while open must not have reached the network")
}

func TestGetHistoryRejectsUnknownMetric(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	doer := &selectorDoer{byRequest: happyMetrics()}
	f := newTestFacade(t, doer, now)

	_, err := f.GetHistory("not_a_metric", 0, 0, 15)
	assert.Error(t, err)
}

func TestClampPagination(t *testing.T) {
	limit, offset := clampPagination(0, -5)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = clampPagination(500, 10)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 10, offset)
}
