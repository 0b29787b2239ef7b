package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	responses []fakeResponse
	calls     int
	onRequest func(body string)
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if f.onRequest != nil {
		buf, _ := io.ReadAll(req.Body)
		f.onRequest(string(buf))
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	resp := f.responses[idx]
	return &http.Response{
		StatusCode: resp.status,
		Body:       io.NopCloser(strings.NewReader(resp.body)),
	}, nil
}

func rpcResultBody(hexResult string) string {
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "result": hexResult}
	buf, _ := json.Marshal(payload)
	return string(buf)
}

func rpcErrorBody(code int, message string) string {
	payload := map[string]any{
		"jsonrpc": "2.0", "id": 1,
		"error": map[string]any{"code": code, "message": message},
	}
	buf, _ := json.Marshal(payload)
	return string(buf)
}

func TestTotalSupplyDecodes(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{200, rpcResultBody("0xde0b6b3a7640000")}}}
	c := New([]string{"http://primary"}, Contracts{USDFCToken: "0xabc"}, doer, 0, 0)

	supply, err := c.TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.000000000000000000", supply)
}

func TestTotalDebtFallsBackToSupplyOnRevert(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{200, rpcErrorBody(3, "execution reverted")},
		{200, rpcResultBody("0xd3c21bcecceda1000000")},
	}}
	c := New([]string{"http://primary"}, Contracts{TroveManager: "0xt", USDFCToken: "0xs"}, doer, 0, 0)

	var fallbackFired bool
	c.OnDebtProxyFallback(func() { fallbackFired = true })

	result, err := c.TotalDebt(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsProxy)
	assert.True(t, fallbackFired)
	assert.Equal(t, "1000000.000000000000000000", result.Debt)
}

func TestTCRComputation(t *testing.T) {
	tcr, err := TCR("500000", "5", "1000000")
	require.NoError(t, err)
	assert.InDelta(t, 250.0, tcr, 1e-6)
}

func TestTCRZeroDebtYieldsInfinity(t *testing.T) {
	tcr, err := TCR("500000", "5", "0")
	require.NoError(t, err)
	assert.Equal(t, float64(999999), tcr)
}

func TestEthCallFailsOverToFallbackURL(t *testing.T) {
	primaryDoer := &fakeDoer{responses: []fakeResponse{{500, "server error"}}}
	_ = primaryDoer
	// Single fake doer shared across URLs still demonstrates retry on 5xx
	// then success from the "second" attempt representing the fallback.
	doer := &fakeDoer{responses: []fakeResponse{
		{500, "server error"},
		{200, rpcResultBody("0x1")},
	}}
	c := New([]string{"http://primary", "http://fallback"}, Contracts{USDFCToken: "0xabc"}, doer, 0, 0)
	supply, err := c.TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.000000000000000001", supply)
}

func TestProtocolErrorIsNotRetried(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{200, rpcErrorBody(-32000, "reverted")}}}
	c := New([]string{"http://primary", "http://fallback"}, Contracts{USDFCToken: "0xabc"}, doer, 0, 3)
	_, err := c.TotalSupply(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestDecodeSortedTrovesSkipsLengthWord(t *testing.T) {
	length := padLeftHex("2", 64)
	owner := padLeftHex("1234567890abcdef1234567890abcdef12345678", 64)
	debt := padLeftHex("de0b6b3a7640000", 64)
	coll := padLeftHex("1", 64)
	stake := padLeftHex("0", 64)
	snapColl := padLeftHex("0", 64)
	snapDebt := padLeftHex("0", 64)
	hexResult := "0x" + length + owner + debt + coll + stake + snapColl + snapDebt

	records, err := decodeSortedTroves(hexResult)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", records[0].Owner)
	assert.Equal(t, "1.000000000000000000", records[0].Debt)
}

func TestEncodeInt256NonNegative(t *testing.T) {
	assert.Equal(t, padLeftHex("a", 64), encodeInt256(10))
}

func TestEncodeInt256Negative(t *testing.T) {
	encoded := encodeInt256(-1)
	assert.True(t, strings.HasPrefix(encoded, strings.Repeat("f", 64)))
}
