package dex

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceDoer struct {
	statuses []int
	bodies   []string
	calls    int32
}

func (d *sequenceDoer) Do(req *http.Request) (*http.Response, error) {
	idx := int(atomic.AddInt32(&d.calls, 1)) - 1
	if idx >= len(d.statuses) {
		idx = len(d.statuses) - 1
	}
	body := ""
	if idx < len(d.bodies) {
		body = d.bodies[idx]
	}
	return &http.Response{StatusCode: d.statuses[idx], Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestPoolInfoHappyPath(t *testing.T) {
	doer := &sequenceDoer{statuses: []int{200}, bodies: []string{`{"address":"0xp","liquidity_usd":100,"volume_24h_usd":50,"price_usd":1.1,"price_change_24h":0.01}`}}
	c := New("http://dex", doer, 0)
	info, err := c.PoolInfo(context.Background(), "0xp")
	require.NoError(t, err)
	assert.Equal(t, "0xp", info.Address)
	assert.InDelta(t, 1.1, info.PriceUSD, 1e-9)
}

func TestDEX429RetrySucceedsOnThirdAttempt(t *testing.T) {
	doer := &sequenceDoer{
		statuses: []int{429, 429, 200},
		bodies:   []string{"", "", `{"address":"0xp"}`},
	}
	c := New("http://dex", doer, 0)
	info, err := c.PoolInfo(context.Background(), "0xp")
	require.NoError(t, err)
	assert.Equal(t, "0xp", info.Address)
	assert.Equal(t, int32(3), atomic.LoadInt32(&doer.calls))
}

func TestDEX429ExhaustsRetriesAndReturnsRateLimited(t *testing.T) {
	doer := &sequenceDoer{statuses: []int{429, 429, 429, 429}}
	c := New("http://dex", doer, 0)
	_, err := c.PoolInfo(context.Background(), "0xp")
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&doer.calls))
}

func TestPoolOHLCVPositionalDecode(t *testing.T) {
	doer := &sequenceDoer{statuses: []int{200}, bodies: []string{`{"data":[[1700000000,1.0,1.2,0.9,1.1,1000]]}`}}
	c := New("http://dex", doer, 0)
	candles, err := c.PoolOHLCV(context.Background(), "0xp", "1h")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1700000000), candles[0].Timestamp)
	assert.InDelta(t, 1.1, candles[0].Close, 1e-9)
}
