package explorer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdfcterminal/domain"
)

type fakeDoer struct {
	body   string
	status int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	status := f.status
	if status == 0 {
		status = 200
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestRecentTransfersLocalLimitAndClassification(t *testing.T) {
	body := `{"items":[
		{"tx_hash":"0x1","from":{"hash":"0x0000000000000000000000000000000000000000"},"to":{"hash":"0xaa"},"total":{"value":"1000000000000000000","decimals":"18"},"timestamp":"2024-01-01T00:00:00Z","block":10,"status":"ok"},
		{"tx_hash":"0x2","from":{"hash":"0xaa"},"to":{"hash":"0xbb"},"total":{"value":"500000000000000000","decimals":"18"},"timestamp":"2024-01-01T00:01:00Z","block":11,"status":"ok"},
		{"tx_hash":"0x3","from":{"hash":"0xaa"},"to":{"hash":"0xbb"},"total":{"value":"1","decimals":"18"},"timestamp":"2024-01-01T00:02:00Z","block":12,"status":"ok"}
	]}`
	c := New("http://explorer", &fakeDoer{body: body}, 0)

	txs, err := c.RecentTransfers(context.Background(), "0xtoken", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxMint, txs[0].Type)
	assert.Equal(t, "1.000000000000000000", txs[0].Amount)
	assert.Equal(t, domain.TxTransfer, txs[1].Type)
}

func TestHolderCountParsesCounters(t *testing.T) {
	c := New("http://explorer", &fakeDoer{body: `{"token_holders_count":"1234"}`}, 0)
	count, err := c.HolderCount(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), count)
}

func TestHoldersAppliesLocalLimit(t *testing.T) {
	body := `{"items":[
		{"address":{"hash":"0x1"},"value":{"value":"1000000000000000000","decimals":"18"}},
		{"address":{"hash":"0x2"},"value":{"value":"2000000000000000000","decimals":"18"}}
	]}`
	c := New("http://explorer", &fakeDoer{body: body}, 0)
	holders, err := c.Holders(context.Background(), "0xtoken", 1)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "1.000000000000000000", holders[0].Balance)
}

func TestHTTPStatusErrorSurfaces(t *testing.T) {
	c := New("http://explorer", &fakeDoer{body: "boom", status: 503}, 0)
	_, err := c.HolderCount(context.Background(), "0xtoken")
	assert.Error(t, err)
}

func TestWireAmountZeroDecimals(t *testing.T) {
	amount := wireAmount{Value: "42", Decimals: "0"}
	decimal, err := amount.toDecimal()
	require.NoError(t, err)
	assert.Equal(t, "42", decimal)
}
