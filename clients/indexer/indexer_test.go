package indexer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestOrderBookSplitScenario(t *testing.T) {
	body := `{"data":{"orders":[
		{"side":0,"inputUnitPrice":"9500","amount":"100","maturity":"2000000000","createdAt":"1"},
		{"side":1,"inputUnitPrice":"9600","amount":"100","maturity":"2000000000","createdAt":"1"},
		{"side":0,"inputUnitPrice":"9550","amount":"100","maturity":"2000000000","createdAt":"1"},
		{"side":1,"inputUnitPrice":"9550","amount":"100","maturity":"2000000000","createdAt":"1"}
	]}}`
	c := New("http://indexer", &fakeDoer{body: body}, 0)

	book, err := c.OrderBook(context.Background(), "0xcur", 1000000000)
	require.NoError(t, err)

	require.Len(t, book.LendOrders, 2)
	assert.Equal(t, 9550.0, book.LendOrders[0].Price)
	assert.Equal(t, 9500.0, book.LendOrders[1].Price)

	require.Len(t, book.BorrowOrders, 2)
	assert.Equal(t, 9550.0, book.BorrowOrders[0].Price)
	assert.Equal(t, 9600.0, book.BorrowOrders[1].Price)
}

func TestGraphQLErrorsSurfaceAsProtocolError(t *testing.T) {
	body := `{"errors":[{"message":"boom"}]}`
	c := New("http://indexer", &fakeDoer{body: body}, 0)
	_, err := c.LendingMarkets(context.Background())
	assert.Error(t, err)
}

func TestNoDataNoErrorsIsProtocolError(t *testing.T) {
	body := `{}`
	c := New("http://indexer", &fakeDoer{body: body}, 0)
	_, err := c.LendingMarkets(context.Background())
	assert.Error(t, err)
}

func TestLendingMarketsDecoding(t *testing.T) {
	body := `{"data":{"lendingMarkets":[
		{"id":"m1","currency":"0xcur","maturity":"2000000000","isActive":true,"lastLendUnitPrice":"9500","lastBorrowUnitPrice":"9600","volume":"1000"}
	]}}`
	c := New("http://indexer", &fakeDoer{body: body}, 0)
	markets, err := c.LendingMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "m1", markets[0].ID)
	require.NotNil(t, markets[0].LastLendUnitPrice)
	assert.Equal(t, 9500.0, *markets[0].LastLendUnitPrice)
}

func TestHTTPStatusErrorSurfaces(t *testing.T) {
	c := New("http://indexer", &fakeDoer{body: "boom", status: 503}, 0)
	_, err := c.LendingMarkets(context.Background())
	assert.Error(t, err)
}
