// Package indexer implements the GraphQL indexer client (C2.3):
// lending markets, orders, transactions, volumes, OHLCV candles, and the
// order-book split-by-side read.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"usdfcterminal/clients"
	"usdfcterminal/domain"
)

// Client is the GraphQL indexer client. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     clients.HTTPDoer
	timeout  time.Duration
}

// New constructs a Client against endpoint. httpClient defaults to an
// http.Client with the given timeout when nil.
func New(endpoint string, httpClient clients.HTTPDoer, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{endpoint: endpoint, http: httpClient, timeout: timeout}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody := graphqlRequest{Query: query, Variables: variables}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return clients.ParseError("request", err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return clients.NetworkError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return clients.TimeoutError(err)
		}
		return clients.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return clients.HTTPStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return clients.ParseError("response", err.Error())
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return clients.ProtocolError(strings.Join(messages, "; "))
	}
	if len(envelope.Data) == 0 {
		return clients.ProtocolError("no data")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return clients.ParseError("data", err.Error())
	}
	return nil
}

const lendingMarketsQuery = `
query LendingMarkets {
  lendingMarkets(orderBy: maturity, orderDirection: asc) {
    id
    currency
    maturity
    isActive
    lastLendUnitPrice
    lastBorrowUnitPrice
    volume
  }
}`

type wireLendingMarket struct {
	ID                  string  `json:"id"`
	Currency            string  `json:"currency"`
	Maturity            string  `json:"maturity"`
	IsActive            bool    `json:"isActive"`
	LastLendUnitPrice   *string `json:"lastLendUnitPrice"`
	LastBorrowUnitPrice *string `json:"lastBorrowUnitPrice"`
	Volume              *string `json:"volume"`
}

// LendingMarkets returns all markets ordered by maturity ascending.
func (c *Client) LendingMarkets(ctx context.Context) ([]domain.LendingMarket, error) {
	var result struct {
		LendingMarkets []wireLendingMarket `json:"lendingMarkets"`
	}
	if err := c.query(ctx, lendingMarketsQuery, nil, &result); err != nil {
		return nil, err
	}
	out := make([]domain.LendingMarket, 0, len(result.LendingMarkets))
	for _, m := range result.LendingMarkets {
		maturity, err := parseEpoch(m.Maturity)
		if err != nil {
			return nil, err
		}
		market := domain.LendingMarket{
			ID:              m.ID,
			CurrencyBytes32: m.Currency,
			MaturityEpoch:   maturity,
			IsActive:        m.IsActive,
			Volume:          m.Volume,
		}
		if m.LastLendUnitPrice != nil {
			v, err := parseFloat(*m.LastLendUnitPrice)
			if err != nil {
				return nil, err
			}
			market.LastLendUnitPrice = &v
		}
		if m.LastBorrowUnitPrice != nil {
			v, err := parseFloat(*m.LastBorrowUnitPrice)
			if err != nil {
				return nil, err
			}
			market.LastBorrowUnitPrice = &v
		}
		out = append(out, market)
	}
	return out, nil
}

const openOrdersQuery = `
query OpenOrders($currency: String!) {
  orders(where: {currency: $currency, isOpen: true}) {
    side
    inputUnitPrice
    amount
    maturity
    createdAt
  }
}`

type wireOrder struct {
	Side           int    `json:"side"`
	InputUnitPrice string `json:"inputUnitPrice"`
	Amount         string `json:"amount"`
	Maturity       string `json:"maturity"`
	CreatedAt      string `json:"createdAt"`
}

// OrderBook fetches open orders for currency and splits them by side
// per the wire contract: side 0 is a lend order (sorted by descending
// unit price), side 1 is a borrow order (sorted ascending); ties break
// by creation timestamp descending.
func (c *Client) OrderBook(ctx context.Context, currencyBytes32 string, nowUnix int64) (domain.OrderBook, error) {
	var result struct {
		Orders []wireOrder `json:"orders"`
	}
	variables := map[string]any{"currency": currencyBytes32}
	if err := c.query(ctx, openOrdersQuery, variables, &result); err != nil {
		return domain.OrderBook{}, err
	}

	type rankedEntry struct {
		entry     domain.OrderBookEntry
		createdAt int64
	}
	var lend, borrow []rankedEntry
	for _, o := range result.Orders {
		price, err := parseFloat(o.InputUnitPrice)
		if err != nil {
			return domain.OrderBook{}, err
		}
		maturity, err := parseEpoch(o.Maturity)
		if err != nil {
			return domain.OrderBook{}, err
		}
		createdAt, err := parseEpoch(o.CreatedAt)
		if err != nil {
			return domain.OrderBook{}, err
		}
		daysToMaturity := float64(maturity-nowUnix) / 86400
		entry := rankedEntry{
			entry: domain.OrderBookEntry{
				Price:  price,
				APR:    domain.APRFromUnitPrice(price, daysToMaturity),
				Amount: o.Amount,
			},
			createdAt: createdAt,
		}
		switch o.Side {
		case 0:
			lend = append(lend, entry)
		case 1:
			borrow = append(borrow, entry)
		}
	}

	sort.SliceStable(lend, func(i, j int) bool {
		if lend[i].entry.Price != lend[j].entry.Price {
			return lend[i].entry.Price > lend[j].entry.Price
		}
		return lend[i].createdAt > lend[j].createdAt
	})
	sort.SliceStable(borrow, func(i, j int) bool {
		if borrow[i].entry.Price != borrow[j].entry.Price {
			return borrow[i].entry.Price < borrow[j].entry.Price
		}
		return borrow[i].createdAt > borrow[j].createdAt
	})

	book := domain.OrderBook{
		LendOrders:   make([]domain.OrderBookEntry, len(lend)),
		BorrowOrders: make([]domain.OrderBookEntry, len(borrow)),
	}
	for i, e := range lend {
		book.LendOrders[i] = e.entry
	}
	for i, e := range borrow {
		book.BorrowOrders[i] = e.entry
	}
	return book, nil
}

const recentTransactionsQuery = `
query RecentTransactions($first: Int!) {
  transactions(first: $first, orderBy: timestamp, orderDirection: desc) {
    hash
    kind
    amount
    from
    to
    timestamp
    block
    status
  }
}`

type wireTransaction struct {
	Hash      string `json:"hash"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
	Block     string `json:"block"`
	Status    string `json:"status"`
}

// RecentTransactions returns up to limit of the most recent indexed
// transactions.
func (c *Client) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	var result struct {
		Transactions []wireTransaction `json:"transactions"`
	}
	if err := c.query(ctx, recentTransactionsQuery, map[string]any{"first": limit}, &result); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		ts, err := parseEpoch(tx.Timestamp)
		if err != nil {
			return nil, err
		}
		block, err := parseUint(tx.Block)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Transaction{
			Hash:      tx.Hash,
			Type:      domain.TxType(tx.Kind),
			Amount:    tx.Amount,
			From:      tx.From,
			To:        tx.To,
			Timestamp: ts,
			Block:     block,
			Status:    domain.TxStatus(tx.Status),
		})
	}
	return out, nil
}

const dailyVolumesQuery = `
query DailyVolumes($currency: String!, $days: Int!) {
  dailyVolumes(where: {currency: $currency}, first: $days, orderBy: day, orderDirection: desc) {
    day
    volume
  }
}`

// DailyVolume is one day's aggregated trading volume.
type DailyVolume struct {
	Day    int64  `json:"day"`
	Volume string `json:"volume"`
}

type wireDailyVolume struct {
	Day    string `json:"day"`
	Volume string `json:"volume"`
}

// DailyVolumes returns up to days of daily volume for currency.
func (c *Client) DailyVolumes(ctx context.Context, currencyBytes32 string, days int) ([]DailyVolume, error) {
	var result struct {
		DailyVolumes []wireDailyVolume `json:"dailyVolumes"`
	}
	variables := map[string]any{"currency": currencyBytes32, "days": days}
	if err := c.query(ctx, dailyVolumesQuery, variables, &result); err != nil {
		return nil, err
	}
	out := make([]DailyVolume, 0, len(result.DailyVolumes))
	for _, v := range result.DailyVolumes {
		day, err := parseEpoch(v.Day)
		if err != nil {
			return nil, err
		}
		out = append(out, DailyVolume{Day: day, Volume: v.Volume})
	}
	return out, nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, clients.ParseError("float", err.Error())
	}
	return f, nil
}

func parseEpoch(raw string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, clients.ParseError("epoch", err.Error())
	}
	return i, nil
}

func parseUint(raw string) (uint64, error) {
	u, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, clients.ParseError("uint", err.Error())
	}
	return u, nil
}
