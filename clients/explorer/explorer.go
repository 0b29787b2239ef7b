// Package explorer implements the block explorer REST client (C2.2):
// recent transfers, holder counts and balances, per-address transfers,
// and DEX pool discovery via a sibling pools endpoint.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"usdfcterminal/clients"
	"usdfcterminal/domain"
)

// Client is the explorer REST client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    clients.HTTPDoer
	timeout time.Duration
}

// New constructs a Client against baseURL. httpClient defaults to an
// http.Client with the given timeout when nil.
func New(baseURL string, httpClient clients.HTTPDoer, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, timeout: timeout}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return clients.NetworkError(err)
	}
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
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return clients.ParseError(path, err.Error())
	}
	return nil
}

// wireAmount is the upstream's {value, decimals} amount representation.
type wireAmount struct {
	Value    string `json:"value"`
	Decimals string `json:"decimals"`
}

func (a wireAmount) toDecimal() (string, error) {
	decimals, err := strconv.Atoi(a.Decimals)
	if err != nil {
		return "", clients.ParseError("decimals", err.Error())
	}
	value := strings.TrimSpace(a.Value)
	if value == "" {
		value = "0"
	}
	neg := strings.HasPrefix(value, "-")
	if neg {
		value = value[1:]
	}
	for len(value) <= decimals {
		value = "0" + value
	}
	intPart := value[:len(value)-decimals]
	fracPart := value[len(value)-decimals:]
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	out := intPart
	if decimals > 0 {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out, nil
}

type wireTransfer struct {
	TxHash    string     `json:"tx_hash"`
	From      wireAddr   `json:"from"`
	To        wireAddr   `json:"to"`
	Total     wireAmount `json:"total"`
	Timestamp string     `json:"timestamp"`
	Block     uint64     `json:"block"`
	Status    string     `json:"status"`
}

type wireAddr struct {
	Hash string `json:"hash"`
}

func (t wireTransfer) toTransaction() (domain.Transaction, error) {
	amount, err := t.Total.toDecimal()
	if err != nil {
		return domain.Transaction{}, err
	}
	ts, err := parseRFC3339(t.Timestamp)
	if err != nil {
		return domain.Transaction{}, err
	}
	status := domain.TxSuccess
	switch strings.ToLower(t.Status) {
	case "pending":
		status = domain.TxPending
	case "error", "failed":
		status = domain.TxFailed
	}
	return domain.Transaction{
		Hash:      t.TxHash,
		Type:      domain.ClassifyTransfer(t.From.Hash, t.To.Hash),
		Amount:    amount,
		From:      t.From.Hash,
		To:        t.To.Hash,
		Timestamp: ts,
		Block:     t.Block,
		Status:    status,
	}, nil
}

func parseRFC3339(raw string) (int64, error) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, clients.ParseError("timestamp", err.Error())
	}
	return parsed.Unix(), nil
}

// RecentTransfers returns up to limit of the most recent token
// transfers, taken locally from the server's page since the upstream
// does not honour a server-side limit (Open Question 9b).
func (c *Client) RecentTransfers(ctx context.Context, tokenAddress string, limit int) ([]domain.Transaction, error) {
	var page struct {
		Items []wireTransfer `json:"items"`
	}
	path := fmt.Sprintf("/tokens/%s/transfers", tokenAddress)
	if err := c.get(ctx, path, nil, &page); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, limit)
	for _, item := range page.Items {
		if len(out) >= limit {
			break
		}
		tx, err := item.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// HolderCount reads the token's total holder count via the counters
// endpoint.
func (c *Client) HolderCount(ctx context.Context, tokenAddress string) (uint64, error) {
	var counters struct {
		TokenHoldersCount string `json:"token_holders_count"`
	}
	path := fmt.Sprintf("/tokens/%s/counters", tokenAddress)
	if err := c.get(ctx, path, nil, &counters); err != nil {
		return 0, err
	}
	count, err := strconv.ParseUint(counters.TokenHoldersCount, 10, 64)
	if err != nil {
		return 0, clients.ParseError("token_holders_count", err.Error())
	}
	return count, nil
}

type wireHolder struct {
	Address wireAddr   `json:"address"`
	Value   wireAmount `json:"value"`
}

// Holders returns up to limit token holders, taken locally from the
// upstream's page (see RecentTransfers).
func (c *Client) Holders(ctx context.Context, tokenAddress string, limit int) ([]domain.HolderInfo, error) {
	var page struct {
		Items []wireHolder `json:"items"`
	}
	path := fmt.Sprintf("/tokens/%s/holders", tokenAddress)
	if err := c.get(ctx, path, nil, &page); err != nil {
		return nil, err
	}
	out := make([]domain.HolderInfo, 0, limit)
	for _, item := range page.Items {
		if len(out) >= limit {
			break
		}
		balance, err := item.Value.toDecimal()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.HolderInfo{Address: item.Address.Hash, Balance: balance})
	}
	return out, nil
}

// TokenBalance reads a single address's balance of the given token.
func (c *Client) TokenBalance(ctx context.Context, address, tokenAddress string) (string, error) {
	var result struct {
		Value wireAmount `json:"value"`
	}
	path := fmt.Sprintf("/addresses/%s/tokens/%s/balance", address, tokenAddress)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return "", err
	}
	return result.Value.toDecimal()
}

// AddressTransfers returns an address's transfers filtered to a single
// token.
func (c *Client) AddressTransfers(ctx context.Context, address, tokenAddress string, limit int) ([]domain.Transaction, error) {
	var page struct {
		Items []wireTransfer `json:"items"`
	}
	query := url.Values{}
	query.Set("token", tokenAddress)
	path := fmt.Sprintf("/addresses/%s/transfers", address)
	if err := c.get(ctx, path, query, &page); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, limit)
	for _, item := range page.Items {
		if len(out) >= limit {
			break
		}
		tx, err := item.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// PoolRef is a discovered DEX pool address paired with its token pair.
type PoolRef struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
}

// DiscoverPools lists DEX pools involving tokenAddress via the sibling
// pools service.
func (c *Client) DiscoverPools(ctx context.Context, tokenAddress string) ([]PoolRef, error) {
	var page struct {
		Items []PoolRef `json:"items"`
	}
	path := fmt.Sprintf("/tokens/%s/pools", tokenAddress)
	if err := c.get(ctx, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}
