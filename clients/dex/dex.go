// Package dex implements the DEX analytics REST client (C2.4): token and
// pool info, OHLCV candles, recent trades, and pools-by-token, gated by
// a process-global token bucket and 429 exponential backoff.
package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"usdfcterminal/clients"
)

// globalLimiter is the process-wide token bucket shared by every Client
// instance: 30 requests per 60 seconds, per the wire contract.
var (
	globalLimiterOnce sync.Once
	globalLimiter     *rate.Limiter
)

func limiter() *rate.Limiter {
	globalLimiterOnce.Do(func() {
		globalLimiter = rate.NewLimiter(rate.Every(60*time.Second/30), 30)
	})
	return globalLimiter
}

const maxRetries = 3

// Client is the DEX analytics REST client. It is safe for concurrent
// use; all instances share the process-global rate limiter.
type Client struct {
	baseURL string
	http    clients.HTTPDoer
	timeout time.Duration
	onWait  func(d time.Duration)
}

// New constructs a Client against baseURL. httpClient defaults to an
// http.Client with the given timeout when nil.
func New(baseURL string, httpClient clients.HTTPDoer, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, timeout: timeout}
}

// OnRateLimiterWait registers a callback invoked with the duration spent
// waiting on the process-global token bucket, for metrics wiring.
func (c *Client) OnRateLimiterWait(fn func(d time.Duration)) {
	c.onWait = fn
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	waitStart := time.Now()
	if err := limiter().Wait(ctx); err != nil {
		return clients.NetworkError(err)
	}
	if c.onWait != nil {
		if waited := time.Since(waitStart); waited > 0 {
			c.onWait(waited)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.doRequest(ctx, path)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt == maxRetries {
				return clients.RateLimitError(60)
			}
			backoff := time.Duration(1<<uint(attempt+1)) * time.Second
			select {
			case <-ctx.Done():
				return clients.NetworkError(ctx.Err())
			case <-time.After(backoff):
			}
			lastErr = clients.RateLimitError(60)
			continue
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
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, clients.NetworkError(err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, clients.TimeoutError(err)
		}
		return nil, clients.NetworkError(err)
	}
	return resp, nil
}

// TokenInfo is a basic token descriptor.
type TokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// TokenInfo reads metadata for tokenAddress.
func (c *Client) TokenInfo(ctx context.Context, tokenAddress string) (TokenInfo, error) {
	var info TokenInfo
	err := c.get(ctx, fmt.Sprintf("/tokens/%s", tokenAddress), &info)
	return info, err
}

// PoolInfo is a single pool's current liquidity/volume/price snapshot.
type PoolInfo struct {
	Address        string  `json:"address"`
	LiquidityUSD   float64 `json:"liquidity_usd"`
	Volume24hUSD   float64 `json:"volume_24h_usd"`
	PriceUSD       float64 `json:"price_usd"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// PoolInfo reads liquidity/volume/price data for poolAddress.
func (c *Client) PoolInfo(ctx context.Context, poolAddress string) (PoolInfo, error) {
	var info PoolInfo
	err := c.get(ctx, fmt.Sprintf("/pools/%s", poolAddress), &info)
	return info, err
}

// Candle is one decoded OHLCV bar.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// PoolOHLCV reads OHLCV candles for poolAddress aggregated by timeframe
// (e.g. "1h", "1d"). The wire format is a positional array
// [ts, open, high, low, close, volume] per candle.
func (c *Client) PoolOHLCV(ctx context.Context, poolAddress, timeframe string) ([]Candle, error) {
	var raw struct {
		Data [][]json.Number `json:"data"`
	}
	path := fmt.Sprintf("/pools/%s/ohlcv/%s", poolAddress, timeframe)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(raw.Data))
	for _, row := range raw.Data {
		if len(row) < 6 {
			return nil, clients.ParseError("ohlcv_row", "expected 6 positional fields")
		}
		ts, err := row[0].Int64()
		if err != nil {
			return nil, clients.ParseError("ohlcv_ts", err.Error())
		}
		values := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1].String(), 64)
			if err != nil {
				return nil, clients.ParseError("ohlcv_value", err.Error())
			}
			values[i] = v
		}
		out = append(out, Candle{
			Timestamp: ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}
	return out, nil
}

// Trade is a single recent pool trade.
type Trade struct {
	Timestamp int64   `json:"timestamp"`
	Side      string  `json:"side"`
	AmountUSD float64 `json:"amount_usd"`
	PriceUSD  float64 `json:"price_usd"`
}

// RecentTrades reads the most recent trades for poolAddress.
func (c *Client) RecentTrades(ctx context.Context, poolAddress string) ([]Trade, error) {
	var page struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, fmt.Sprintf("/pools/%s/trades", poolAddress), &page); err != nil {
		return nil, err
	}
	return page.Trades, nil
}

// PoolsForToken lists every pool involving tokenAddress.
func (c *Client) PoolsForToken(ctx context.Context, tokenAddress string) ([]PoolInfo, error) {
	var page struct {
		Pools []PoolInfo `json:"pools"`
	}
	if err := c.get(ctx, fmt.Sprintf("/tokens/%s/pools", tokenAddress), &page); err != nil {
		return nil, err
	}
	return page.Pools, nil
}
