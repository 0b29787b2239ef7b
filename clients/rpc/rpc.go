// Package rpc implements the chain RPC client (C2.1): a JSON-RPC 2.0
// client over HTTPS speaking to an EVM-compatible node, with exact
// four-byte function selectors, ABI int256/uint256 codecs, retry/
// failover across a primary and ordered fallback URLs, and the
// debt-proxy substitution for getEntireSystemDebt.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"usdfcterminal/clients"
	"usdfcterminal/domain"
)

// Function selectors, reproduced byte-for-byte from the wire contract.
const (
	selectorTotalSupply           = "0x18160ddd"
	selectorGetEntireSystemColl   = "0x887105d3"
	selectorGetTroveOwnersCount   = "0x49eefeee"
	selectorLastGoodPrice         = "0x0490be83"
	selectorGetTotalDebtDeposits  = "0x0d9a6b35"
	selectorGetETH                = "0x4a59ff51"
	selectorGetEntireSystemDebt   = "0x284ce5d8"
	selectorGetMultipleSortedTroves = "0xb90bce45"
)

// Contracts names the on-chain addresses the client targets.
type Contracts struct {
	USDFCToken         string
	TroveManager       string
	SortedTroves       string
	PriceFeed          string
	MultiTroveGetter   string
	StabilityPool      string
	ActivePool         string
	BorrowerOperations string
}

// Client is the chain RPC client. It is safe for concurrent use.
type Client struct {
	urls       []string
	contracts  Contracts
	http       clients.HTTPDoer
	timeout    time.Duration
	retryCount int
	nextID     atomic.Int64
	now        func() time.Time
	onDebtProxyFallback func()
}

// New constructs a Client. urls[0] is the primary endpoint; the rest
// are ordered fallbacks. httpClient defaults to an http.Client with the
// given timeout when nil.
func New(urls []string, contracts Contracts, httpClient clients.HTTPDoer, timeout time.Duration, retryCount int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		urls:       urls,
		contracts:  contracts,
		http:       httpClient,
		timeout:    timeout,
		retryCount: retryCount,
		now:        time.Now,
	}
}

// OnDebtProxyFallback registers a callback invoked every time
// getEntireSystemDebt reverts and totalSupply is substituted, so
// callers can wire the rpc_debt_proxy_fallback_total metric.
func (c *Client) OnDebtProxyFallback(fn func()) {
	c.onDebtProxyFallback = fn
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErrorObject `json:"error"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// ethCall invokes eth_call against "to" with the given calldata,
// retrying across the primary and fallback URLs per the wire contract:
// each URL is tried up to retryCount+1 times with exponential backoff;
// network failures and 5xx are retried, 4xx and RPC-level errors are
// not.
func (c *Client) ethCall(ctx context.Context, to, calldata string) (string, error) {
	var lastErr error
	for _, url := range c.urls {
		result, err := c.ethCallAgainstURL(ctx, url, to, calldata)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if rpcErr, ok := err.(*clients.Error); ok && !rpcErr.Retryable() {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) ethCallAgainstURL(ctx context.Context, url, to, calldata string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryCount+1; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(100*(1<<(attempt-2))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", clients.NetworkError(ctx.Err())
			case <-time.After(backoff):
			}
		}
		result, err := c.doEthCall(ctx, url, to, calldata)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if rpcErr, ok := err.(*clients.Error); ok && !rpcErr.Retryable() {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) doEthCall(ctx context.Context, url, to, calldata string) (string, error) {
	id := c.nextID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "eth_call",
		Params:  []any{callParams{To: to, Data: calldata}, "latest"},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", clients.ParseError("request", err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", clients.NetworkError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", clients.TimeoutError(err)
		}
		return "", clients.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", clients.HTTPStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", clients.ParseError("response", err.Error())
	}
	if rpcResp.Error != nil {
		return "", clients.ProtocolError(rpcResp.Error.Message)
	}
	var hexResult string
	if err := json.Unmarshal(rpcResp.Result, &hexResult); err != nil {
		return "", clients.ParseError("result", err.Error())
	}
	return hexResult, nil
}

// TotalSupply reads the USDFC token's total supply, as an 18-digit
// decimal string.
func (c *Client) TotalSupply(ctx context.Context) (string, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.USDFCToken, selectorTotalSupply)
	if err != nil {
		return "", err
	}
	return domain.DecimalFromWeiHex(hexResult)
}

// TotalCollateral reads the system-wide collateral balance.
func (c *Client) TotalCollateral(ctx context.Context) (string, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.ActivePool, selectorGetEntireSystemColl)
	if err != nil {
		return "", err
	}
	return domain.DecimalFromWeiHex(hexResult)
}

// ActiveTroveCount reads the count of open troves.
func (c *Client) ActiveTroveCount(ctx context.Context) (uint64, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.SortedTroves, selectorGetTroveOwnersCount)
	if err != nil {
		return 0, err
	}
	value, err := uint256FromHex(hexResult)
	if err != nil {
		return 0, clients.ParseError("active_trove_count", err.Error())
	}
	return value.Uint64(), nil
}

// OraclePrice reads the last good oracle price, as an 18-digit decimal
// string.
func (c *Client) OraclePrice(ctx context.Context) (string, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.PriceFeed, selectorLastGoodPrice)
	if err != nil {
		return "", err
	}
	return domain.DecimalFromWeiHex(hexResult)
}

// StabilityPoolBalance reads the stability pool's stablecoin deposits.
func (c *Client) StabilityPoolBalance(ctx context.Context) (string, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.StabilityPool, selectorGetTotalDebtDeposits)
	if err != nil {
		return "", err
	}
	return domain.DecimalFromWeiHex(hexResult)
}

// ActivePoolBalance reads the active pool's collateral balance.
func (c *Client) ActivePoolBalance(ctx context.Context) (string, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.ActivePool, selectorGetETH)
	if err != nil {
		return "", err
	}
	return domain.DecimalFromWeiHex(hexResult)
}

// DebtResult carries the system debt figure along with whether it was
// substituted via the totalSupply proxy (Open Question 9c).
type DebtResult struct {
	Debt      string
	IsProxy   bool
}

// TotalDebt reads the system-wide debt. If getEntireSystemDebt reverts,
// totalSupply is substituted as a debt proxy and IsProxy is set; the
// registered OnDebtProxyFallback callback fires exactly once per call.
func (c *Client) TotalDebt(ctx context.Context) (DebtResult, error) {
	hexResult, err := c.ethCall(ctx, c.contracts.TroveManager, selectorGetEntireSystemDebt)
	if err == nil {
		decimal, decErr := domain.DecimalFromWeiHex(hexResult)
		if decErr != nil {
			return DebtResult{}, decErr
		}
		return DebtResult{Debt: decimal}, nil
	}
	supply, supplyErr := c.TotalSupply(ctx)
	if supplyErr != nil {
		return DebtResult{}, supplyErr
	}
	if c.onDebtProxyFallback != nil {
		c.onDebtProxyFallback()
	}
	return DebtResult{Debt: supply, IsProxy: true}, nil
}

// TCR computes the total collateral ratio from collateral, oracle price,
// and debt (all 18-digit decimals). Zero debt yields domain.InfinityTCR.
func TCR(collateral, price, debt string) (float64, error) {
	collF, err := decimalToFloat(collateral)
	if err != nil {
		return 0, err
	}
	priceF, err := decimalToFloat(price)
	if err != nil {
		return 0, err
	}
	debtF, err := decimalToFloat(debt)
	if err != nil {
		return 0, err
	}
	if debtF == 0 {
		return domain.InfinityTCR, nil
	}
	return collF * priceF / debtF * 100, nil
}

func decimalToFloat(decimal string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(decimal, "%f", &f)
	if err != nil {
		return 0, clients.ParseError("decimal", err.Error())
	}
	return f, nil
}

// BlockNumber reads the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	id := c.nextID.Add(1)
	reqBody := rpcRequest{JSONRPC: "2.0", ID: id, Method: "eth_blockNumber", Params: []any{}}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return 0, clients.ParseError("request", err.Error())
	}
	var lastErr error
	for _, url := range c.urls {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
		if reqErr != nil {
			lastErr = clients.NetworkError(reqErr)
			continue
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, doErr := c.http.Do(httpReq)
		if doErr != nil {
			lastErr = clients.NetworkError(doErr)
			continue
		}
		var rpcResp rpcResponse
		decErr := json.NewDecoder(resp.Body).Decode(&rpcResp)
		resp.Body.Close()
		if decErr != nil {
			lastErr = clients.ParseError("response", decErr.Error())
			continue
		}
		if rpcResp.Error != nil {
			return 0, clients.ProtocolError(rpcResp.Error.Message)
		}
		var hexResult string
		if err := json.Unmarshal(rpcResp.Result, &hexResult); err != nil {
			lastErr = clients.ParseError("result", err.Error())
			continue
		}
		value, err := uint256FromHex(hexResult)
		if err != nil {
			return 0, clients.ParseError("block_number", err.Error())
		}
		return value.Uint64(), nil
	}
	return 0, lastErr
}

// SortedTrovesRecord is one decoded record from the multi-getter batch
// read: owner address plus the trove's raw 18-digit decimal fields.
type SortedTrovesRecord struct {
	Owner        string
	Debt         string
	Collateral   string
	Stake        string
	SnapshotColl string
	SnapshotDebt string
}

// GetMultipleSortedTroves batch-reads trove records starting at startIdx
// for up to count entries via the multi-getter contract.
func (c *Client) GetMultipleSortedTroves(ctx context.Context, startIdx int64, count uint64) ([]SortedTrovesRecord, error) {
	calldata := selectorGetMultipleSortedTroves + encodeInt256(startIdx) + encodeUint256(count)
	hexResult, err := c.ethCall(ctx, c.contracts.MultiTroveGetter, calldata)
	if err != nil {
		return nil, err
	}
	return decodeSortedTroves(hexResult)
}

// encodeInt256 ABI-encodes a signed 256-bit integer: non-negative values
// as 32-byte big-endian, negative values as 256-bit two's complement
// (the wire contract's "upper 192 bits are 0xff" rule generalizes to the
// standard two's-complement encoding for any magnitude within range).
func encodeInt256(value int64) string {
	if value >= 0 {
		return encodeUint256(uint64(value))
	}
	// Two's complement: (2^256 + value) mod 2^256.
	modulus := new(big.Int).Lsh(big.NewInt(1), 256)
	negValue := new(big.Int).Add(modulus, big.NewInt(value))
	return padLeftHex(negValue.Text(16), 64)
}

func encodeUint256(value uint64) string {
	return padLeftHex(fmt.Sprintf("%x", value), 64)
}

func padLeftHex(hexDigits string, width int) string {
	for len(hexDigits) < width {
		hexDigits = "0" + hexDigits
	}
	return hexDigits
}

const wordHexLen = 64

// decodeSortedTroves decodes the multi-getter's dynamic array of 6x32
// byte records, skipping the leading 32-byte length word.
func decodeSortedTroves(hexResult string) ([]SortedTrovesRecord, error) {
	raw := strings.TrimPrefix(hexResult, "0x")
	if len(raw) < wordHexLen {
		return nil, clients.ParseError("sorted_troves", "result shorter than one word")
	}
	raw = raw[wordHexLen:] // skip the dynamic-array length/offset word

	const fieldsPerRecord = 6
	recordHexLen := fieldsPerRecord * wordHexLen
	var records []SortedTrovesRecord
	for offset := 0; offset+recordHexLen <= len(raw); offset += recordHexLen {
		chunk := raw[offset : offset+recordHexLen]
		owner, err := addressFromWord(chunk[0*wordHexLen : 1*wordHexLen])
		if err != nil {
			return nil, err
		}
		debt, err := domain.DecimalFromWeiHex(chunk[1*wordHexLen : 2*wordHexLen])
		if err != nil {
			return nil, clients.ParseError("debt", err.Error())
		}
		coll, err := domain.DecimalFromWeiHex(chunk[2*wordHexLen : 3*wordHexLen])
		if err != nil {
			return nil, clients.ParseError("collateral", err.Error())
		}
		stake, err := domain.DecimalFromWeiHex(chunk[3*wordHexLen : 4*wordHexLen])
		if err != nil {
			return nil, clients.ParseError("stake", err.Error())
		}
		snapColl, err := domain.DecimalFromWeiHex(chunk[4*wordHexLen : 5*wordHexLen])
		if err != nil {
			return nil, clients.ParseError("snapshot_coll", err.Error())
		}
		snapDebt, err := domain.DecimalFromWeiHex(chunk[5*wordHexLen : 6*wordHexLen])
		if err != nil {
			return nil, clients.ParseError("snapshot_debt", err.Error())
		}
		records = append(records, SortedTrovesRecord{
			Owner:        owner,
			Debt:         debt,
			Collateral:   coll,
			Stake:        stake,
			SnapshotColl: snapColl,
			SnapshotDebt: snapDebt,
		})
	}
	return records, nil
}

func addressFromWord(word string) (string, error) {
	if len(word) != wordHexLen {
		return "", clients.ParseError("owner", "malformed word")
	}
	addrBytes := gethcommon.Hex2Bytes(word[wordHexLen-40:])
	return "0x" + strings.ToLower(gethcommon.Bytes2Hex(addrBytes)), nil
}

func uint256FromHex(hexValue string) (*uint256.Int, error) {
	trimmed := strings.TrimLeft(strings.TrimPrefix(hexValue, "0x"), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return uint256.FromHex("0x" + trimmed)
}
