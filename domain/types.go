// Package domain holds the core entities shared across the aggregation
// core: protocol metrics, troves, transactions, lending markets, order
// books, holders, price data, history snapshots and circuit state, plus
// the fixed-point decimal and address-normalization helpers they share.
package domain

// InfinityTCR is the sentinel total-collateral-ratio value reported when
// the system carries zero debt. It is a real number, not null, so chart
// renderers never need a special case.
const InfinityTCR = 999999

// ProtocolMetrics is the top-level system health snapshot.
type ProtocolMetrics struct {
	TotalSupply          string `json:"total_supply"`
	CirculatingSupply     string `json:"circulating_supply"`
	TotalCollateral       string `json:"total_collateral"`
	ActiveTroves          uint64 `json:"active_troves"`
	TCR                   float64 `json:"tcr"`
	StabilityPoolBalance  string `json:"stability_pool_balance"`
	TreasuryBalance       string `json:"treasury_balance"`
	// DebtIsProxy is true when getEntireSystemDebt reverted and total
	// supply was substituted as a debt proxy (Open Question 9c).
	DebtIsProxy bool `json:"debt_is_proxy"`
}

// TroveStatus is a pure function of a trove's ICR (see StatusFromICR).
type TroveStatus string

const (
	TroveActive   TroveStatus = "Active"
	TroveAtRisk   TroveStatus = "AtRisk"
	TroveCritical TroveStatus = "Critical"
	TroveClosed   TroveStatus = "Closed"
)

// StatusFromICR derives a TroveStatus from an individual collateral ratio
// expressed as a percentage (e.g. 150.0 means 150%).
func StatusFromICR(icr float64) TroveStatus {
	switch {
	case icr >= 150:
		return TroveActive
	case icr >= 125:
		return TroveAtRisk
	case icr >= 110:
		return TroveCritical
	default:
		return TroveClosed
	}
}

// Trove is a single collateralized debt position.
type Trove struct {
	Address    string      `json:"address"`
	Collateral string      `json:"collateral"`
	Debt       string      `json:"debt"`
	ICR        float64     `json:"icr"`
	Status     TroveStatus `json:"status"`
}

// TxType classifies a Transaction.
type TxType string

const (
	TxMint        TxType = "Mint"
	TxBurn        TxType = "Burn"
	TxTransfer    TxType = "Transfer"
	TxDeposit     TxType = "Deposit"
	TxWithdraw    TxType = "Withdraw"
	TxLiquidation TxType = "Liquidation"
	TxRedemption  TxType = "Redemption"
)

// TxStatus is the on-chain settlement state of a Transaction.
type TxStatus string

const (
	TxPending TxStatus = "Pending"
	TxSuccess TxStatus = "Success"
	TxFailed  TxStatus = "Failed"
)

// Transaction is a single ledger event.
type Transaction struct {
	Hash      string   `json:"hash"`
	Type      TxType   `json:"tx_type"`
	Amount    string   `json:"amount"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Timestamp int64    `json:"timestamp"`
	Block     uint64   `json:"block"`
	Status    TxStatus `json:"status"`
}

// ZeroAddress is the canonical EVM zero address used by the Mint/Burn
// classification rule.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ClassifyTransfer applies the Mint/Burn/Transfer rule from the data
// model: a transfer from the zero address is a Mint, a transfer to the
// zero address is a Burn, otherwise it is a plain Transfer.
func ClassifyTransfer(from, to string) TxType {
	switch {
	case IsZeroAddress(from):
		return TxMint
	case IsZeroAddress(to):
		return TxBurn
	default:
		return TxTransfer
	}
}

// IsZeroAddress reports whether addr is the EVM zero address, ignoring
// case. addr must carry the "0x" prefix; without it the result is false.
func IsZeroAddress(addr string) bool {
	normalized := NormalizeCase(addr)
	if normalized == "" {
		return false
	}
	for _, c := range normalized[2:] {
		if c != '0' {
			return false
		}
	}
	return len(normalized) == len(ZeroAddress)
}

// LendingMarket describes a single fixed-rate bond market.
type LendingMarket struct {
	ID                 string   `json:"id"`
	CurrencyBytes32    string   `json:"currency_bytes32"`
	MaturityEpoch      int64    `json:"maturity_epoch"`
	IsActive           bool     `json:"is_active"`
	LastLendUnitPrice  *float64 `json:"last_lend_unit_price,omitempty"`
	LastBorrowUnitPrice *float64 `json:"last_borrow_unit_price,omitempty"`
	Volume             *string  `json:"volume,omitempty"`
}

// OrderBookEntry is a single priced order with its pre-computed APR.
type OrderBookEntry struct {
	Price  float64 `json:"price"`
	APR    float64 `json:"apr"`
	Amount string  `json:"amount"`
}

// OrderBook splits orders into descending-price lend orders and
// ascending-price borrow orders.
type OrderBook struct {
	LendOrders   []OrderBookEntry `json:"lend_orders"`
	BorrowOrders []OrderBookEntry `json:"borrow_orders"`
}

// HolderInfo is a single token-holder balance entry.
type HolderInfo struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// PriceData is a partial price quote; every field is optional so a
// degraded upstream response can still be represented.
type PriceData struct {
	PriceUSD       *float64 `json:"price_usd,omitempty"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`
	Volume24h      *float64 `json:"volume_24h,omitempty"`
	LiquidityUSD   *float64 `json:"liquidity_usd,omitempty"`
}

// MetricSnapshot is one fixed-cadence history record.
type MetricSnapshot struct {
	Timestamp  int64   `json:"timestamp"`
	TCR        float64 `json:"tcr"`
	Supply     float64 `json:"supply"`
	Liquidity  float64 `json:"liquidity"`
	Holders    uint64  `json:"holders"`
	LendAPR    float64 `json:"lend_apr"`
	BorrowAPR  float64 `json:"borrow_apr"`
}

// CircuitStateName is one of the three breaker states.
type CircuitStateName string

const (
	StateClosed   CircuitStateName = "Closed"
	StateOpen     CircuitStateName = "Open"
	StateHalfOpen CircuitStateName = "HalfOpen"
)

// CircuitState is a point-in-time view of a breaker's state, exposed
// read-only to callers (e.g. the health endpoint).
type CircuitState struct {
	State           CircuitStateName `json:"state"`
	FailureCount    int              `json:"failure_count"`
	LastFailureAt   *int64           `json:"last_failure_at,omitempty"`
	LastTransitionAt int64           `json:"last_transition_at"`
}

// APRFromUnitPrice applies the bond-price-to-APR formula: price is a
// basis-point bond price in [0, 10000]; daysToMaturity must be positive.
// Invalid prices (<= 0, > 10000) or non-positive maturities yield 0.
func APRFromUnitPrice(price float64, daysToMaturity float64) float64 {
	if price <= 0 || price > 10000 || daysToMaturity <= 0 {
		return 0
	}
	apr := ((10000/price)-1) * 365 / daysToMaturity * 100
	if apr < 0 {
		return 0
	}
	return apr
}
