// Package api implements the Read API façade (C6): the cache/breaker/
// upstream composition policy, composite reads, address normalization,
// the health probe, and the REST binding under /api/v1/....
package api

import (
	"context"
	"time"

	"usdfcterminal/breaker"
	"usdfcterminal/cache"
	"usdfcterminal/clients/dex"
	"usdfcterminal/clients/explorer"
	"usdfcterminal/clients/indexer"
	"usdfcterminal/clients/rpc"
	"usdfcterminal/domain"
	"usdfcterminal/history"
)

// Endpoint names the façade uses as circuit-breaker keys, one per
// upstream client.
const (
	endpointRPC      = "rpc"
	endpointExplorer = "explorer"
	endpointIndexer  = "indexer"
	endpointDEX      = "dex"
)

// Per-type cache TTLs, tuned to the freshness bands in the component
// design: ultra-fresh order book, high-churn metrics/recent
// transactions, medium troves/addresses/price, slow lending markets,
// static-ish holders.
const (
	ttlOrderBook = 5 * time.Second
	ttlMetrics   = 15 * time.Second
	ttlTroves    = 30 * time.Second
	ttlPrice     = 30 * time.Second
	ttlAddress   = 30 * time.Second
	ttlLending   = 60 * time.Second
	ttlHolders   = 300 * time.Second
)

// maxTroveScan bounds how many sorted-trove records GetTrove scans
// looking for a single address, since the chain RPC surface offers only
// the batch multi-getter, never a single-trove read.
const maxTroveScan = 500

// Clients groups the four upstream client handles a Facade composes.
type Clients struct {
	RPC      *rpc.Client
	Explorer *explorer.Client
	Indexer  *indexer.Client
	DEX      *dex.Client
}

// Facade is the C6 Read API façade: it owns one cache instance per
// result type, the shared breaker registry, and the history engine's
// ring/store, and exposes typed operations consumed by both the REST
// binding and any in-process caller.
type Facade struct {
	clients   Clients
	breakers  *breaker.Registry
	ring      *history.Ring
	store     *history.Store
	pools     PoolConfig
	tokens    TokenConfig
	now       func() time.Time

	priceCache     *cache.TTLCache[domain.PriceData]
	trovesCache    *cache.TTLCache[[]domain.Trove]
	txCache        *cache.TTLCache[[]domain.Transaction]
	addressCache   *cache.TTLCache[AddressInfo]
	lendingCache   *cache.TTLCache[[]domain.LendingMarket]
	orderBookCache *cache.TTLCache[domain.OrderBook]
	holdersCache   *cache.TTLCache[[]domain.HolderInfo]

	// Individual RPC child caches for the get_protocol_metrics composite
	// read (§4.6: "each [child] subject to its own cache and breaker").
	// TotalDebt is deliberately uncached (§8 scenario 2).
	supplyCache        *cache.TTLCache[string]
	collateralCache    *cache.TTLCache[string]
	oraclePriceCache   *cache.TTLCache[string]
	activeTrovesCache  *cache.TTLCache[uint64]
	stabilityPoolCache *cache.TTLCache[string]
	activePoolCache    *cache.TTLCache[string]
}

// PoolConfig names the DEX pools the façade reads prices and liquidity
// from.
type PoolConfig struct {
	PrimaryPool string // e.g. USDFC/WFIL, used for /api/v1/price and the liquidity component of history
}

// TokenConfig names the on-chain token address the explorer/indexer
// operations are scoped to.
type TokenConfig struct {
	USDFCToken      string
	CurrencyUSDFC   string // bytes32-ish currency identifier used by the indexer
}

// New constructs a Facade. now defaults to time.Now when nil.
func New(clients Clients, breakers *breaker.Registry, ring *history.Ring, store *history.Store, pools PoolConfig, tokens TokenConfig, now func() time.Time) *Facade {
	if now == nil {
		now = time.Now
	}
	return &Facade{
		clients:  clients,
		breakers: breakers,
		ring:     ring,
		store:    store,
		pools:    pools,
		tokens:   tokens,
		now:      now,

		priceCache:     cache.New[domain.PriceData](ttlPrice, now),
		trovesCache:    cache.New[[]domain.Trove](ttlTroves, now),
		txCache:        cache.New[[]domain.Transaction](ttlMetrics, now),
		addressCache:   cache.New[AddressInfo](ttlAddress, now),
		lendingCache:   cache.New[[]domain.LendingMarket](ttlLending, now),
		orderBookCache: cache.New[domain.OrderBook](ttlOrderBook, now),
		holdersCache:   cache.New[[]domain.HolderInfo](ttlHolders, now),

		supplyCache:        cache.New[string](ttlMetrics, now),
		collateralCache:    cache.New[string](ttlMetrics, now),
		oraclePriceCache:   cache.New[string](ttlPrice, now),
		activeTrovesCache:  cache.New[uint64](ttlMetrics, now),
		stabilityPoolCache: cache.New[string](ttlMetrics, now),
		activePoolCache:    cache.New[string](ttlMetrics, now),
	}
}

// PurgeCaches runs Purge on every cache instance; intended to be driven
// by a single ticker per spec §4.3 ("a background task runs purge() on
// every instance every 60s").
func (f *Facade) PurgeCaches() {
	f.priceCache.Purge()
	f.trovesCache.Purge()
	f.txCache.Purge()
	f.addressCache.Purge()
	f.lendingCache.Purge()
	f.orderBookCache.Purge()
	f.holdersCache.Purge()
	f.supplyCache.Purge()
	f.collateralCache.Purge()
	f.oraclePriceCache.Purge()
	f.activeTrovesCache.Purge()
	f.stabilityPoolCache.Purge()
	f.activePoolCache.Purge()
}

// Sources adapts the façade to history.Sources so the collector can
// drive fixed-cadence snapshots through the same cache/breaker policy
// every other reader uses.
type Sources struct{ f *Facade }

// HistorySources returns the history.Sources view of this façade.
func (f *Facade) HistorySources() Sources { return Sources{f: f} }

func (s Sources) TCR(ctx context.Context) (float64, error) {
	metrics, err := s.f.GetProtocolMetrics(ctx)
	if err != nil {
		return 0, err
	}
	return metrics.TCR, nil
}

func (s Sources) TotalSupply(ctx context.Context) (float64, error) {
	metrics, err := s.f.GetProtocolMetrics(ctx)
	if err != nil {
		return 0, err
	}
	return parseDecimalFloat(metrics.TotalSupply)
}

func (s Sources) Liquidity(ctx context.Context) (float64, error) {
	price, err := s.f.GetPrice(ctx)
	if err != nil {
		return 0, err
	}
	if price.LiquidityUSD == nil {
		return 0, nil
	}
	return *price.LiquidityUSD, nil
}

func (s Sources) HolderCount(ctx context.Context) (uint64, error) {
	return s.f.GetHolderCount(ctx)
}

func (s Sources) BestAPRs(ctx context.Context) (float64, float64, error) {
	markets, err := s.f.GetLendingMarkets(ctx)
	if err != nil {
		return 0, 0, err
	}
	var lendAPR, borrowAPR float64
	haveLend, haveBorrow := false, false
	for _, m := range markets {
		if !m.IsActive {
			continue
		}
		if m.LastLendUnitPrice != nil {
			apr := domain.APRFromUnitPrice(*m.LastLendUnitPrice, daysToMaturity(m.MaturityEpoch, s.f.now().Unix()))
			if !haveLend || apr > lendAPR {
				lendAPR, haveLend = apr, true
			}
		}
		if m.LastBorrowUnitPrice != nil {
			apr := domain.APRFromUnitPrice(*m.LastBorrowUnitPrice, daysToMaturity(m.MaturityEpoch, s.f.now().Unix()))
			if !haveBorrow || apr < borrowAPR {
				borrowAPR, haveBorrow = apr, true
			}
		}
	}
	return lendAPR, borrowAPR, nil
}

func daysToMaturity(maturityEpoch, nowUnix int64) float64 {
	return float64(maturityEpoch-nowUnix) / 86400
}
