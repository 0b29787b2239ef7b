package api

import (
	"context"
	"sync"
	"time"

	"usdfcterminal/domain"
)

// GetPrice reads the configured primary DEX pool's current price,
// liquidity, and 24h change.
func (f *Facade) GetPrice(ctx context.Context) (domain.PriceData, error) {
	info, err := cachedCall(ctx, f.breakers, f.priceCache, endpointDEX, "price:"+f.pools.PrimaryPool, "price", "dex", "pool_info",
		func(ctx context.Context) (domain.PriceData, error) {
			pool, err := f.clients.DEX.PoolInfo(ctx, f.pools.PrimaryPool)
			if err != nil {
				return domain.PriceData{}, err
			}
			price, liquidity, change := pool.PriceUSD, pool.LiquidityUSD, pool.PriceChange24h
			return domain.PriceData{
				PriceUSD:       &price,
				PriceChange24h: &change,
				LiquidityUSD:   &liquidity,
			}, nil
		})
	return info, err
}

// requiredChild is one of get_protocol_metrics' child reads whose
// failure fails the whole composite.
type requiredChild struct {
	name string
	err  error
}

// GetProtocolMetrics assembles ProtocolMetrics by issuing its RPC child
// reads concurrently, per §4.6: required children (supply, collateral,
// oracle price, debt, active troves) fail the composite; optional
// children (stability pool / active pool balances) degrade to "0".
func (f *Facade) GetProtocolMetrics(ctx context.Context) (domain.ProtocolMetrics, error) {
	var (
		wg                                            sync.WaitGroup
		supply, collateral, oraclePrice               string
		stabilityPool, activePool                     string = "0", "0"
		activeTroves                                  uint64
		debt                                           string
		debtIsProxy                                    bool
		supplyErr, collateralErr, priceErr, trovesErr, debtErr error
	)
	wg.Add(5)
	go func() {
		defer wg.Done()
		supply, supplyErr = f.getTotalSupply(ctx)
	}()
	go func() {
		defer wg.Done()
		collateral, collateralErr = f.getTotalCollateral(ctx)
	}()
	go func() {
		defer wg.Done()
		oraclePrice, priceErr = f.getOraclePrice(ctx)
	}()
	go func() {
		defer wg.Done()
		activeTroves, trovesErr = f.getActiveTroveCount(ctx)
	}()
	go func() {
		defer wg.Done()
		debt, debtIsProxy, debtErr = f.getTotalDebt(ctx)
	}()

	var wgOptional sync.WaitGroup
	wgOptional.Add(2)
	go func() {
		defer wgOptional.Done()
		if v, err := f.getStabilityPoolBalance(ctx); err == nil {
			stabilityPool = v
		}
	}()
	go func() {
		defer wgOptional.Done()
		if v, err := f.getActivePoolBalance(ctx); err == nil {
			activePool = v
		}
	}()

	wg.Wait()
	wgOptional.Wait()

	for _, failure := range []requiredChild{
		{"total_supply", supplyErr},
		{"total_collateral", collateralErr},
		{"oracle_price", priceErr},
		{"active_trove_count", trovesErr},
		{"total_debt", debtErr},
	} {
		if failure.err != nil {
			return domain.ProtocolMetrics{}, failure.err
		}
	}

	tcr, err := tcrFromDecimals(collateral, oraclePrice, debt)
	if err != nil {
		return domain.ProtocolMetrics{}, err
	}

	return domain.ProtocolMetrics{
		TotalSupply:          supply,
		CirculatingSupply:    supply,
		TotalCollateral:      collateral,
		ActiveTroves:         activeTroves,
		TCR:                  tcr,
		StabilityPoolBalance: stabilityPool,
		TreasuryBalance:      activePool,
		DebtIsProxy:          debtIsProxy,
	}, nil
}

func (f *Facade) getTotalSupply(ctx context.Context) (string, error) {
	return cachedCall(ctx, f.breakers, f.supplyCache, endpointRPC, "total_supply", "total_supply", "rpc", "total_supply",
		f.clients.RPC.TotalSupply)
}

func (f *Facade) getTotalCollateral(ctx context.Context) (string, error) {
	return cachedCall(ctx, f.breakers, f.collateralCache, endpointRPC, "total_collateral", "total_collateral", "rpc", "total_collateral",
		f.clients.RPC.TotalCollateral)
}

func (f *Facade) getOraclePrice(ctx context.Context) (string, error) {
	return cachedCall(ctx, f.breakers, f.oraclePriceCache, endpointRPC, "oracle_price", "oracle_price", "rpc", "oracle_price",
		f.clients.RPC.OraclePrice)
}

func (f *Facade) getActiveTroveCount(ctx context.Context) (uint64, error) {
	return cachedCall(ctx, f.breakers, f.activeTrovesCache, endpointRPC, "active_trove_count", "active_trove_count", "rpc", "active_trove_count",
		f.clients.RPC.ActiveTroveCount)
}

func (f *Facade) getStabilityPoolBalance(ctx context.Context) (string, error) {
	return cachedCall(ctx, f.breakers, f.stabilityPoolCache, endpointRPC, "stability_pool_balance", "stability_pool_balance", "rpc", "stability_pool_balance",
		f.clients.RPC.StabilityPoolBalance)
}

func (f *Facade) getActivePoolBalance(ctx context.Context) (string, error) {
	return cachedCall(ctx, f.breakers, f.activePoolCache, endpointRPC, "active_pool_balance", "active_pool_balance", "rpc", "active_pool_balance",
		f.clients.RPC.ActivePoolBalance)
}

// getTotalDebt reads system debt through the breaker only, never the
// cache (§8 scenario 2: "no cache entry for debt").
func (f *Facade) getTotalDebt(ctx context.Context) (string, bool, error) {
	result, err := breakerCall(ctx, f.breakers, endpointRPC, "rpc", "total_debt", f.clients.RPC.TotalDebt)
	if err != nil {
		return "", false, err
	}
	return result.Debt, result.IsProxy, nil
}

func tcrFromDecimals(collateral, price, debt string) (float64, error) {
	collF, err := parseDecimalFloat(collateral)
	if err != nil {
		return 0, err
	}
	priceF, err := parseDecimalFloat(price)
	if err != nil {
		return 0, err
	}
	debtF, err := parseDecimalFloat(debt)
	if err != nil {
		return 0, err
	}
	if debtF == 0 {
		return domain.InfinityTCR, nil
	}
	return collF * priceF / debtF * 100, nil
}

// DependencyHealth reports one upstream dependency's probe result.
type DependencyHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthReport is the aggregate health-probe result.
type HealthReport struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
}

// GetHealth concurrently probes every upstream and the durable store,
// per §4.6: overall status is "healthy" iff RPC, Explorer, and the
// durable store are all OK, else "degraded".
func (f *Facade) GetHealth(ctx context.Context) HealthReport {
	deps := make(map[string]DependencyHealth, 5)
	var mu sync.Mutex
	var wg sync.WaitGroup

	probe := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		start := time.Now()
		err := fn(ctx)
		latency := time.Since(start).Milliseconds()
		h := DependencyHealth{Status: "ok", LatencyMs: latency}
		if err != nil {
			h.Status = "error"
			h.Error = err.Error()
		}
		mu.Lock()
		deps[name] = h
		mu.Unlock()
	}

	wg.Add(5)
	go probe("rpc", func(ctx context.Context) error {
		_, err := f.clients.RPC.BlockNumber(ctx)
		return err
	})
	go probe("explorer", func(ctx context.Context) error {
		_, err := f.clients.Explorer.HolderCount(ctx, f.tokens.USDFCToken)
		return err
	})
	go probe("indexer", func(ctx context.Context) error {
		_, err := f.clients.Indexer.LendingMarkets(ctx)
		return err
	})
	go probe("dex", func(ctx context.Context) error {
		_, err := f.clients.DEX.PoolInfo(ctx, f.pools.PrimaryPool)
		return err
	})
	go probe("durable_store", func(ctx context.Context) error {
		return f.store.CheckHealth(ctx)
	})
	wg.Wait()

	status := "degraded"
	if deps["rpc"].Status == "ok" && deps["explorer"].Status == "ok" && deps["durable_store"].Status == "ok" {
		status = "healthy"
	}
	return HealthReport{Status: status, Dependencies: deps}
}
