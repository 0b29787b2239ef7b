package api

import (
	"context"

	"usdfcterminal/domain"
)

// maxHolderScan bounds how many holders are fetched before local
// pagination (the upstream ignores a limit parameter, §4.2.2).
const maxHolderScan = 200

// GetHolders reads up to limit token holders starting at offset.
func (f *Facade) GetHolders(ctx context.Context, limit, offset int) ([]domain.HolderInfo, error) {
	limit, offset = clampPagination(limit, offset)
	all, err := cachedCall(ctx, f.breakers, f.holdersCache, endpointExplorer, "holders_page", "holders", "explorer", "holders",
		func(ctx context.Context) ([]domain.HolderInfo, error) {
			return f.clients.Explorer.Holders(ctx, f.tokens.USDFCToken, maxHolderScan)
		})
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

// GetHolderCount reads the token's total holder count, breaker-gated
// but uncached (it is cheap and changes with every mint/burn).
func (f *Facade) GetHolderCount(ctx context.Context) (uint64, error) {
	return breakerCall(ctx, f.breakers, endpointExplorer, "explorer", "holder_count",
		func(ctx context.Context) (uint64, error) {
			return f.clients.Explorer.HolderCount(ctx, f.tokens.USDFCToken)
		})
}
