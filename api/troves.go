package api

import (
	"context"
	"fmt"

	"usdfcterminal/clients"
	"usdfcterminal/clients/rpc"
	"usdfcterminal/domain"
)

// GetTroves reads up to limit troves starting at offset, ordered as the
// sorted-troves contract returns them, with each trove's ICR derived
// from the current oracle price.
func (f *Facade) GetTroves(ctx context.Context, limit, offset int) ([]domain.Trove, error) {
	limit, offset = clampPagination(limit, offset)
	price, err := f.getOraclePrice(ctx)
	if err != nil {
		return nil, err
	}
	priceF, err := parseDecimalFloat(price)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("troves:%d:%d", offset, limit)
	return cachedCall(ctx, f.breakers, f.trovesCache, endpointRPC, key, "troves", "rpc", "get_multiple_sorted_troves",
		func(ctx context.Context) ([]domain.Trove, error) {
			records, err := f.clients.RPC.GetMultipleSortedTroves(ctx, int64(offset), uint64(limit))
			if err != nil {
				return nil, err
			}
			out := make([]domain.Trove, 0, len(records))
			for _, r := range records {
				trove, err := troveFromRecord(r, priceF)
				if err != nil {
					return nil, err
				}
				out = append(out, trove)
			}
			return out, nil
		})
}

// GetTrove scans the sorted-troves batch read for a single address,
// since the chain RPC surface exposes no single-trove selector.
func (f *Facade) GetTrove(ctx context.Context, address string) (domain.Trove, error) {
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return domain.Trove{}, err
	}
	price, err := f.getOraclePrice(ctx)
	if err != nil {
		return domain.Trove{}, err
	}
	priceF, err := parseDecimalFloat(price)
	if err != nil {
		return domain.Trove{}, err
	}

	records, err := breakerCall(ctx, f.breakers, endpointRPC, "rpc", "get_multiple_sorted_troves_scan",
		func(ctx context.Context) ([]rpc.SortedTrovesRecord, error) {
			return f.clients.RPC.GetMultipleSortedTroves(ctx, 0, maxTroveScan)
		})
	if err != nil {
		return domain.Trove{}, err
	}
	for _, r := range records {
		if domain.NormalizeCase(r.Owner) == normalized {
			return troveFromRecord(r, priceF)
		}
	}
	return domain.Trove{}, clients.NotFoundError("trove", address)
}

func troveFromRecord(r rpc.SortedTrovesRecord, price float64) (domain.Trove, error) {
	coll, err := parseDecimalFloat(r.Collateral)
	if err != nil {
		return domain.Trove{}, err
	}
	debt, err := parseDecimalFloat(r.Debt)
	if err != nil {
		return domain.Trove{}, err
	}
	icr := float64(domain.InfinityTCR)
	if debt != 0 {
		icr = coll * price / debt * 100
	}
	return domain.Trove{
		Address:    r.Owner,
		Collateral: r.Collateral,
		Debt:       r.Debt,
		ICR:        icr,
		Status:     domain.StatusFromICR(icr),
	}, nil
}
