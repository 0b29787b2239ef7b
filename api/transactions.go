package api

import (
	"context"
	"fmt"
	"sort"

	"usdfcterminal/domain"
)

// maxTransactionScan bounds how many transactions are pulled from each
// source before local pagination, mirroring the explorer/indexer
// clients' own "take first N locally" idiom (§4.2.2, Open Question 9b).
const maxTransactionScan = 200

// GetTransactions merges recent token transfers (explorer) with recent
// DeFi-specific ledger events (indexer: deposits, withdrawals,
// liquidations, redemptions), de-duplicates by hash, sorts newest
// first, and paginates locally.
func (f *Facade) GetTransactions(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	limit, offset = clampPagination(limit, offset)
	key := fmt.Sprintf("transactions:%d:%d", offset, limit)
	merged, err := cachedCall(ctx, f.breakers, f.txCache, endpointExplorer, key, "transactions", "explorer", "recent_transfers",
		func(ctx context.Context) ([]domain.Transaction, error) {
			transfers, err := f.clients.Explorer.RecentTransfers(ctx, f.tokens.USDFCToken, maxTransactionScan)
			if err != nil {
				return nil, err
			}
			var indexed []domain.Transaction
			if indexedResult, indexedErr := breakerCall(ctx, f.breakers, endpointIndexer, "indexer", "recent_transactions",
				func(ctx context.Context) ([]domain.Transaction, error) {
					return f.clients.Indexer.RecentTransactions(ctx, maxTransactionScan)
				}); indexedErr == nil {
				indexed = indexedResult
			}
			return dedupeAndSort(transfers, indexed), nil
		})
	if err != nil {
		return nil, err
	}
	return paginate(merged, limit, offset), nil
}

func dedupeAndSort(a, b []domain.Transaction) []domain.Transaction {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]domain.Transaction, 0, len(a)+len(b))
	for _, tx := range a {
		if seen[tx.Hash] {
			continue
		}
		seen[tx.Hash] = true
		out = append(out, tx)
	}
	for _, tx := range b {
		if seen[tx.Hash] {
			continue
		}
		seen[tx.Hash] = true
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
