package api

import (
	"context"
	"fmt"

	"usdfcterminal/domain"
)

// GetLendingMarkets reads all fixed-rate bond markets ordered by
// maturity.
func (f *Facade) GetLendingMarkets(ctx context.Context) ([]domain.LendingMarket, error) {
	return cachedCall(ctx, f.breakers, f.lendingCache, endpointIndexer, "lending_markets", "lending_markets", "indexer", "lending_markets",
		f.clients.Indexer.LendingMarkets)
}

// GetOrderBook reads open orders for currencyBytes32 and splits them by
// side per §3/§4.2.3.
func (f *Facade) GetOrderBook(ctx context.Context, currencyBytes32 string) (domain.OrderBook, error) {
	key := fmt.Sprintf("order_book:%s", currencyBytes32)
	nowUnix := f.now().Unix()
	return cachedCall(ctx, f.breakers, f.orderBookCache, endpointIndexer, key, "order_book", "indexer", "order_book",
		func(ctx context.Context) (domain.OrderBook, error) {
			return f.clients.Indexer.OrderBook(ctx, currencyBytes32, nowUnix)
		})
}
