package api

import (
	"context"

	"usdfcterminal/domain"
)

// AddressInfo is the composite view of a single address: its normalized
// form, current token balance, and recent transfer history.
type AddressInfo struct {
	Address      string               `json:"address"`
	Delegated    string               `json:"delegated,omitempty"`
	Balance      string               `json:"balance"`
	Transactions []domain.Transaction `json:"transactions"`
}

// maxAddressTransfers bounds how many per-address transfers are fetched
// for the composite address view.
const maxAddressTransfers = 50

// GetAddressInfo normalizes address to its canonical EVM form and
// returns its USDFC balance and recent transfers.
func (f *Facade) GetAddressInfo(ctx context.Context, address string) (AddressInfo, error) {
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return AddressInfo{}, err
	}
	delegated, _ := domain.EVMToDelegated(normalized)

	return cachedCall(ctx, f.breakers, f.addressCache, endpointExplorer, "address:"+normalized, "address_info", "explorer", "address_info",
		func(ctx context.Context) (AddressInfo, error) {
			balance, err := f.clients.Explorer.TokenBalance(ctx, normalized, f.tokens.USDFCToken)
			if err != nil {
				return AddressInfo{}, err
			}
			txs, err := f.clients.Explorer.AddressTransfers(ctx, normalized, f.tokens.USDFCToken, maxAddressTransfers)
			if err != nil {
				return AddressInfo{}, err
			}
			return AddressInfo{
				Address:      normalized,
				Delegated:    delegated,
				Balance:      balance,
				Transactions: txs,
			}, nil
		})
}

// NormalizeAddress exposes domain.NormalizeAddress through the façade
// for callers that only need the conversion, not the full composite
// read (e.g. request validation in the REST binding).
func (f *Facade) NormalizeAddress(address string) (string, error) {
	return domain.NormalizeAddress(address)
}
