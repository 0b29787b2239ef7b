package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromICR(t *testing.T) {
	assert.Equal(t, TroveActive, StatusFromICR(150))
	assert.Equal(t, TroveActive, StatusFromICR(200))
	assert.Equal(t, TroveAtRisk, StatusFromICR(125))
	assert.Equal(t, TroveAtRisk, StatusFromICR(149.99))
	assert.Equal(t, TroveCritical, StatusFromICR(110))
	assert.Equal(t, TroveClosed, StatusFromICR(109.99))
	assert.Equal(t, TroveClosed, StatusFromICR(0))
}

func TestClassifyTransfer(t *testing.T) {
	zero := ZeroAddress
	other := "0x1111111111111111111111111111111111111111"
	assert.Equal(t, TxMint, ClassifyTransfer(zero, other))
	assert.Equal(t, TxBurn, ClassifyTransfer(other, zero))
	assert.Equal(t, TxTransfer, ClassifyTransfer(other, other))
}

func TestAPRFromUnitPrice(t *testing.T) {
	assert.InDelta(t, 0, APRFromUnitPrice(0, 30), 1e-9)
	assert.InDelta(t, 0, APRFromUnitPrice(10001, 30), 1e-9)
	assert.InDelta(t, 0, APRFromUnitPrice(9500, 0), 1e-9)
	got := APRFromUnitPrice(9500, 30)
	assert.Greater(t, got, 0.0)
}

func TestDecimalRoundTrip(t *testing.T) {
	cases := []string{"0x0", "0xde0b6b3a7640000", "0x1", "0x3635c9adc5dea00000"}
	for _, hexValue := range cases {
		decimal, err := DecimalFromWeiHex(hexValue)
		require.NoError(t, err)
		backToHex, err := WeiHexFromDecimal(decimal)
		require.NoError(t, err)

		redecoded, err := DecimalFromWeiHex(backToHex)
		require.NoError(t, err)
		assert.Equal(t, decimal, redecoded)
	}
}

func TestDecimalFromWeiHexKnownValue(t *testing.T) {
	decimal, err := DecimalFromWeiHex("0xde0b6b3a7640000")
	require.NoError(t, err)
	assert.Equal(t, "1.000000000000000000", decimal)
}

func TestAddressRoundTrip(t *testing.T) {
	evm := "0x1234567890abcdef1234567890abcdef12345678"
	delegated, err := EVMToDelegated(evm)
	require.NoError(t, err)
	assert.True(t, IsDelegatedAddress(delegated))

	back, err := DelegatedToEVM(delegated)
	require.NoError(t, err)
	assert.Equal(t, evm, back)
}

func TestNormalizeAddressRejectsGarbage(t *testing.T) {
	_, err := NormalizeAddress("not-an-address")
	assert.Error(t, err)
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress(ZeroAddress))
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0x1111111111111111111111111111111111111111"))
}
