package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeSymbol is the symbol of the ledger's native asset
const NativeSymbol = "HBAR"

// NativeDecimals is the precision of the native asset (tinybars)
const NativeDecimals = 8

// NativeAddress is the pseudo-address quote services use for the native asset
var NativeAddress = common.Address{}

// Token is read-only reference data for a fungible asset
type Token struct {
	ID       string          `json:"id"`
	Address  common.Address  `json:"address"`
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

// HBAR is the native asset
var HBAR = Token{
	ID:       NativeSymbol,
	Address:  NativeAddress,
	Symbol:   NativeSymbol,
	Decimals: NativeDecimals,
}

// IsNative returns true if the token is the ledger's native asset
func (t Token) IsNative() bool {
	return strings.EqualFold(t.ID, NativeSymbol) || (t.ID == "" && t.Address == NativeAddress)
}

// EVMAddress returns the token's 20-byte address, deriving it from the ID when unset
func (t Token) EVMAddress() (common.Address, error) {
	if t.IsNative() {
		return NativeAddress, nil
	}
	if t.Address != (common.Address{}) {
		return t.Address, nil
	}
	return TokenIDToAddress(t.ID)
}

// FormatAmount renders a raw integer amount in whole token units
func (t Token) FormatAmount(raw decimal.Decimal) string {
	return raw.Shift(-t.Decimals).String()
}

// ParseAmount converts a human amount ("1.5") into raw integer units
func (t Token) ParseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	raw := d.Shift(t.Decimals)
	if !raw.Equal(raw.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimals", amount, t.Decimals)
	}
	return raw, nil
}

// TokenIDToAddress converts a shard.realm.num ID into its long-zero address
func TokenIDToAddress(id string) (common.Address, error) {
	parts := strings.Split(strings.TrimSpace(id), ".")
	if len(parts) != 3 {
		return common.Address{}, fmt.Errorf("invalid entity id %q", id)
	}

	shard, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid shard in %q: %w", id, err)
	}
	realm, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid realm in %q: %w", id, err)
	}
	num, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid num in %q: %w", id, err)
	}

	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(shard))
	binary.BigEndian.PutUint64(addr[4:12], realm)
	binary.BigEndian.PutUint64(addr[12:20], num)
	return addr, nil
}

// AddressToTokenID converts a long-zero address back into shard.realm.num form
func AddressToTokenID(addr common.Address) string {
	shard := binary.BigEndian.Uint32(addr[0:4])
	realm := binary.BigEndian.Uint64(addr[4:12])
	num := binary.BigEndian.Uint64(addr[12:20])
	return fmt.Sprintf("%d.%d.%d", shard, realm, num)
}

// IsLongZero reports whether the address encodes an entity ID rather than an ECDSA alias
func IsLongZero(addr common.Address) bool {
	for _, b := range addr[:12] {
		if b != 0 {
			return false
		}
	}
	return addr != NativeAddress
}
