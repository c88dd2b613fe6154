// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token provides the transfer capabilities a pair pool settles
// through: the native currency, fungible tokens held in contract storage,
// and a wrapped native token.
package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/pairpool/state"
)

// Native is the asset identifier of the native currency
var Native = common.Address{}

// IsNative reports whether asset is the native currency
func IsNative(asset common.Address) bool { return asset == Native }

// Errors - Token
var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientValue     = errors.New("insufficient attached value")
	ErrUnknownToken          = errors.New("unknown token")
	ErrPermitExpired         = errors.New("permit expired")
	ErrInvalidSignature      = errors.New("invalid permit signature")
	ErrZeroAddress           = errors.New("zero address")
)

// Token is the transfer capability shared by native and fungible assets
type Token interface {
	Address() common.Address
	BalanceOf(holder common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	// TransferFrom moves amount from from to to on behalf of spender.
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// Permitter grants allowances from off-chain signatures
type Permitter interface {
	Permit(owner, spender common.Address, value *uint256.Int, deadline uint64, v uint8, r, s [32]byte, now uint64) error
}

// Wrapper converts between the native currency and a wrapped token
type Wrapper interface {
	Token
	Deposit(from common.Address, amount *uint256.Int) error
	Withdraw(holder common.Address, amount *uint256.Int) error
}

// Resolver maps an asset to its transfer capability for one call
type Resolver interface {
	Resolve(asset common.Address, budget *Budget) (Token, error)
}

// Registry resolves registered fungible tokens and binds the native
// currency to a call's value budget.
type Registry struct {
	db     state.StateDB
	tokens map[common.Address]Token
}

var _ Resolver = (*Registry)(nil)

// NewRegistry returns an empty registry over db
func NewRegistry(db state.StateDB) *Registry {
	return &Registry{db: db, tokens: make(map[common.Address]Token)}
}

// Register adds t under its address
func (r *Registry) Register(t Token) {
	r.tokens[t.Address()] = t
}

// Resolve returns the token for asset
func (r *Registry) Resolve(asset common.Address, budget *Budget) (Token, error) {
	if IsNative(asset) {
		return NewNativeToken(r.db, budget), nil
	}
	t, ok := r.tokens[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, asset.Hex())
	}
	return t, nil
}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, part := range id {
		h.Write(part)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}
