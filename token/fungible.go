// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/pairpool/state"
	"github.com/luxfi/pairpool/swapmath"
)

// Storage key prefixes for fungible token state
var (
	balancePrefix   = []byte("fbal")
	allowancePrefix = []byte("falw")
	noncePrefix     = []byte("fnon")
	supplyPrefix    = []byte("fsup")
)

// Fungible is an ERC-20 style token whose ledger lives in the storage of
// its own address.
type Fungible struct {
	db      state.StateDB
	address common.Address
	name    string

	// taxBps is withheld from every transfer and burned
	taxBps uint64
}

var (
	_ Token     = (*Fungible)(nil)
	_ Permitter = (*Fungible)(nil)
)

// FungibleOption configures a Fungible
type FungibleOption func(*Fungible)

// WithName sets the name used in the permit domain
func WithName(name string) FungibleOption {
	return func(f *Fungible) { f.name = name }
}

// WithTransferTax withholds bps of every transfer
func WithTransferTax(bps uint64) FungibleOption {
	return func(f *Fungible) { f.taxBps = bps }
}

// NewFungible returns the token at address
func NewFungible(db state.StateDB, address common.Address, opts ...FungibleOption) *Fungible {
	f := &Fungible{db: db, address: address, name: address.Hex()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Address returns the token contract address
func (f *Fungible) Address() common.Address { return f.address }

// Name returns the permit domain name
func (f *Fungible) Name() string { return f.name }

func (f *Fungible) load(key common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(f.db.GetState(f.address, key).Bytes())
}

func (f *Fungible) store(key common.Hash, v *uint256.Int) {
	f.db.SetState(f.address, key, common.Hash(v.Bytes32()))
}

// BalanceOf returns the balance of holder
func (f *Fungible) BalanceOf(holder common.Address) *uint256.Int {
	return f.load(makeStorageKey(balancePrefix, holder.Bytes()))
}

// TotalSupply returns the circulating supply
func (f *Fungible) TotalSupply() *uint256.Int {
	return f.load(makeStorageKey(supplyPrefix))
}

// Allowance returns what spender may move on behalf of owner
func (f *Fungible) Allowance(owner, spender common.Address) *uint256.Int {
	return f.load(makeStorageKey(allowancePrefix, owner.Bytes(), spender.Bytes()))
}

// Nonce returns the next permit nonce of owner
func (f *Fungible) Nonce(owner common.Address) uint64 {
	return f.load(makeStorageKey(noncePrefix, owner.Bytes())).Uint64()
}

// Approve sets the allowance of spender over owner's balance
func (f *Fungible) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	f.store(makeStorageKey(allowancePrefix, owner.Bytes(), spender.Bytes()), amount)
	return nil
}

// Mint creates amount for holder
func (f *Fungible) Mint(holder common.Address, amount *uint256.Int) error {
	supply := f.TotalSupply()
	if _, overflow := supply.AddOverflow(supply, amount); overflow {
		return swapmath.ErrOverflow
	}
	f.store(makeStorageKey(supplyPrefix), supply)
	f.store(makeStorageKey(balancePrefix, holder.Bytes()), new(uint256.Int).Add(f.BalanceOf(holder), amount))
	return nil
}

// Burn destroys amount held by holder
func (f *Fungible) Burn(holder common.Address, amount *uint256.Int) error {
	bal := f.BalanceOf(holder)
	if amount.Gt(bal) {
		return fmt.Errorf("%w: holder=%s, balance=%s, amount=%s", ErrInsufficientBalance, holder.Hex(), bal, amount)
	}
	f.store(makeStorageKey(balancePrefix, holder.Bytes()), bal.Sub(bal, amount))
	supply := f.TotalSupply()
	f.store(makeStorageKey(supplyPrefix), supply.Sub(supply, amount))
	return nil
}

// Transfer moves amount from from to to, less any transfer tax
func (f *Fungible) Transfer(from, to common.Address, amount *uint256.Int) error {
	bal := f.BalanceOf(from)
	if amount.Gt(bal) {
		return fmt.Errorf("%w: holder=%s, balance=%s, amount=%s", ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	tax, err := swapmath.MulDiv(amount, uint256.NewInt(f.taxBps), uint256.NewInt(swapmath.BpsDenominator))
	if err != nil {
		return err
	}
	f.store(makeStorageKey(balancePrefix, from.Bytes()), bal.Sub(bal, amount))
	received := new(uint256.Int).Sub(amount, tax)
	f.store(makeStorageKey(balancePrefix, to.Bytes()), new(uint256.Int).Add(f.BalanceOf(to), received))
	if !tax.IsZero() {
		supply := f.TotalSupply()
		f.store(makeStorageKey(supplyPrefix), supply.Sub(supply, tax))
	}
	return nil
}

// TransferFrom spends spender's allowance over from. An owner moving its own
// balance needs no allowance; a maximal allowance is never decremented.
func (f *Fungible) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if spender != from {
		allowance := f.Allowance(from, spender)
		if amount.Gt(allowance) {
			return fmt.Errorf("%w: owner=%s, spender=%s, allowance=%s, amount=%s",
				ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance, amount)
		}
		if !allowance.Eq(maxAllowance) {
			f.store(makeStorageKey(allowancePrefix, from.Bytes(), spender.Bytes()), allowance.Sub(allowance, amount))
		}
	}
	return f.Transfer(from, to, amount)
}

var maxAllowance = new(uint256.Int).SetAllOne()
