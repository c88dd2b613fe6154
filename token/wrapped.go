// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"

	"github.com/luxfi/pairpool/state"
)

// Wrapped is a fungible token backed one to one by native currency held at
// its own address.
type Wrapped struct {
	*Fungible
}

var _ Wrapper = (*Wrapped)(nil)

// NewWrapped returns the wrapped native token at address
func NewWrapped(db state.StateDB, address common.Address, opts ...FungibleOption) *Wrapped {
	return &Wrapped{Fungible: NewFungible(db, address, opts...)}
}

// Deposit locks amount of from's native balance and mints the wrapped token
func (w *Wrapped) Deposit(from common.Address, amount *uint256.Int) error {
	if _, err := w.db.SubBalance(from, amount, tracing.BalanceChangeTransfer); err != nil {
		return err
	}
	w.db.AddBalance(w.address, amount, tracing.BalanceChangeTransfer)
	return w.Mint(from, amount)
}

// Withdraw burns amount of holder's wrapped token and releases the native
// currency back to holder.
func (w *Wrapped) Withdraw(holder common.Address, amount *uint256.Int) error {
	if err := w.Burn(holder, amount); err != nil {
		return err
	}
	if _, err := w.db.SubBalance(w.address, amount, tracing.BalanceChangeTransfer); err != nil {
		return err
	}
	w.db.AddBalance(holder, amount, tracing.BalanceChangeTransfer)
	return nil
}
