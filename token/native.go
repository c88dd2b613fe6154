// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"

	"github.com/luxfi/pairpool/state"
)

// Budget is the native value attached to a call that has not yet been
// accounted for by an instruction.
type Budget struct {
	remaining *uint256.Int
}

// NewBudget returns a budget of value. A nil value is an empty budget.
func NewBudget(value *uint256.Int) *Budget {
	if value == nil {
		return &Budget{remaining: new(uint256.Int)}
	}
	return &Budget{remaining: value.Clone()}
}

// Consume takes amount from the budget
func (b *Budget) Consume(amount *uint256.Int) error {
	if amount.Gt(b.remaining) {
		return fmt.Errorf("%w: remaining=%s, amount=%s", ErrInsufficientValue, b.remaining, amount)
	}
	b.remaining.Sub(b.remaining, amount)
	return nil
}

// Remaining returns the unconsumed value
func (b *Budget) Remaining() *uint256.Int { return b.remaining.Clone() }

// NativeToken moves native balances in the state db
type NativeToken struct {
	db     state.StateDB
	budget *Budget
}

var _ Token = (*NativeToken)(nil)

// NewNativeToken binds the native currency to budget
func NewNativeToken(db state.StateDB, budget *Budget) *NativeToken {
	if budget == nil {
		budget = NewBudget(nil)
	}
	return &NativeToken{db: db, budget: budget}
}

// Address returns the native asset identifier
func (n *NativeToken) Address() common.Address { return Native }

// BalanceOf returns the native balance of holder
func (n *NativeToken) BalanceOf(holder common.Address) *uint256.Int {
	return n.db.GetBalance(holder)
}

// Transfer moves native balance from from to to
func (n *NativeToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if _, err := n.db.SubBalance(from, amount, tracing.BalanceChangeTransfer); err != nil {
		return err
	}
	n.db.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	return nil
}

// TransferFrom never pulls funds. Native value arrives attached to the call,
// so a receipt is validated against and consumes the call's budget.
func (n *NativeToken) TransferFrom(_, _, _ common.Address, amount *uint256.Int) error {
	return n.budget.Consume(amount)
}
