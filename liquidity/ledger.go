// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package liquidity holds the reserves and liquidity positions of a pair pool
// and the proportional mint/burn math over them.
package liquidity

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/pairpool/swapmath"
)

// Errors - Liquidity
var (
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrReserveUnderflow            = errors.New("reserve underflow")
	ErrInvariantViolated           = errors.New("liquidity invariant violated")
)

// Position is one provider's share of the pool
type Position struct {
	Provider common.Address
	Units    *uint256.Int
}

// Ledger owns the reserves, total supply and positions of one pool
type Ledger struct {
	ReserveA       *uint256.Int
	ReserveB       *uint256.Int
	TotalLiquidity *uint256.Int

	positions map[common.Address]*uint256.Int
}

// NewLedger returns an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		ReserveA:       new(uint256.Int),
		ReserveB:       new(uint256.Int),
		TotalLiquidity: new(uint256.Int),
		positions:      make(map[common.Address]*uint256.Int),
	}
}

// Clone returns a deep copy for staging
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		ReserveA:       l.ReserveA.Clone(),
		ReserveB:       l.ReserveB.Clone(),
		TotalLiquidity: l.TotalLiquidity.Clone(),
		positions:      make(map[common.Address]*uint256.Int, len(l.positions)),
	}
	for addr, units := range l.positions {
		c.positions[addr] = units.Clone()
	}
	return c
}

// Position returns the units owned by provider
func (l *Ledger) Position(provider common.Address) *uint256.Int {
	if units, ok := l.positions[provider]; ok {
		return units.Clone()
	}
	return new(uint256.Int)
}

// SetPosition overwrites a provider's units. Used when restoring from storage.
func (l *Ledger) SetPosition(provider common.Address, units *uint256.Int) {
	if units.IsZero() {
		delete(l.positions, provider)
		return
	}
	l.positions[provider] = units.Clone()
}

// Positions returns every non-empty position ordered by provider address
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for addr, units := range l.positions {
		out = append(out, Position{Provider: addr, Units: units.Clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Provider[:], out[j].Provider[:]) < 0
	})
	return out
}

// Reserve returns the reserve of one side
func (l *Ledger) Reserve(sideA bool) *uint256.Int {
	if sideA {
		return l.ReserveA
	}
	return l.ReserveB
}

// credit increases the reserve of one side
func (l *Ledger) credit(sideA bool, amount *uint256.Int) error {
	r := l.Reserve(sideA)
	if _, overflow := r.AddOverflow(r, amount); overflow {
		return swapmath.ErrOverflow
	}
	return nil
}

// debit decreases the reserve of one side
func (l *Ledger) debit(sideA bool, amount *uint256.Int) error {
	r := l.Reserve(sideA)
	if amount.Gt(r) {
		return fmt.Errorf("%w: reserve=%s, amount=%s", ErrReserveUnderflow, r, amount)
	}
	r.Sub(r, amount)
	return nil
}

// ApplySwap installs the reserves produced by a swap
func (l *Ledger) ApplySwap(aToB bool, newReserveIn, newReserveOut *uint256.Int) {
	if aToB {
		l.ReserveA, l.ReserveB = newReserveIn.Clone(), newReserveOut.Clone()
	} else {
		l.ReserveB, l.ReserveA = newReserveIn.Clone(), newReserveOut.Clone()
	}
}

// AddLiquidity mints units to provider for a deposit of at most maxA/maxB.
// A non-empty pool only accepts amounts in the current reserve ratio; the
// used amounts are rounded up in favor of existing providers.
func (l *Ledger) AddLiquidity(provider common.Address, maxA, maxB *uint256.Int) (minted, usedA, usedB *uint256.Int, err error) {
	if l.TotalLiquidity.IsZero() {
		product, overflow := new(uint256.Int).MulOverflow(maxA, maxB)
		if overflow {
			return nil, nil, nil, swapmath.ErrOverflow
		}
		minted = swapmath.Sqrt(product)
		usedA, usedB = maxA.Clone(), maxB.Clone()
	} else {
		if l.ReserveA.IsZero() || l.ReserveB.IsZero() {
			return nil, nil, nil, fmt.Errorf("%w: empty reserve with outstanding units", ErrInvariantViolated)
		}
		unitsA, err := swapmath.MulDiv(l.TotalLiquidity, maxA, l.ReserveA)
		if err != nil {
			return nil, nil, nil, err
		}
		unitsB, err := swapmath.MulDiv(l.TotalLiquidity, maxB, l.ReserveB)
		if err != nil {
			return nil, nil, nil, err
		}
		minted = unitsA
		if unitsB.Lt(unitsA) {
			minted = unitsB
		}
		if minted.IsZero() {
			return nil, nil, nil, ErrInsufficientLiquidityMinted
		}
		if usedA, err = swapmath.MulDivUp(minted, l.ReserveA, l.TotalLiquidity); err != nil {
			return nil, nil, nil, err
		}
		if usedB, err = swapmath.MulDivUp(minted, l.ReserveB, l.TotalLiquidity); err != nil {
			return nil, nil, nil, err
		}
	}
	if minted.IsZero() {
		return nil, nil, nil, ErrInsufficientLiquidityMinted
	}

	if err := l.credit(true, usedA); err != nil {
		return nil, nil, nil, err
	}
	if err := l.credit(false, usedB); err != nil {
		return nil, nil, nil, err
	}
	l.TotalLiquidity.Add(l.TotalLiquidity, minted)
	l.SetPosition(provider, new(uint256.Int).Add(l.Position(provider), minted))
	return minted, usedA, usedB, nil
}

// RemoveLiquidity burns units owned by provider and releases the
// proportional share of both reserves, rounded down.
func (l *Ledger) RemoveLiquidity(provider common.Address, units *uint256.Int) (releasedA, releasedB *uint256.Int, err error) {
	owned := l.Position(provider)
	if units.Gt(owned) {
		return nil, nil, fmt.Errorf("%w: owned=%s, requested=%s", ErrInsufficientLiquidity, owned, units)
	}
	if units.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	if releasedA, err = swapmath.MulDiv(l.ReserveA, units, l.TotalLiquidity); err != nil {
		return nil, nil, err
	}
	if releasedB, err = swapmath.MulDiv(l.ReserveB, units, l.TotalLiquidity); err != nil {
		return nil, nil, err
	}

	if err := l.debit(true, releasedA); err != nil {
		return nil, nil, err
	}
	if err := l.debit(false, releasedB); err != nil {
		return nil, nil, err
	}
	l.TotalLiquidity.Sub(l.TotalLiquidity, units)
	l.SetPosition(provider, owned.Sub(owned, units))
	return releasedA, releasedB, nil
}

// CheckInvariants verifies that positions sum to the total supply and that
// an empty supply holds no units.
func (l *Ledger) CheckInvariants() error {
	sum := new(uint256.Int)
	for _, units := range l.positions {
		if _, overflow := sum.AddOverflow(sum, units); overflow {
			return fmt.Errorf("%w: positions overflow", ErrInvariantViolated)
		}
	}
	if !sum.Eq(l.TotalLiquidity) {
		return fmt.Errorf("%w: positions=%s, total=%s", ErrInvariantViolated, sum, l.TotalLiquidity)
	}
	emptyReserves := l.ReserveA.IsZero() && l.ReserveB.IsZero()
	if l.TotalLiquidity.IsZero() != emptyReserves {
		return fmt.Errorf("%w: total=%s, reserves=(%s, %s)", ErrInvariantViolated, l.TotalLiquidity, l.ReserveA, l.ReserveB)
	}
	return nil
}
