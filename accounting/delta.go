// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package accounting tracks the signed per-asset balance deltas of a single
// program execution.
//
// Positive deltas are owed to the pool by the caller, negative deltas are
// owed by the pool to the caller. A program may only complete once every
// delta is back to zero.
package accounting

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Errors - Accounting
var (
	ErrZeroCapacity  = errors.New("accounting capacity must be positive")
	ErrTableFull     = errors.New("accounting table full")
	ErrDeltaOverflow = errors.New("delta exceeds int256 range")
)

var (
	maxDelta = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minDelta = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// slot is one entry of the open addressing table
type slot struct {
	used  bool
	asset common.Address
	delta *big.Int
}

// Accounter is a fixed-capacity linear probe table from asset to delta.
// Slots carry an explicit occupancy flag so the native asset (zero address)
// is an ordinary key.
type Accounter struct {
	slots   []slot
	nonZero int
}

// New allocates a table with capacity slots
func New(capacity int) (*Accounter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrZeroCapacity, capacity)
	}
	return &Accounter{slots: make([]slot, capacity)}, nil
}

// Capacity returns the number of slots
func (a *Accounter) Capacity() int { return len(a.slots) }

// NonZero returns the number of assets whose delta is not zero
func (a *Accounter) NonZero() int { return a.nonZero }

// home returns the first probe index for asset: the address read as a
// big-endian integer, reduced mod capacity.
func (a *Accounter) home(asset common.Address) int {
	key := new(uint256.Int).SetBytes(asset.Bytes())
	return int(key.Mod(key, uint256.NewInt(uint64(len(a.slots)))).Uint64())
}

// find returns the slot holding asset, or the empty slot where it would be
// inserted. ok is false when asset is absent and no empty slot remains.
func (a *Accounter) find(asset common.Address) (idx int, ok bool) {
	n := len(a.slots)
	start := a.home(asset)
	for i := 0; i < n; i++ {
		idx = (start + i) % n
		s := &a.slots[idx]
		if !s.used || s.asset == asset {
			return idx, true
		}
	}
	return 0, false
}

// AccountChange adds delta to the running total of asset
func (a *Accounter) AccountChange(asset common.Address, delta *big.Int) error {
	if delta.Sign() == 0 {
		return nil
	}
	idx, ok := a.find(asset)
	if !ok {
		return fmt.Errorf("%w: capacity=%d, asset=%s", ErrTableFull, len(a.slots), asset.Hex())
	}
	s := &a.slots[idx]
	prev := big.NewInt(0)
	if s.used {
		prev = s.delta
	}
	next := new(big.Int).Add(prev, delta)
	if next.Cmp(maxDelta) > 0 || next.Cmp(minDelta) < 0 {
		return fmt.Errorf("%w: asset=%s", ErrDeltaOverflow, asset.Hex())
	}

	switch {
	case prev.Sign() == 0 && next.Sign() != 0:
		a.nonZero++
	case prev.Sign() != 0 && next.Sign() == 0:
		a.nonZero--
	}
	s.used = true
	s.asset = asset
	s.delta = next
	return nil
}

// ResetChange zeroes the delta of asset and returns its prior value
func (a *Accounter) ResetChange(asset common.Address) *big.Int {
	idx, ok := a.find(asset)
	if !ok || !a.slots[idx].used {
		return big.NewInt(0)
	}
	s := &a.slots[idx]
	prior := s.delta
	if prior.Sign() != 0 {
		a.nonZero--
	}
	s.delta = big.NewInt(0)
	return prior
}

// GetChange returns a copy of the delta of asset
func (a *Accounter) GetChange(asset common.Address) *big.Int {
	idx, ok := a.find(asset)
	if !ok || !a.slots[idx].used {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.slots[idx].delta)
}

// Each calls fn for every asset with a non-zero delta, in slot order
func (a *Accounter) Each(fn func(asset common.Address, delta *big.Int)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.used && s.delta.Sign() != 0 {
			fn(s.asset, new(big.Int).Set(s.delta))
		}
	}
}
