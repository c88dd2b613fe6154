// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swapmath implements the constant-product curve used by a pair pool.
// All arithmetic is done on 256-bit unsigned integers with explicit overflow
// checks.
package swapmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// BpsDenominator is 100% in basis points
const BpsDenominator = 10_000

// Errors - Swap math
var (
	ErrSwapTooLarge = errors.New("swap amount exceeds input reserve")
	ErrZeroSwap     = errors.New("swap has no effect")
	ErrOverflow     = errors.New("arithmetic overflow")
	ErrInvalidFee   = errors.New("fee exceeds 100%")
	ErrDivByZero    = errors.New("division by zero")
)

var bps = uint256.NewInt(BpsDenominator)

// Result is the outcome of a swap against the curve.
// DeltaIn is positive (owed to the pool), DeltaOut is negative (owed by the pool).
type Result struct {
	NewReserveIn  *uint256.Int
	NewReserveOut *uint256.Int
	DeltaIn       *big.Int
	DeltaOut      *big.Int
}

// AmountOut returns the absolute output amount
func (r Result) AmountOut() *uint256.Int {
	out, _ := uint256.FromBig(new(big.Int).Neg(r.DeltaOut))
	return out
}

// ComputeSwap prices amountIn against reserveIn/reserveOut with an LP fee of
// feeBps baked into the curve. The output reserve is rounded up so the
// reserve product never decreases.
func ComputeSwap(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) (Result, error) {
	if feeBps > BpsDenominator {
		return Result{}, ErrInvalidFee
	}
	if amountIn.IsZero() {
		return Result{}, ErrZeroSwap
	}
	if amountIn.Gt(reserveIn) {
		return Result{}, ErrSwapTooLarge
	}

	newReserveIn, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow {
		return Result{}, ErrOverflow
	}

	effectiveIn, err := MulDiv(amountIn, uint256.NewInt(BpsDenominator-feeBps), bps)
	if err != nil {
		return Result{}, err
	}
	denom, overflow := new(uint256.Int).AddOverflow(reserveIn, effectiveIn)
	if overflow {
		return Result{}, ErrOverflow
	}
	newReserveOut, err := MulDivUp(reserveIn, reserveOut, denom)
	if err != nil {
		return Result{}, err
	}

	deltaOut := new(big.Int).Sub(newReserveOut.ToBig(), reserveOut.ToBig())
	if deltaOut.Sign() == 0 {
		return Result{}, ErrZeroSwap
	}

	return Result{
		NewReserveIn:  newReserveIn,
		NewReserveOut: newReserveOut,
		DeltaIn:       amountIn.ToBig(),
		DeltaOut:      deltaOut,
	}, nil
}

// ComputeSwapWithProtocolFee deducts floor(amountIn*protocolFeeBps/BPS)
// before running the curve on the remainder. The returned Result still
// charges the caller the full amountIn; NewReserveIn excludes the protocol fee.
func ComputeSwapWithProtocolFee(reserveIn, reserveOut, amountIn *uint256.Int, lpFeeBps, protocolFeeBps uint64) (Result, *uint256.Int, error) {
	if protocolFeeBps > BpsDenominator {
		return Result{}, nil, ErrInvalidFee
	}
	if amountIn.Gt(reserveIn) {
		return Result{}, nil, ErrSwapTooLarge
	}
	protocolFee, err := MulDiv(amountIn, uint256.NewInt(protocolFeeBps), bps)
	if err != nil {
		return Result{}, nil, err
	}
	curveIn := new(uint256.Int).Sub(amountIn, protocolFee)

	res, err := ComputeSwap(reserveIn, reserveOut, curveIn, lpFeeBps)
	if err != nil {
		return Result{}, nil, err
	}
	res.DeltaIn = amountIn.ToBig()
	return res, protocolFee, nil
}

// MulDiv returns floor(a*b/d) using a 512-bit intermediate
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivUp returns ceil(a*b/d)
func MulDivUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	z, overflow := z.AddOverflow(z, uint256.NewInt(1))
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sqrt returns floor(sqrt(x))
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}
