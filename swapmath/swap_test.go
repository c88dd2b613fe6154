// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swapmath

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func product(a, b *uint256.Int) *big.Int {
	return new(big.Int).Mul(a.ToBig(), b.ToBig())
}

func TestComputeSwapBasic(t *testing.T) {
	reserveIn := ether(100)
	reserveOut := ether(100)
	res, err := ComputeSwap(reserveIn, reserveOut, ether(10), 0)
	require.NoError(t, err)

	require.Equal(t, ether(110), res.NewReserveIn)
	require.Equal(t, ether(10).ToBig(), res.DeltaIn)
	require.Negative(t, res.DeltaOut.Sign())

	// 100*100/110 rounded up
	want, _ := MulDivUp(reserveIn, reserveOut, ether(110))
	require.Equal(t, want, res.NewReserveOut)
	require.Equal(t, new(big.Int).Sub(want.ToBig(), reserveOut.ToBig()), res.DeltaOut)
	require.Equal(t, new(uint256.Int).Sub(reserveOut, want), res.AmountOut())
}

func TestComputeSwapErrors(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  *uint256.Int
		reserveOut *uint256.Int
		amountIn   *uint256.Int
		fee        uint64
		err        error
	}{
		{"zero amount", ether(1), ether(1), uint256.NewInt(0), 30, ErrZeroSwap},
		{"too large", ether(1), ether(1), new(uint256.Int).AddUint64(ether(1), 1), 30, ErrSwapTooLarge},
		{"fee over 100%", ether(1), ether(1), uint256.NewInt(1), BpsDenominator + 1, ErrInvalidFee},
		// a single wei against a deep pool rounds to no output
		{"dust output", ether(1_000_000), uint256.NewInt(1000), uint256.NewInt(1), 30, ErrZeroSwap},
		// the whole input is eaten by the fee
		{"full fee", ether(1), ether(1), uint256.NewInt(1000), BpsDenominator, ErrZeroSwap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSwap(tt.reserveIn, tt.reserveOut, tt.amountIn, tt.fee)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestComputeSwapOverflow(t *testing.T) {
	huge := new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 1)
	huge.AddUint64(huge, 1) // 2^255
	_, err := ComputeSwap(huge, uint256.NewInt(10), huge, 0)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestConstantProductNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		reserveIn := new(uint256.Int).Mul(uint256.NewInt(rng.Uint64()%1e9+1), uint256.NewInt(1e12))
		reserveOut := new(uint256.Int).Mul(uint256.NewInt(rng.Uint64()%1e9+1), uint256.NewInt(1e12))
		amountIn := new(uint256.Int).Mod(uint256.NewInt(rng.Uint64()), reserveIn)
		amountIn.AddUint64(amountIn, 1)
		fee := rng.Uint64() % 1001

		res, err := ComputeSwap(reserveIn, reserveOut, amountIn, fee)
		if err != nil {
			require.ErrorIs(t, err, ErrZeroSwap)
			continue
		}
		before := product(reserveIn, reserveOut)
		after := product(res.NewReserveIn, res.NewReserveOut)
		require.GreaterOrEqual(t, after.Cmp(before), 0, "iteration %d", i)
		require.True(t, res.NewReserveOut.Lt(reserveOut))
	}
}

func TestProtocolFeeAccrual(t *testing.T) {
	amountIn := ether(10)
	res, fee, err := ComputeSwapWithProtocolFee(ether(1000), ether(1000), amountIn, 30, 20)
	require.NoError(t, err)

	// floor(10e18 * 20 / 10000)
	require.Equal(t, uint256.NewInt(2e16), fee)
	require.Equal(t, amountIn.ToBig(), res.DeltaIn)
	require.Equal(t, new(uint256.Int).Sub(new(uint256.Int).Add(ether(1000), amountIn), fee), res.NewReserveIn)

	// the curve ran on amountIn - fee
	curve, err := ComputeSwap(ether(1000), ether(1000), new(uint256.Int).Sub(amountIn, fee), 30)
	require.NoError(t, err)
	require.Equal(t, curve.NewReserveOut, res.NewReserveOut)
}

func TestProtocolFeeZeroRate(t *testing.T) {
	res, fee, err := ComputeSwapWithProtocolFee(ether(50), ether(50), ether(1), 30, 0)
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	plain, err := ComputeSwap(ether(50), ether(50), ether(1), 30)
	require.NoError(t, err)
	require.Equal(t, plain, res)
}

func TestMulDiv(t *testing.T) {
	z, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(10), z.Uint64())

	z, err = MulDivUp(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(11), z.Uint64())

	z, err = MulDivUp(uint256.NewInt(8), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(12), z.Uint64())

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0))
	require.ErrorIs(t, err, ErrDivByZero)

	max := new(uint256.Int).SetAllOne()
	_, err = MulDiv(max, max, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	// 512-bit intermediate
	z, err = MulDiv(max, max, max)
	require.NoError(t, err)
	require.Equal(t, max, z)
}

func TestSqrt(t *testing.T) {
	require.Equal(t, uint64(0), Sqrt(uint256.NewInt(0)).Uint64())
	require.Equal(t, uint64(4), Sqrt(uint256.NewInt(24)).Uint64())
	require.Equal(t, uint64(5), Sqrt(uint256.NewInt(25)).Uint64())

	// sqrt(100e18 * 30e18)
	got := Sqrt(new(uint256.Int).Mul(ether(100), ether(30)))
	want := new(big.Int).Sqrt(new(big.Int).Mul(ether(100).ToBig(), ether(30).ToBig()))
	require.Equal(t, want, got.ToBig())
}
