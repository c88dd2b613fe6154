// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/pairpool/program"
)

// accrue runs one swap from bob so side A carries a protocol fee
func accrue(t *testing.T, e *testEnv) *uint256.Int {
	t.Helper()
	e.fund(t, e.a, bob, ether(10))
	_, err := e.pool.Execute(Call{Caller: bob, Timestamp: 2}, swapProgram(true, ether(10), bob))
	require.NoError(t, err)
	accruedA, _ := e.pool.AccruedFees()
	require.False(t, accruedA.IsZero())
	return accruedA
}

func TestClaimFeesUnauthorized(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	e.seed(t, ether(1000), ether(1000))
	fee := accrue(t, e)

	for _, caller := range []common.Address{bob, alice, {}} {
		_, err := e.pool.ClaimFees(Call{Caller: caller})
		require.ErrorIs(t, err, ErrNotFeeReceiver)
	}
	accruedA, _ := e.pool.AccruedFees()
	require.Equal(t, fee, accruedA)
	require.True(t, e.a.BalanceOf(bob).IsZero())
}

func TestClaimFees(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	e.seed(t, ether(1000), ether(1000))
	fee := accrue(t, e)
	ra, rb := e.pool.Reserves()

	receipt, err := e.pool.ClaimFees(Call{Caller: feeReceiver})
	require.NoError(t, err)
	require.Equal(t, 3, receipt.Instructions)
	require.Equal(t, fee, e.a.BalanceOf(feeReceiver))
	require.True(t, e.b.BalanceOf(feeReceiver).IsZero())

	accruedA, accruedB := e.pool.AccruedFees()
	require.True(t, accruedA.IsZero())
	require.True(t, accruedB.IsZero())

	// fees lived outside the reserves
	ra2, rb2 := e.pool.Reserves()
	require.Equal(t, ra, ra2)
	require.Equal(t, rb, rb2)
	e.requireSynced(t)

	require.Len(t, receipt.Logs, 1)
	require.Equal(t, TopicFeesClaimed, receipt.Logs[0].Topics[0])

	// claiming again pays nothing
	_, err = e.pool.ClaimFees(Call{Caller: feeReceiver})
	require.NoError(t, err)
	require.Equal(t, fee, e.a.BalanceOf(feeReceiver))
}

func TestClaimWithoutPayOutLeavesDelta(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	e.seed(t, ether(1000), ether(1000))
	fee := accrue(t, e)

	prog := program.NewBuilder(2).ClaimAllFees().Bytes()
	_, err := e.pool.Execute(Call{Caller: feeReceiver}, prog)
	require.ErrorIs(t, err, ErrLeftOverDelta)
	accruedA, _ := e.pool.AccruedFees()
	require.Equal(t, fee, accruedA)
}

func TestUpdateFeeReceiver(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	newReceiver := common.HexToAddress("0x4444444444444444444444444444444444444444")

	tests := []struct {
		name     string
		caller   common.Address
		receiver common.Address
		rate     uint64
		err      error
	}{
		{"not receiver", bob, newReceiver, 10, ErrNotFeeReceiver},
		{"rate too high", feeReceiver, newReceiver, MaxProtocolFeeBps + 1, ErrFeeTooHigh},
		{"zero receiver with fee", feeReceiver, common.Address{}, 1, ErrNoFeeReceiver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.pool.UpdateFeeReceiver(tt.caller, tt.receiver, tt.rate)
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, feeReceiver, e.pool.FeeReceiver())
			require.Equal(t, uint64(20), e.pool.ProtocolFeeBps())
		})
	}

	logs := len(e.db.Logs())
	require.NoError(t, e.pool.UpdateFeeReceiver(feeReceiver, newReceiver, MaxProtocolFeeBps))
	require.Equal(t, newReceiver, e.pool.FeeReceiver())
	require.Equal(t, uint64(MaxProtocolFeeBps), e.pool.ProtocolFeeBps())
	require.Len(t, e.db.Logs(), logs+1)
	require.Equal(t, TopicFeeReceiverUpdated, e.db.Logs()[logs].Topics[0])

	// the old receiver lost its rights
	require.ErrorIs(t, e.pool.UpdateFeeReceiver(feeReceiver, feeReceiver, 0), ErrNotFeeReceiver)

	// renouncing with a zero rate locks administration
	require.NoError(t, e.pool.UpdateFeeReceiver(newReceiver, common.Address{}, 0))
	require.ErrorIs(t, e.pool.UpdateFeeReceiver(common.Address{}, newReceiver, 0), ErrNotFeeReceiver)
}

func TestNewRateAppliesToLaterSwaps(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	e.seed(t, ether(1000), ether(1000))
	require.NoError(t, e.pool.UpdateFeeReceiver(feeReceiver, feeReceiver, 0))

	e.fund(t, e.a, bob, ether(10))
	_, err := e.pool.Execute(Call{Caller: bob}, swapProgram(true, ether(10), bob))
	require.NoError(t, err)
	accruedA, _ := e.pool.AccruedFees()
	require.True(t, accruedA.IsZero())
}
