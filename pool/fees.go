// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/pairpool/program"
)

// claimCapacity fits both sides of a pool
const claimCapacity = 2

// UpdateFeeReceiver hands fee administration to newReceiver at newRateBps.
// Only the current fee receiver may call it.
func (p *Pool) UpdateFeeReceiver(caller, newReceiver common.Address, newRateBps uint64) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	st := p.snapshotState()
	if st.feeReceiver == (common.Address{}) || caller != st.feeReceiver {
		return fmt.Errorf("%w: caller=%s", ErrNotFeeReceiver, caller.Hex())
	}
	if newRateBps > MaxProtocolFeeBps {
		return fmt.Errorf("%w: protocol fee %d > %d", ErrFeeTooHigh, newRateBps, MaxProtocolFeeBps)
	}
	if newRateBps != 0 && newReceiver == (common.Address{}) {
		return ErrNoFeeReceiver
	}

	st.feeReceiver = newReceiver
	st.protocolFeeBps = newRateBps
	p.save(st)
	p.commitState(st)
	p.emitFeeReceiverUpdated(newReceiver, newRateBps)

	p.log.Info("fee receiver updated",
		zap.Stringer("receiver", newReceiver),
		zap.Uint64("protocolFeeBps", newRateBps),
	)
	return nil
}

// ClaimProgram returns a program that claims every accrued fee and pays both
// sides out to recipient.
func ClaimProgram(recipient common.Address) []byte {
	return program.NewBuilder(claimCapacity).
		ClaimAllFees().
		SendAll(true, recipient, nil, nil, false).
		SendAll(false, recipient, nil, nil, false).
		Bytes()
}

// ClaimFees pays the accrued protocol fees to the caller, who must be the
// fee receiver.
func (p *Pool) ClaimFees(call Call) (*Receipt, error) {
	return p.Execute(call, ClaimProgram(call.Caller))
}
