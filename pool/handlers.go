// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/pairpool/program"
	"github.com/luxfi/pairpool/swapmath"
	"github.com/luxfi/pairpool/token"
)

func (x *execution) swap(ins program.Swap) error {
	if ins.Deadline != nil && x.call.Timestamp > *ins.Deadline {
		return fmt.Errorf("%w: deadline=%d, now=%d", ErrDeadlinePassed, *ins.Deadline, x.call.Timestamp)
	}

	ledger := x.st.ledger
	inSide := ins.AToB
	res, protocolFee, err := swapmath.ComputeSwapWithProtocolFee(
		ledger.Reserve(inSide),
		ledger.Reserve(!inSide),
		ins.Amount,
		x.pool.cfg.LPFeeBps,
		x.st.protocolFeeBps,
	)
	if err != nil {
		return err
	}

	if err := x.deltas.AccountChange(x.asset(inSide), res.DeltaIn); err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(!inSide), res.DeltaOut); err != nil {
		return err
	}
	ledger.ApplySwap(ins.AToB, res.NewReserveIn, res.NewReserveOut)
	acc := x.st.accrued(inSide)
	acc.Add(acc, protocolFee)

	x.pool.emitSwap(x.call.Caller, ins.AToB, ins.Amount, res.AmountOut(), protocolFee)
	return nil
}

func (x *execution) sendAll(ins program.SendAll) error {
	asset := x.asset(ins.SideA)
	delta := x.deltas.ResetChange(asset)
	if delta.Sign() > 0 {
		return fmt.Errorf("%w: side=%s, delta=%s", ErrNegativeSend, sideName(ins.SideA), delta)
	}
	amount, _ := uint256.FromBig(new(big.Int).Neg(delta))
	if err := checkBounds(amount, ins.Min, ins.Max); err != nil {
		return err
	}
	return x.payOut(asset, ins.Recipient, amount, ins.Unwrap)
}

func (x *execution) receiveAll(ins program.ReceiveAll) error {
	asset := x.asset(ins.SideA)
	delta := x.deltas.GetChange(asset)
	if delta.Sign() < 0 {
		return fmt.Errorf("%w: side=%s, delta=%s", ErrNegativeReceive, sideName(ins.SideA), delta)
	}
	amount, _ := uint256.FromBig(delta)
	if err := checkBounds(amount, ins.Min, ins.Max); err != nil {
		return err
	}
	return x.pull(ins.SideA, amount, ins.Wrap)
}

func (x *execution) send(ins program.Send) error {
	asset := x.asset(ins.SideA)
	if err := x.deltas.AccountChange(asset, ins.Amount.ToBig()); err != nil {
		return err
	}
	return x.payOut(asset, ins.Recipient, ins.Amount, ins.Unwrap)
}

func (x *execution) receive(ins program.Receive) error {
	return x.pull(ins.SideA, ins.Amount, ins.Wrap)
}

func (x *execution) permit(ins program.PermitWithdraw) error {
	asset := x.asset(ins.SideA)
	if token.IsNative(asset) {
		return ErrPermitOnNative
	}
	tok, err := x.token(asset)
	if err != nil {
		return err
	}
	p, ok := tok.(token.Permitter)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPermitUnsupported, asset.Hex())
	}
	return p.Permit(x.call.Caller, x.pool.cfg.Address, ins.Amount, ins.Deadline, ins.V, ins.R, ins.S, x.call.Timestamp)
}

func (x *execution) addLiquidity(ins program.AddLiquidity) error {
	recipient := x.call.Caller
	if ins.Recipient != nil {
		recipient = *ins.Recipient
	}
	minted, usedA, usedB, err := x.st.ledger.AddLiquidity(recipient, ins.MaxA, ins.MaxB)
	if err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(true), usedA.ToBig()); err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(false), usedB.ToBig()); err != nil {
		return err
	}
	x.pool.emitMint(recipient, minted, usedA, usedB)
	return nil
}

func (x *execution) removeLiquidity(ins program.RemoveLiquidity) error {
	releasedA, releasedB, err := x.st.ledger.RemoveLiquidity(x.call.Caller, ins.Units)
	if err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(true), new(big.Int).Neg(releasedA.ToBig())); err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(false), new(big.Int).Neg(releasedB.ToBig())); err != nil {
		return err
	}
	x.pool.emitBurn(x.call.Caller, ins.Units, releasedA, releasedB)
	return nil
}

// claimAllFees hands the accrued fees to the fee receiver's deltas. The fees
// sit outside the reserves, so paying them out leaves the reserves intact.
func (x *execution) claimAllFees() error {
	receiver := x.st.feeReceiver
	if receiver == (common.Address{}) || x.call.Caller != receiver {
		return fmt.Errorf("%w: caller=%s", ErrNotFeeReceiver, x.call.Caller.Hex())
	}
	feeA, feeB := x.st.accruedA, x.st.accruedB
	if err := x.deltas.AccountChange(x.asset(true), new(big.Int).Neg(feeA.ToBig())); err != nil {
		return err
	}
	if err := x.deltas.AccountChange(x.asset(false), new(big.Int).Neg(feeB.ToBig())); err != nil {
		return err
	}
	x.st.accruedA, x.st.accruedB = new(uint256.Int), new(uint256.Int)
	x.pool.emitFeesClaimed(x.call.Caller, feeA, feeB)
	return nil
}

// payOut transfers amount of asset from the pool to recipient, unwrapping
// the wrapped native token first when asked to.
func (x *execution) payOut(asset, recipient common.Address, amount *uint256.Int, unwrap bool) error {
	if amount.IsZero() {
		return nil
	}
	pool := x.pool.cfg.Address
	if !unwrap {
		tok, err := x.token(asset)
		if err != nil {
			return err
		}
		return tok.Transfer(pool, recipient, amount)
	}

	w, err := x.wrapper(asset)
	if err != nil {
		return err
	}
	if err := w.Withdraw(pool, amount); err != nil {
		return err
	}
	native, err := x.token(token.Native)
	if err != nil {
		return err
	}
	return native.Transfer(pool, recipient, amount)
}

// pull collects amount of one side from the caller and credits what actually
// arrived. Native value is taken from the call's budget; fungible tokens are
// reconciled by the pool's balance before and after, so transfer taxes leave
// a delta outstanding. Anything beyond amount accrues as protocol fee.
func (x *execution) pull(sideA bool, amount *uint256.Int, wrap bool) error {
	asset := x.asset(sideA)
	pool := x.pool.cfg.Address

	var received *uint256.Int
	switch {
	case wrap:
		w, err := x.wrapper(asset)
		if err != nil {
			return err
		}
		if err := x.budget.Consume(amount); err != nil {
			return err
		}
		before := w.BalanceOf(pool)
		if err := w.Deposit(pool, amount); err != nil {
			return err
		}
		received = balanceDiff(w.BalanceOf(pool), before)

	case token.IsNative(asset):
		tok, err := x.token(asset)
		if err != nil {
			return err
		}
		if err := tok.TransferFrom(pool, x.call.Caller, pool, amount); err != nil {
			return err
		}
		received = amount.Clone()

	default:
		tok, err := x.token(asset)
		if err != nil {
			return err
		}
		before := tok.BalanceOf(pool)
		if err := tok.TransferFrom(pool, x.call.Caller, pool, amount); err != nil {
			return err
		}
		received = balanceDiff(tok.BalanceOf(pool), before)
	}

	credited := received
	if received.Gt(amount) {
		credited = amount
		excess := new(uint256.Int).Sub(received, amount)
		acc := x.st.accrued(sideA)
		acc.Add(acc, excess)
	}
	return x.deltas.AccountChange(asset, new(big.Int).Neg(credited.ToBig()))
}

// wrapper returns the wrapped native token when asset is it
func (x *execution) wrapper(asset common.Address) (token.Wrapper, error) {
	wrapped := x.pool.cfg.WrappedNative
	if wrapped == (common.Address{}) {
		return nil, ErrNoWrappedNative
	}
	if asset != wrapped {
		return nil, fmt.Errorf("%w: %s", ErrWrapUnsupported, asset.Hex())
	}
	tok, err := x.token(wrapped)
	if err != nil {
		return nil, err
	}
	w, ok := tok.(token.Wrapper)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWrapperUnsupported, wrapped.Hex())
	}
	return w, nil
}

func checkBounds(amount, min, max *uint256.Int) error {
	if min != nil && amount.Lt(min) {
		return fmt.Errorf("%w: amount=%s < min=%s", ErrAmountOutOfBounds, amount, min)
	}
	if max != nil && amount.Gt(max) {
		return fmt.Errorf("%w: amount=%s > max=%s", ErrAmountOutOfBounds, amount, max)
	}
	return nil
}

func balanceDiff(after, before *uint256.Int) *uint256.Int {
	if after.Lt(before) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(after, before)
}
