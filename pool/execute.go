// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"go.uber.org/zap"

	"github.com/luxfi/pairpool/accounting"
	"github.com/luxfi/pairpool/program"
	"github.com/luxfi/pairpool/token"
)

// Call is the transaction context of one execution
type Call struct {
	Caller common.Address
	// Value is native currency attached to the call
	Value *uint256.Int
	// Timestamp is the current block time, compared against deadlines
	Timestamp uint64
}

// Receipt summarizes a committed execution
type Receipt struct {
	Instructions int
	ReserveA     *uint256.Int
	ReserveB     *uint256.Int
	AccruedA     *uint256.Int
	AccruedB     *uint256.Int
	Logs         []*types.Log
}

// execution is the private state of one Execute call
type execution struct {
	pool   *Pool
	call   Call
	st     *poolState
	deltas *accounting.Accounter
	budget *token.Budget
}

// Execute runs prog for call. Either every instruction succeeds and all
// deltas net to zero, or the host state is reverted and an error returned.
func (p *Pool) Execute(call Call, prog []byte) (*Receipt, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	start := time.Now()
	snap := p.db.Snapshot()
	logStart := len(p.db.Logs())

	x := &execution{
		pool:   p,
		call:   call,
		st:     p.snapshotState(),
		budget: token.NewBudget(call.Value),
	}
	n, err := x.run(prog)
	if dbErr := p.db.Error(); dbErr != nil {
		// a failed state read makes every later check unreliable
		err = dbErr
	}
	if err != nil {
		p.db.RevertToSnapshot(snap)
		p.metrics.observeExecution(outcomeReverted, time.Since(start))
		p.log.Warn("execution reverted",
			zap.Stringer("caller", call.Caller),
			zap.Int("instructions", n),
			zap.Error(err),
		)
		return nil, err
	}

	p.save(x.st)
	p.commitState(x.st)
	p.metrics.observeExecution(outcomeCommitted, time.Since(start))

	receipt := &Receipt{
		Instructions: n,
		ReserveA:     x.st.ledger.ReserveA.Clone(),
		ReserveB:     x.st.ledger.ReserveB.Clone(),
		AccruedA:     x.st.accruedA.Clone(),
		AccruedB:     x.st.accruedB.Clone(),
		Logs:         p.db.Logs()[logStart:],
	}
	p.log.Info("execution committed",
		zap.Stringer("caller", call.Caller),
		zap.Int("instructions", n),
		zap.Stringer("reserveA", receipt.ReserveA),
		zap.Stringer("reserveB", receipt.ReserveB),
	)
	return receipt, nil
}

// run decodes and dispatches prog, returning the number of instructions
// executed.
func (x *execution) run(prog []byte) (int, error) {
	dec, err := program.NewDecoder(prog)
	if err != nil {
		return 0, err
	}
	if x.deltas, err = accounting.New(int(dec.Header().Capacity)); err != nil {
		return 0, err
	}
	if err := x.sweep(); err != nil {
		return 0, err
	}
	if err := x.takeValue(); err != nil {
		return 0, err
	}

	n := 0
	for !dec.Done() {
		pos := dec.Pos()
		ins, err := dec.Next()
		if err != nil {
			return n, err
		}
		x.pool.log.Debug("instruction",
			zap.Int("index", n),
			zap.Int("pos", pos),
			zap.Stringer("op", ins.Op()),
		)
		if err := x.dispatch(ins); err != nil {
			return n, &ExecError{Index: n, Pos: pos, Op: ins.Op(), Err: err}
		}
		x.pool.metrics.observeInstruction(ins.Op())
		n++
	}
	return n, x.finalize()
}

func (x *execution) dispatch(ins program.Instruction) error {
	switch ins := ins.(type) {
	case program.Swap:
		return x.swap(ins)
	case program.SendAll:
		return x.sendAll(ins)
	case program.ReceiveAll:
		return x.receiveAll(ins)
	case program.Send:
		return x.send(ins)
	case program.Receive:
		return x.receive(ins)
	case program.PermitWithdraw:
		return x.permit(ins)
	case program.AddLiquidity:
		return x.addLiquidity(ins)
	case program.RemoveLiquidity:
		return x.removeLiquidity(ins)
	case program.ClaimAllFees:
		return x.claimAllFees()
	default:
		return fmt.Errorf("%w: %s", program.ErrInvalidOp, ins.Op())
	}
}

// sweep moves any balance held beyond reserve plus accrued fees, such as an
// unsolicited direct transfer, into the protocol fees of that side. It runs
// before attached value is taken so the call's own value is never swept.
func (x *execution) sweep() error {
	for _, sideA := range []bool{true, false} {
		tok, err := x.token(x.asset(sideA))
		if err != nil {
			return err
		}
		held := tok.BalanceOf(x.pool.cfg.Address)
		owned := new(uint256.Int).Add(x.st.ledger.Reserve(sideA), x.st.accrued(sideA))
		if !held.Gt(owned) {
			continue
		}
		surplus := new(uint256.Int).Sub(held, owned)
		acc := x.st.accrued(sideA)
		acc.Add(acc, surplus)
		x.pool.log.Debug("swept surplus",
			zap.Bool("sideA", sideA),
			zap.Stringer("amount", surplus),
		)
	}
	return nil
}

// takeValue moves the attached native value from the caller to the pool
func (x *execution) takeValue() error {
	value := x.call.Value
	if value == nil || value.IsZero() {
		return nil
	}
	if !x.pool.cfg.HasNativeSide() {
		return fmt.Errorf("%w: value=%s", ErrUnexpectedValue, value)
	}
	if _, err := x.pool.db.SubBalance(x.call.Caller, value, tracing.BalanceChangeTransfer); err != nil {
		return err
	}
	x.pool.db.AddBalance(x.pool.cfg.Address, value, tracing.BalanceChangeTransfer)
	return nil
}

// finalize checks the end of program invariants
func (x *execution) finalize() error {
	if n := x.deltas.NonZero(); n != 0 {
		var (
			asset common.Address
			delta *big.Int
		)
		x.deltas.Each(func(a common.Address, d *big.Int) {
			if delta == nil {
				asset, delta = a, d
			}
		})
		return fmt.Errorf("%w: asset=%s, delta=%s, outstanding=%d", ErrLeftOverDelta, asset.Hex(), delta, n)
	}
	if rem := x.budget.Remaining(); !rem.IsZero() {
		return fmt.Errorf("%w: %s", ErrUnusedValue, rem)
	}
	if err := x.st.ledger.CheckInvariants(); err != nil {
		return err
	}
	for _, sideA := range []bool{true, false} {
		tok, err := x.token(x.asset(sideA))
		if err != nil {
			return err
		}
		held := tok.BalanceOf(x.pool.cfg.Address)
		owned := new(uint256.Int).Add(x.st.ledger.Reserve(sideA), x.st.accrued(sideA))
		if held.Lt(owned) {
			return fmt.Errorf("%w: side=%s, balance=%s, owned=%s", ErrReserveMismatch, sideName(sideA), held, owned)
		}
	}
	return nil
}

// asset resolves a side selector to its asset
func (x *execution) asset(sideA bool) common.Address {
	if sideA {
		return x.pool.cfg.TokenA
	}
	return x.pool.cfg.TokenB
}

func (x *execution) token(asset common.Address) (token.Token, error) {
	return x.pool.tokens.Resolve(asset, x.budget)
}

func sideName(sideA bool) string {
	if sideA {
		return "A"
	}
	return "B"
}
