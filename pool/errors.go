// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"fmt"

	"github.com/luxfi/pairpool/program"
)

// Errors - Construction
var (
	ErrIdenticalAssets = errors.New("pool assets must differ")
	ErrFeeTooHigh      = errors.New("fee exceeds maximum")
	ErrNoFeeReceiver   = errors.New("non-zero protocol fee requires a fee receiver")
	ErrZeroPoolAddress = errors.New("pool address must be set")
	ErrPoolNotFound    = errors.New("pool not deployed at address")
)

// Errors - Execution
var (
	ErrReentrant       = errors.New("reentrant call")
	ErrUnexpectedValue = errors.New("value attached to pool without native side")
	ErrUnusedValue     = errors.New("attached value not consumed")
	ErrReserveMismatch = errors.New("pool balance below reserve plus fees")
)

// Errors - Accounting
var (
	ErrLeftOverDelta   = errors.New("deltas not netted to zero")
	ErrNegativeSend    = errors.New("cannot send a delta owed to the pool")
	ErrNegativeReceive = errors.New("cannot receive a delta owed by the pool")
)

// Errors - Bounds
var (
	ErrAmountOutOfBounds = errors.New("settle amount outside bounds")
	ErrDeadlinePassed    = errors.New("deadline passed")
)

// Errors - Tokens
var (
	ErrPermitOnNative     = errors.New("permit on native side")
	ErrPermitUnsupported  = errors.New("token does not support permit")
	ErrWrapUnsupported    = errors.New("side is not the wrapped native token")
	ErrNoWrappedNative    = errors.New("wrapped native token not configured")
	ErrWrapperUnsupported = errors.New("wrapped native token cannot wrap")
)

// Errors - Authorization
var (
	ErrNotFeeReceiver = errors.New("caller is not the fee receiver")
)

// ExecError reports the instruction a program failed at
type ExecError struct {
	Index int
	Pos   int
	Op    program.Op
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("instruction %d (%s at pos %d): %v", e.Index, e.Op, e.Pos, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
