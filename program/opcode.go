// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Op is the instruction family held in the upper nibble of an opcode byte
type Op uint8

const (
	OpSwap           Op = 0x00
	OpSendAll        Op = 0x10
	OpReceiveAll     Op = 0x20
	OpSend           Op = 0x30
	OpReceive        Op = 0x40
	OpPermitWithdraw Op = 0x50
	OpAddLiquidity   Op = 0x60
	OpRemoveLiq      Op = 0x70
	OpClaimAllFees   Op = 0x80

	opMask   = 0xF0
	flagMask = 0x0F
)

// Flag bits in the lower nibble
const (
	FlagAToB         = 0x1 // SWAP: token A in, token B out
	FlagDeadline     = 0x2 // SWAP: deadline operand present
	FlagMin          = 0x1 // SEND_ALL / RECEIVE_ALL: min bound present
	FlagMax          = 0x2 // SEND_ALL / RECEIVE_ALL: max bound present
	FlagRecipient    = 0x1 // ADD_LIQ: explicit recipient present
	FlagWrapNative   = 0x8 // RECEIVE / RECEIVE_ALL: wrap attached native value
	FlagUnwrapNative = 0x8 // SEND / SEND_ALL: unwrap before paying out
)

// allowedFlags lists the flag bits each family accepts
var allowedFlags = map[Op]byte{
	OpSwap:           FlagAToB | FlagDeadline,
	OpSendAll:        FlagMin | FlagMax | FlagUnwrapNative,
	OpReceiveAll:     FlagMin | FlagMax | FlagWrapNative,
	OpSend:           FlagUnwrapNative,
	OpReceive:        FlagWrapNative,
	OpPermitWithdraw: 0,
	OpAddLiquidity:   FlagRecipient,
	OpRemoveLiq:      0,
	OpClaimAllFees:   0,
}

func (op Op) String() string {
	switch op {
	case OpSwap:
		return "SWAP"
	case OpSendAll:
		return "SEND_ALL"
	case OpReceiveAll:
		return "RECEIVE_ALL"
	case OpSend:
		return "SEND"
	case OpReceive:
		return "RECEIVE"
	case OpPermitWithdraw:
		return "PERMIT_WITHDRAW_VIA_SIG"
	case OpAddLiquidity:
		return "ADD_LIQ"
	case OpRemoveLiq:
		return "RM_LIQ"
	case OpClaimAllFees:
		return "CLAIM_ALL_FEES"
	default:
		return fmt.Sprintf("OP(0x%02x)", uint8(op))
	}
}

// InvalidOpError carries the raw opcode byte that failed to decode
type InvalidOpError struct {
	Opcode byte
	Pos    int
}

func (e *InvalidOpError) Error() string {
	return fmt.Sprintf("%v: 0x%02x at pos %d", ErrInvalidOp, e.Opcode, e.Pos)
}

func (e *InvalidOpError) Unwrap() error { return ErrInvalidOp }

// Instruction is one decoded program step
type Instruction interface {
	Op() Op
}

// Swap exchanges one side for the other
type Swap struct {
	AToB     bool
	Deadline *uint64
	Amount   *uint256.Int
}

// SendAll pays out the whole negative delta of one side
type SendAll struct {
	SideA     bool
	Min       *uint256.Int
	Max       *uint256.Int
	Unwrap    bool
	Recipient common.Address
}

// ReceiveAll pulls in the whole positive delta of one side
type ReceiveAll struct {
	SideA bool
	Min   *uint256.Int
	Max   *uint256.Int
	Wrap  bool
}

// Send pays a fixed amount to a recipient
type Send struct {
	SideA     bool
	Unwrap    bool
	Recipient common.Address
	Amount    *uint256.Int
}

// Receive pulls a fixed amount from the caller
type Receive struct {
	SideA  bool
	Wrap   bool
	Amount *uint256.Int
}

// PermitWithdraw grants the pool an allowance from an off-chain signature
type PermitWithdraw struct {
	SideA    bool
	Amount   *uint256.Int
	Deadline uint64
	V        uint8
	R        [32]byte
	S        [32]byte
}

// AddLiquidity deposits up to MaxA/MaxB. Recipient nil means the caller.
type AddLiquidity struct {
	MaxA      *uint256.Int
	MaxB      *uint256.Int
	Recipient *common.Address
}

// RemoveLiquidity burns liquidity units owned by the caller
type RemoveLiquidity struct {
	Units *uint256.Int
}

// ClaimAllFees moves accrued protocol fees into the caller's delta
type ClaimAllFees struct{}

func (Swap) Op() Op            { return OpSwap }
func (SendAll) Op() Op         { return OpSendAll }
func (ReceiveAll) Op() Op      { return OpReceiveAll }
func (Send) Op() Op            { return OpSend }
func (Receive) Op() Op         { return OpReceive }
func (PermitWithdraw) Op() Op  { return OpPermitWithdraw }
func (AddLiquidity) Op() Op    { return OpAddLiquidity }
func (RemoveLiquidity) Op() Op { return OpRemoveLiq }
func (ClaimAllFees) Op() Op    { return OpClaimAllFees }
