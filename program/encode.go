// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Builder assembles a program in wire format
type Builder struct {
	buf []byte
}

// NewBuilder starts a program with the given accounting capacity
func NewBuilder(capacity uint16) *Builder {
	return &Builder{buf: []byte{byte(capacity >> 8), byte(capacity)}}
}

// Bytes returns the encoded program
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Builder) putUint(v *uint256.Int, width int) {
	word := v.Bytes32()
	b.buf = append(b.buf, word[WordWidth-width:]...)
}

func (b *Builder) putBool(v bool) {
	if v {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
}

func (b *Builder) putAddress(a common.Address) {
	b.buf = append(b.buf, a.Bytes()...)
}

func (b *Builder) putDeadline(ts uint64) {
	b.putUint(uint256.NewInt(ts), DeadlineWidth)
}

// Swap appends a SWAP. A nil deadline omits the operand.
func (b *Builder) Swap(aToB bool, amount *uint256.Int, deadline *uint64) *Builder {
	opcode := byte(OpSwap)
	if aToB {
		opcode |= FlagAToB
	}
	if deadline != nil {
		opcode |= FlagDeadline
	}
	b.buf = append(b.buf, opcode)
	if deadline != nil {
		b.putDeadline(*deadline)
	}
	b.putUint(amount, AmountWidth)
	return b
}

// SendAll appends a SEND_ALL. Nil bounds are omitted.
func (b *Builder) SendAll(sideA bool, recipient common.Address, min, max *uint256.Int, unwrap bool) *Builder {
	opcode := byte(OpSendAll) | boundFlags(min, max)
	if unwrap {
		opcode |= FlagUnwrapNative
	}
	b.buf = append(b.buf, opcode)
	b.putBool(sideA)
	b.putBounds(min, max)
	b.putAddress(recipient)
	return b
}

// ReceiveAll appends a RECEIVE_ALL. Nil bounds are omitted.
func (b *Builder) ReceiveAll(sideA bool, min, max *uint256.Int, wrap bool) *Builder {
	opcode := byte(OpReceiveAll) | boundFlags(min, max)
	if wrap {
		opcode |= FlagWrapNative
	}
	b.buf = append(b.buf, opcode)
	b.putBool(sideA)
	b.putBounds(min, max)
	return b
}

// Send appends a SEND
func (b *Builder) Send(sideA bool, recipient common.Address, amount *uint256.Int, unwrap bool) *Builder {
	opcode := byte(OpSend)
	if unwrap {
		opcode |= FlagUnwrapNative
	}
	b.buf = append(b.buf, opcode)
	b.putBool(sideA)
	b.putAddress(recipient)
	b.putUint(amount, AmountWidth)
	return b
}

// Receive appends a RECEIVE
func (b *Builder) Receive(sideA bool, amount *uint256.Int, wrap bool) *Builder {
	opcode := byte(OpReceive)
	if wrap {
		opcode |= FlagWrapNative
	}
	b.buf = append(b.buf, opcode)
	b.putBool(sideA)
	b.putUint(amount, AmountWidth)
	return b
}

// PermitWithdraw appends a PERMIT_WITHDRAW_VIA_SIG
func (b *Builder) PermitWithdraw(sideA bool, amount *uint256.Int, deadline uint64, v uint8, r, s [32]byte) *Builder {
	b.buf = append(b.buf, byte(OpPermitWithdraw))
	b.putBool(sideA)
	b.putUint(amount, AmountWidth)
	b.putDeadline(deadline)
	sig := make([]byte, 0, SignatureWidth)
	sig = append(sig, v)
	sig = append(sig, r[:]...)
	b.buf = append(b.buf, append(sig, s[:]...)...)
	return b
}

// AddLiquidity appends an ADD_LIQ. A nil recipient credits the caller.
func (b *Builder) AddLiquidity(maxA, maxB *uint256.Int, recipient *common.Address) *Builder {
	opcode := byte(OpAddLiquidity)
	if recipient != nil {
		opcode |= FlagRecipient
	}
	b.buf = append(b.buf, opcode)
	b.putUint(maxA, AmountWidth)
	b.putUint(maxB, AmountWidth)
	if recipient != nil {
		b.putAddress(*recipient)
	}
	return b
}

// RemoveLiquidity appends an RM_LIQ
func (b *Builder) RemoveLiquidity(units *uint256.Int) *Builder {
	b.buf = append(b.buf, byte(OpRemoveLiq))
	b.putUint(units, WordWidth)
	return b
}

// ClaimAllFees appends a CLAIM_ALL_FEES
func (b *Builder) ClaimAllFees() *Builder {
	b.buf = append(b.buf, byte(OpClaimAllFees))
	return b
}

// Raw appends bytes verbatim
func (b *Builder) Raw(data ...byte) *Builder {
	b.buf = append(b.buf, data...)
	return b
}

func (b *Builder) putBounds(min, max *uint256.Int) {
	if min != nil {
		b.putUint(min, AmountWidth)
	}
	if max != nil {
		b.putUint(max, AmountWidth)
	}
}

func boundFlags(min, max *uint256.Int) byte {
	var f byte
	if min != nil {
		f |= FlagMin
	}
	if max != nil {
		f |= FlagMax
	}
	return f
}
