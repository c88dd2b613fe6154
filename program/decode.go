// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Header is the fixed prefix of every program
type Header struct {
	// Capacity is the number of slots of the delta accounting table
	Capacity uint16
}

// Decoder walks a program one instruction at a time
type Decoder struct {
	r      *Reader
	header Header
}

// NewDecoder reads the program header and returns a decoder positioned at
// the first instruction.
func NewDecoder(buf []byte) (*Decoder, error) {
	r := NewReader(buf)
	capacity, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	return &Decoder{r: r, header: Header{Capacity: capacity}}, nil
}

// Header returns the decoded program header
func (d *Decoder) Header() Header { return d.header }

// Done reports whether every instruction has been decoded
func (d *Decoder) Done() bool { return d.r.Done() }

// Pos returns the byte offset of the next instruction
func (d *Decoder) Pos() int { return d.r.Pos() }

// Next decodes the next instruction
func (d *Decoder) Next() (Instruction, error) {
	pos := d.r.Pos()
	opcode, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	op := Op(opcode & opMask)
	flags := opcode & flagMask
	allowed, known := allowedFlags[op]
	if !known || flags&^allowed != 0 {
		return nil, &InvalidOpError{Opcode: opcode, Pos: pos}
	}

	switch op {
	case OpSwap:
		return d.decodeSwap(flags)
	case OpSendAll:
		return d.decodeSendAll(flags)
	case OpReceiveAll:
		return d.decodeReceiveAll(flags)
	case OpSend:
		return d.decodeSend(flags)
	case OpReceive:
		return d.decodeReceive(flags)
	case OpPermitWithdraw:
		return d.decodePermit()
	case OpAddLiquidity:
		return d.decodeAddLiquidity(flags)
	case OpRemoveLiq:
		units, err := d.r.ReadUint(WordWidth)
		if err != nil {
			return nil, err
		}
		return RemoveLiquidity{Units: units}, nil
	case OpClaimAllFees:
		return ClaimAllFees{}, nil
	default:
		return nil, &InvalidOpError{Opcode: opcode, Pos: pos}
	}
}

func (d *Decoder) decodeSwap(flags byte) (Instruction, error) {
	ins := Swap{AToB: flags&FlagAToB != 0}
	if flags&FlagDeadline != 0 {
		deadline, err := d.r.ReadDeadline()
		if err != nil {
			return nil, err
		}
		ins.Deadline = &deadline
	}
	amount, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	ins.Amount = amount
	return ins, nil
}

// readBounds reads the optional min/max pair gated by flags
func (d *Decoder) readBounds(flags byte) (min, max *uint256.Int, err error) {
	if flags&FlagMin != 0 {
		if min, err = d.r.ReadAmount(); err != nil {
			return nil, nil, err
		}
	}
	if flags&FlagMax != 0 {
		if max, err = d.r.ReadAmount(); err != nil {
			return nil, nil, err
		}
	}
	return min, max, nil
}

func (d *Decoder) decodeSendAll(flags byte) (Instruction, error) {
	sideA, err := d.r.ReadBool()
	if err != nil {
		return nil, err
	}
	min, max, err := d.readBounds(flags)
	if err != nil {
		return nil, err
	}
	recipient, err := d.r.ReadAddress()
	if err != nil {
		return nil, err
	}
	return SendAll{
		SideA:     sideA,
		Min:       min,
		Max:       max,
		Unwrap:    flags&FlagUnwrapNative != 0,
		Recipient: recipient,
	}, nil
}

func (d *Decoder) decodeReceiveAll(flags byte) (Instruction, error) {
	sideA, err := d.r.ReadBool()
	if err != nil {
		return nil, err
	}
	min, max, err := d.readBounds(flags)
	if err != nil {
		return nil, err
	}
	return ReceiveAll{SideA: sideA, Min: min, Max: max, Wrap: flags&FlagWrapNative != 0}, nil
}

func (d *Decoder) decodeSend(flags byte) (Instruction, error) {
	sideA, err := d.r.ReadBool()
	if err != nil {
		return nil, err
	}
	recipient, err := d.r.ReadAddress()
	if err != nil {
		return nil, err
	}
	amount, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	return Send{
		SideA:     sideA,
		Unwrap:    flags&FlagUnwrapNative != 0,
		Recipient: recipient,
		Amount:    amount,
	}, nil
}

func (d *Decoder) decodeReceive(flags byte) (Instruction, error) {
	sideA, err := d.r.ReadBool()
	if err != nil {
		return nil, err
	}
	amount, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	return Receive{SideA: sideA, Wrap: flags&FlagWrapNative != 0, Amount: amount}, nil
}

func (d *Decoder) decodePermit() (Instruction, error) {
	sideA, err := d.r.ReadBool()
	if err != nil {
		return nil, err
	}
	amount, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	deadline, err := d.r.ReadDeadline()
	if err != nil {
		return nil, err
	}
	v, r, s, err := d.r.ReadSignature()
	if err != nil {
		return nil, err
	}
	return PermitWithdraw{SideA: sideA, Amount: amount, Deadline: deadline, V: v, R: r, S: s}, nil
}

func (d *Decoder) decodeAddLiquidity(flags byte) (Instruction, error) {
	maxA, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	maxB, err := d.r.ReadAmount()
	if err != nil {
		return nil, err
	}
	ins := AddLiquidity{MaxA: maxA, MaxB: maxB}
	if flags&FlagRecipient != 0 {
		recipient, err := d.r.ReadAddress()
		if err != nil {
			return nil, err
		}
		ins.Recipient = &recipient
	}
	return ins, nil
}

// Disassemble decodes a whole program
func Disassemble(buf []byte) (Header, []Instruction, error) {
	d, err := NewDecoder(buf)
	if err != nil {
		return Header{}, nil, err
	}
	var out []Instruction
	for !d.Done() {
		ins, err := d.Next()
		if err != nil {
			return d.Header(), out, err
		}
		out = append(out, ins)
	}
	return d.Header(), out, nil
}
