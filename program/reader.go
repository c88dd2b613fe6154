// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package program decodes and encodes the byte-packed instruction stream
// executed by a pair pool.
package program

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Field widths used by the wire format
const (
	BoolWidth      = 1
	AddressWidth   = common.AddressLength
	CapacityWidth  = 2
	AmountWidth    = 16 // uint128
	DeadlineWidth  = 6  // uint48
	WordWidth      = 32
	MaxFieldWidth  = 32
	SignatureWidth = 1 + 32 + 32
)

// Errors - Malformed program
var (
	ErrOutOfBounds   = errors.New("read past end of program")
	ErrInvalidWidth  = errors.New("invalid field width")
	ErrInvalidOp     = errors.New("invalid opcode")
	ErrZeroCapacity  = errors.New("accounting capacity must be positive")
	ErrMissingHeader = errors.New("program missing header")
)

// Reader is a bounds-checked cursor over a program buffer.
// A failed read leaves the cursor where it was.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader positioned at the start of buf
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor position
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Done reports whether the whole buffer has been consumed
func (r *Reader) Done() bool { return r.pos >= len(r.buf) }

// take returns the next n bytes and advances the cursor
func (r *Reader) take(n int) ([]byte, error) {
	if n > r.Remaining() {
		return nil, fmt.Errorf("%w: pos=%d, width=%d, len=%d", ErrOutOfBounds, r.pos, n, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint reads a big-endian unsigned integer of the given byte width.
// Narrow fields land in the low-order bits of the result.
func (r *Reader) ReadUint(width int) (*uint256.Int, error) {
	if width < 1 || width > MaxFieldWidth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	b, err := r.take(width)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

// ReadByte reads a single raw byte
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a one byte flag, nonzero = true
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(BoolWidth)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadAddress reads a 20 byte address
func (r *Reader) ReadAddress() (common.Address, error) {
	b, err := r.take(AddressWidth)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

// ReadUint16 reads a 2 byte unsigned integer
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(CapacityWidth)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadAmount reads a 16 byte token amount
func (r *Reader) ReadAmount() (*uint256.Int, error) {
	return r.ReadUint(AmountWidth)
}

// ReadDeadline reads a 6 byte timestamp
func (r *Reader) ReadDeadline() (uint64, error) {
	v, err := r.ReadUint(DeadlineWidth)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// ReadWord reads a full 32 byte word
func (r *Reader) ReadWord() ([32]byte, error) {
	var w [32]byte
	b, err := r.take(WordWidth)
	if err != nil {
		return w, err
	}
	copy(w[:], b)
	return w, nil
}

// ReadSignature reads a packed v, r, s signature
func (r *Reader) ReadSignature() (v byte, rs, ss [32]byte, err error) {
	b, err := r.take(SignatureWidth)
	if err != nil {
		return 0, rs, ss, err
	}
	copy(rs[:], b[1:1+WordWidth])
	copy(ss[:], b[1+WordWidth:])
	return b[0], rs, ss, nil
}
