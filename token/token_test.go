// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"crypto/ecdsa"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/pairpool/state"
)

var (
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	wrappedAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	alice       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob         = common.HexToAddress("0x2222222222222222222222222222222222222222")
	spender     = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func newDB() *state.DB { return state.New(memdb.New()) }

func TestFungibleTransfer(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr)
	require.NoError(t, f.Mint(alice, uint256.NewInt(1000)))
	require.Equal(t, uint64(1000), f.TotalSupply().Uint64())

	require.NoError(t, f.Transfer(alice, bob, uint256.NewInt(400)))
	require.Equal(t, uint64(600), f.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(400), f.BalanceOf(bob).Uint64())

	err := f.Transfer(bob, alice, uint256.NewInt(401))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(400), f.BalanceOf(bob).Uint64())
}

func TestFungibleAllowance(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr)
	require.NoError(t, f.Mint(alice, uint256.NewInt(100)))

	err := f.TransferFrom(spender, alice, bob, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, f.Approve(alice, spender, uint256.NewInt(60)))
	require.NoError(t, f.TransferFrom(spender, alice, bob, uint256.NewInt(50)))
	require.Equal(t, uint64(10), f.Allowance(alice, spender).Uint64())
	require.Equal(t, uint64(50), f.BalanceOf(bob).Uint64())

	// owner needs no allowance
	require.NoError(t, f.TransferFrom(alice, alice, bob, uint256.NewInt(50)))

	require.ErrorIs(t, f.Approve(alice, common.Address{}, uint256.NewInt(1)), ErrZeroAddress)
}

func TestMaxAllowanceNotDecremented(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr)
	require.NoError(t, f.Mint(alice, uint256.NewInt(100)))
	require.NoError(t, f.Approve(alice, spender, maxAllowance))
	require.NoError(t, f.TransferFrom(spender, alice, bob, uint256.NewInt(100)))
	require.Equal(t, maxAllowance, f.Allowance(alice, spender))
}

func TestTransferTax(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr, WithTransferTax(100)) // 1%
	require.NoError(t, f.Mint(alice, uint256.NewInt(10_000)))
	require.NoError(t, f.Transfer(alice, bob, uint256.NewInt(1000)))

	require.Equal(t, uint64(990), f.BalanceOf(bob).Uint64())
	require.Equal(t, uint64(9000), f.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(9990), f.TotalSupply().Uint64())
}

func TestNativeBudget(t *testing.T) {
	db := newDB()
	db.AddBalance(alice, uint256.NewInt(100), tracing.BalanceChangeTransfer)

	budget := NewBudget(uint256.NewInt(30))
	n := NewNativeToken(db, budget)
	require.Equal(t, Native, n.Address())

	// receipt consumes the budget and moves nothing
	require.NoError(t, n.TransferFrom(spender, alice, bob, uint256.NewInt(20)))
	require.Equal(t, uint64(10), budget.Remaining().Uint64())
	require.Equal(t, uint64(100), n.BalanceOf(alice).Uint64())
	require.True(t, n.BalanceOf(bob).IsZero())

	require.ErrorIs(t, n.TransferFrom(spender, alice, bob, uint256.NewInt(11)), ErrInsufficientValue)
	require.Equal(t, uint64(10), budget.Remaining().Uint64())

	require.NoError(t, n.Transfer(alice, bob, uint256.NewInt(100)))
	require.Equal(t, uint64(100), n.BalanceOf(bob).Uint64())
	require.ErrorIs(t, n.Transfer(alice, bob, uint256.NewInt(1)), state.ErrInsufficientBalance)
}

func TestWrappedDepositWithdraw(t *testing.T) {
	db := newDB()
	db.AddBalance(alice, uint256.NewInt(50), tracing.BalanceChangeTransfer)
	w := NewWrapped(db, wrappedAddr)

	require.NoError(t, w.Deposit(alice, uint256.NewInt(50)))
	require.True(t, db.GetBalance(alice).IsZero())
	require.Equal(t, uint64(50), db.GetBalance(wrappedAddr).Uint64())
	require.Equal(t, uint64(50), w.BalanceOf(alice).Uint64())

	require.NoError(t, w.Withdraw(alice, uint256.NewInt(20)))
	require.Equal(t, uint64(20), db.GetBalance(alice).Uint64())
	require.Equal(t, uint64(30), w.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(30), w.TotalSupply().Uint64())

	require.ErrorIs(t, w.Withdraw(alice, uint256.NewInt(31)), ErrInsufficientBalance)
	require.ErrorIs(t, w.Deposit(alice, uint256.NewInt(21)), state.ErrInsufficientBalance)
}

func TestRegistryResolve(t *testing.T) {
	db := newDB()
	reg := NewRegistry(db)
	f := NewFungible(db, tokenAddr)
	reg.Register(f)

	got, err := reg.Resolve(tokenAddr, nil)
	require.NoError(t, err)
	require.Equal(t, f, got)

	native, err := reg.Resolve(Native, NewBudget(uint256.NewInt(1)))
	require.NoError(t, err)
	require.IsType(t, &NativeToken{}, native)

	_, err = reg.Resolve(bob, nil)
	require.ErrorIs(t, err, ErrUnknownToken)
}

// signer is a secp256k1 key able to sign permits
type signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newSigner(t *testing.T) signer {
	key, err := ecdsa.GenerateKey(secp256k1.S256(), rand.Reader)
	require.NoError(t, err)
	pub := make([]byte, 65)
	pub[0] = 0x04
	key.PublicKey.X.FillBytes(pub[1:33])
	key.PublicKey.Y.FillBytes(pub[33:])
	return signer{key: key, addr: common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])}
}

func (s signer) sign(t *testing.T, digest []byte) (v uint8, r, sv [32]byte) {
	seckey := make([]byte, 32)
	s.key.D.FillBytes(seckey)
	sig, err := secp256k1.Sign(digest, seckey)
	require.NoError(t, err)
	copy(r[:], sig[:32])
	copy(sv[:], sig[32:64])
	return sig[64] + 27, r, sv
}

func TestPermit(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr, WithName("Token A"))
	require.Equal(t, "Token A", f.Name())
	owner := newSigner(t)
	value := uint256.NewInt(500)
	deadline := uint64(2000)

	// the domain name is part of the digest
	digest := f.PermitDigest(owner.addr, spender, value, 0, deadline)
	unnamed := NewFungible(newDB(), tokenAddr)
	require.Equal(t, tokenAddr.Hex(), unnamed.Name())
	require.NotEqual(t, digest, unnamed.PermitDigest(owner.addr, spender, value, 0, deadline))
	v, r, s := owner.sign(t, digest)

	require.NoError(t, f.Permit(owner.addr, spender, value, deadline, v, r, s, 1000))
	require.Equal(t, value, f.Allowance(owner.addr, spender))
	require.Equal(t, uint64(1), f.Nonce(owner.addr))

	// replay fails once the nonce moved
	err := f.Permit(owner.addr, spender, value, deadline, v, r, s, 1000)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPermitRejections(t *testing.T) {
	f := NewFungible(newDB(), tokenAddr)
	owner := newSigner(t)
	other := newSigner(t)
	value := uint256.NewInt(1)

	v, r, s := owner.sign(t, f.PermitDigest(owner.addr, spender, value, 0, 100))
	err := f.Permit(owner.addr, spender, value, 100, v, r, s, 101)
	require.ErrorIs(t, err, ErrPermitExpired)

	v, r, s = other.sign(t, f.PermitDigest(owner.addr, spender, value, 0, 100))
	err = f.Permit(owner.addr, spender, value, 100, v, r, s, 50)
	require.ErrorIs(t, err, ErrInvalidSignature)

	err = f.Permit(owner.addr, spender, value, 100, 5, r, s, 50)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.True(t, f.Allowance(owner.addr, spender).IsZero())
	require.Zero(t, f.Nonce(owner.addr))
}

func TestPermitBoundToToken(t *testing.T) {
	db := newDB()
	a := NewFungible(db, tokenAddr)
	b := NewFungible(db, wrappedAddr)
	owner := newSigner(t)
	value := uint256.NewInt(1)

	v, r, s := owner.sign(t, a.PermitDigest(owner.addr, spender, value, 0, 100))
	require.ErrorIs(t, b.Permit(owner.addr, spender, value, 100, v, r, s, 1), ErrInvalidSignature)
}
