// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/geth/common"
)

var (
	domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,address verifyingContract)"))
	permitTypeHash = crypto.Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))
)

func word(v *uint256.Int) []byte {
	w := v.Bytes32()
	return w[:]
}

// DomainSeparator binds permits to this token
func (f *Fungible) DomainSeparator() []byte {
	return crypto.Keccak256(
		domainTypeHash,
		crypto.Keccak256([]byte(f.Name())),
		common.LeftPadBytes(f.address.Bytes(), 32),
	)
}

// PermitDigest returns the hash an owner signs to grant spender value
func (f *Fungible) PermitDigest(owner, spender common.Address, value *uint256.Int, nonce, deadline uint64) []byte {
	structHash := crypto.Keccak256(
		permitTypeHash,
		common.LeftPadBytes(owner.Bytes(), 32),
		common.LeftPadBytes(spender.Bytes(), 32),
		word(value),
		word(uint256.NewInt(nonce)),
		word(uint256.NewInt(deadline)),
	)
	return crypto.Keccak256([]byte{0x19, 0x01}, f.DomainSeparator(), structHash)
}

// Permit verifies owner's signature and sets the allowance of spender.
// v may be given as 0/1 or 27/28.
func (f *Fungible) Permit(owner, spender common.Address, value *uint256.Int, deadline uint64, v uint8, r, s [32]byte, now uint64) error {
	if now > deadline {
		return fmt.Errorf("%w: deadline=%d, now=%d", ErrPermitExpired, deadline, now)
	}
	nonce := f.Nonce(owner)
	signer, err := recoverSigner(f.PermitDigest(owner, spender, value, nonce, deadline), v, r, s)
	if err != nil {
		return err
	}
	if signer != owner {
		return fmt.Errorf("%w: signer=%s, owner=%s", ErrInvalidSignature, signer.Hex(), owner.Hex())
	}
	f.store(makeStorageKey(noncePrefix, owner.Bytes()), uint256.NewInt(nonce+1))
	return f.Approve(owner, spender, value)
}

// recoverSigner returns the address that produced the signature over digest
func recoverSigner(digest []byte, v uint8, r, s [32]byte) (common.Address, error) {
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v)
	}
	// reject malleable high-s signatures
	halfN := new(big.Int).Rsh(crypto.S256().Params().N, 1)
	if new(big.Int).SetBytes(s[:]).Cmp(halfN) > 0 {
		return common.Address{}, fmt.Errorf("%w: high s", ErrInvalidSignature)
	}

	sig := make([]byte, 65)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v
	pub, err := secp256k1.RecoverPubkey(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return common.BytesToAddress(crypto.Keccak256(pub[1:])[12:]), nil
}
