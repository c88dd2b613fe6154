// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

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

	"github.com/luxfi/pairpool/program"
	"github.com/luxfi/pairpool/state"
	"github.com/luxfi/pairpool/token"
)

var (
	poolAddr    = common.HexToAddress("0x0000000000000000000000000000000000009010")
	tokenAAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenBAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	wrappedAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")

	alice       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob         = common.HexToAddress("0x2222222222222222222222222222222222222222")
	feeReceiver = common.HexToAddress("0xfee0000000000000000000000000000000000fee")

	maxApproval = new(uint256.Int).SetAllOne()
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

// testEnv is a pool deployed over an in-memory host with two fungible tokens
type testEnv struct {
	backing *memdb.Database
	db      *state.DB
	reg     *token.Registry
	a       token.Token
	b       token.Token
	pool    *Pool
}

func defaultConfig() Config {
	return Config{
		Address:        poolAddr,
		TokenA:         tokenAAddr,
		TokenB:         tokenBAddr,
		LPFeeBps:       30,
		ProtocolFeeBps: 20,
		FeeReceiver:    feeReceiver,
	}
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	backing := memdb.New()
	db := state.New(backing)
	reg := token.NewRegistry(db)
	e := &testEnv{backing: backing, db: db, reg: reg}

	for _, addr := range []common.Address{cfg.TokenA, cfg.TokenB} {
		if token.IsNative(addr) {
			continue
		}
		var tok token.Token
		if addr == cfg.WrappedNative {
			tok = token.NewWrapped(db, addr)
		} else {
			tok = token.NewFungible(db, addr)
		}
		reg.Register(tok)
	}
	e.a, _ = reg.Resolve(cfg.TokenA, nil)
	e.b, _ = reg.Resolve(cfg.TokenB, nil)

	p, err := New(db, cfg, append([]Option{WithTokens(reg)}, opts...)...)
	require.NoError(t, err)
	e.pool = p
	return e
}

// fund gives holder amount of a side and approves the pool to pull it
func (e *testEnv) fund(t *testing.T, tok token.Token, holder common.Address, amount *uint256.Int) {
	t.Helper()
	switch tk := tok.(type) {
	case *token.NativeToken:
		e.db.AddBalance(holder, amount, tracing.BalanceChangeTransfer)
	case *token.Wrapped:
		require.NoError(t, tk.Mint(holder, amount))
		require.NoError(t, tk.Approve(holder, poolAddr, maxApproval))
	case *token.Fungible:
		require.NoError(t, tk.Mint(holder, amount))
		require.NoError(t, tk.Approve(holder, poolAddr, maxApproval))
	default:
		t.Fatalf("cannot fund %T", tok)
	}
}

// seed adds initial liquidity from alice
func (e *testEnv) seed(t *testing.T, amountA, amountB *uint256.Int) {
	t.Helper()
	e.fund(t, e.a, alice, amountA)
	e.fund(t, e.b, alice, amountB)
	prog := program.NewBuilder(2).
		AddLiquidity(amountA, amountB, nil).
		ReceiveAll(true, nil, nil, false).
		ReceiveAll(false, nil, nil, false).
		Bytes()
	var value *uint256.Int
	if token.IsNative(e.pool.cfg.TokenA) {
		value = amountA
	}
	_, err := e.pool.Execute(Call{Caller: alice, Value: value, Timestamp: 1}, prog)
	require.NoError(t, err)
}

// requireSynced checks reserve == balance - accrued on both sides
func (e *testEnv) requireSynced(t *testing.T) {
	t.Helper()
	reserveA, reserveB := e.pool.Reserves()
	accruedA, accruedB := e.pool.AccruedFees()
	balA := e.a.BalanceOf(poolAddr)
	balB := e.b.BalanceOf(poolAddr)
	require.Equal(t, new(uint256.Int).Sub(balA, accruedA), reserveA, "side A")
	require.Equal(t, new(uint256.Int).Sub(balB, accruedB), reserveB, "side B")
}

// signer is a secp256k1 key able to sign permits
type signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newSigner(t *testing.T) signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(secp256k1.S256(), rand.Reader)
	require.NoError(t, err)
	pub := make([]byte, 65)
	pub[0] = 0x04
	key.PublicKey.X.FillBytes(pub[1:33])
	key.PublicKey.Y.FillBytes(pub[33:])
	return signer{key: key, addr: common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])}
}

func (s signer) sign(t *testing.T, digest []byte) (v uint8, r, sv [32]byte) {
	t.Helper()
	seckey := make([]byte, 32)
	s.key.D.FillBytes(seckey)
	sig, err := secp256k1.Sign(digest, seckey)
	require.NoError(t, err)
	copy(r[:], sig[:32])
	copy(sv[:], sig[32:64])
	return sig[64], r, sv
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"valid", func(*Config) {}, nil},
		{"identical assets", func(c *Config) { c.TokenB = c.TokenA }, ErrIdenticalAssets},
		{"both native", func(c *Config) { c.TokenA, c.TokenB = token.Native, token.Native }, ErrIdenticalAssets},
		{"lp fee too high", func(c *Config) { c.LPFeeBps = MaxLPFeeBps + 1 }, ErrFeeTooHigh},
		{"protocol fee too high", func(c *Config) { c.ProtocolFeeBps = MaxProtocolFeeBps + 1 }, ErrFeeTooHigh},
		{"fee without receiver", func(c *Config) { c.FeeReceiver = common.Address{} }, ErrNoFeeReceiver},
		{"no fee no receiver", func(c *Config) { c.FeeReceiver, c.ProtocolFeeBps = common.Address{}, 0 }, nil},
		{"zero address", func(c *Config) { c.Address = common.Address{} }, ErrZeroPoolAddress},
		{"max fees", func(c *Config) { c.LPFeeBps, c.ProtocolFeeBps = MaxLPFeeBps, MaxProtocolFeeBps }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)

			_, err = New(state.New(memdb.New()), cfg)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestHasNativeSide(t *testing.T) {
	cfg := defaultConfig()
	require.False(t, cfg.HasNativeSide())

	cfg.WrappedNative = wrappedAddr
	require.False(t, cfg.HasNativeSide())
	cfg.TokenB = wrappedAddr
	require.True(t, cfg.HasNativeSide())

	cfg = defaultConfig()
	cfg.TokenA = token.Native
	require.True(t, cfg.HasNativeSide())
}

func TestViews(t *testing.T) {
	e := newTestEnv(t, defaultConfig())
	a, b := e.pool.Tokens()
	require.Equal(t, tokenAAddr, a)
	require.Equal(t, tokenBAddr, b)
	require.Equal(t, poolAddr, e.pool.Address())
	require.Equal(t, uint64(30), e.pool.LPFeeBps())
	require.Equal(t, uint64(20), e.pool.ProtocolFeeBps())
	require.Equal(t, feeReceiver, e.pool.FeeReceiver())
	require.True(t, e.pool.TotalLiquidity().IsZero())

	e.seed(t, ether(100), ether(25))
	ra, rb := e.pool.Reserves()
	require.Equal(t, ether(100), ra)
	require.Equal(t, ether(25), rb)
	require.Equal(t, ether(50), e.pool.TotalLiquidity())
	require.Equal(t, ether(50), e.pool.Position(alice))
	require.Len(t, e.pool.Positions(), 1)
	e.requireSynced(t)
}
