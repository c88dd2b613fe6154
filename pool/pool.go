// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements a two-asset constant-product pool driven by
// byte-packed programs.
//
// A program is a sequence of instructions (swap, add/remove liquidity, fee
// claims and settlement transfers) executed atomically against one pool:
//   - every instruction records what it owes or is owed in a delta table
//   - settlement instructions move tokens and cancel deltas
//   - the call only commits when every delta is back to zero
//
// Any failure reverts the host state to the snapshot taken on entry.
package pool

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/pairpool/liquidity"
	"github.com/luxfi/pairpool/state"
	"github.com/luxfi/pairpool/token"
)

// Fee limits in basis points
const (
	MaxLPFeeBps       = 1_000 // 10%
	MaxProtocolFeeBps = 500   // 5%
)

// Config is the deployment configuration of a pool
type Config struct {
	// Address the pool holds its balances and storage at
	Address common.Address
	TokenA  common.Address
	TokenB  common.Address

	// LPFeeBps is retained in the reserves by the curve. Immutable.
	LPFeeBps uint64
	// ProtocolFeeBps is skimmed from swap input for the fee receiver
	ProtocolFeeBps uint64
	FeeReceiver    common.Address

	// WrappedNative, when set, enables the wrap and unwrap flags on the
	// side holding this token.
	WrappedNative common.Address
}

// Validate checks the constructor rules
func (c Config) Validate() error {
	if c.Address == (common.Address{}) {
		return ErrZeroPoolAddress
	}
	if c.TokenA == c.TokenB {
		return fmt.Errorf("%w: %s", ErrIdenticalAssets, c.TokenA.Hex())
	}
	if c.LPFeeBps > MaxLPFeeBps {
		return fmt.Errorf("%w: lp fee %d > %d", ErrFeeTooHigh, c.LPFeeBps, MaxLPFeeBps)
	}
	if c.ProtocolFeeBps > MaxProtocolFeeBps {
		return fmt.Errorf("%w: protocol fee %d > %d", ErrFeeTooHigh, c.ProtocolFeeBps, MaxProtocolFeeBps)
	}
	if c.ProtocolFeeBps != 0 && c.FeeReceiver == (common.Address{}) {
		return ErrNoFeeReceiver
	}
	return nil
}

// HasNativeSide reports whether either side is the native currency or the
// wrapped native token, i.e. whether the pool can consume attached value.
func (c Config) HasNativeSide() bool {
	if token.IsNative(c.TokenA) || token.IsNative(c.TokenB) {
		return true
	}
	w := c.WrappedNative
	return w != (common.Address{}) && (w == c.TokenA || w == c.TokenB)
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithTokens sets how assets resolve to transfer capabilities
func WithTokens(r token.Resolver) Option {
	return func(p *Pool) { p.tokens = r }
}

// poolState is everything an execution may mutate. Executions work on a
// clone and swap it in on success.
type poolState struct {
	ledger         *liquidity.Ledger
	accruedA       *uint256.Int
	accruedB       *uint256.Int
	protocolFeeBps uint64
	feeReceiver    common.Address
}

func (s *poolState) clone() *poolState {
	return &poolState{
		ledger:         s.ledger.Clone(),
		accruedA:       s.accruedA.Clone(),
		accruedB:       s.accruedB.Clone(),
		protocolFeeBps: s.protocolFeeBps,
		feeReceiver:    s.feeReceiver,
	}
}

func (s *poolState) accrued(sideA bool) *uint256.Int {
	if sideA {
		return s.accruedA
	}
	return s.accruedB
}

// Pool is one deployed pair.
//
// A Pool serves one caller at a time, like a contract inside a single EVM
// call frame. A call into Execute while another is in flight, from a token
// callback or from another goroutine, fails with ErrReentrant instead of
// waiting. Callers that share a Pool across goroutines must serialize.
type Pool struct {
	// mu guards st and locked
	mu sync.Mutex

	// locked prevents reentrancy
	locked bool

	db      state.StateDB
	cfg     Config
	st      *poolState
	tokens  token.Resolver
	log     *zap.Logger
	metrics *Metrics
}

func newPool(db state.StateDB, cfg Config, opts []Option) *Pool {
	p := &Pool{
		db:  db,
		cfg: cfg,
		st: &poolState{
			ledger:         liquidity.NewLedger(),
			accruedA:       new(uint256.Int),
			accruedB:       new(uint256.Int),
			protocolFeeBps: cfg.ProtocolFeeBps,
			feeReceiver:    cfg.FeeReceiver,
		},
		tokens: token.NewRegistry(db),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.Stringer("pool", cfg.Address))
	return p
}

// New deploys a pool at cfg.Address and persists its configuration
func New(db state.StateDB, cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := newPool(db, cfg, opts)
	p.saveConfig()
	p.save(p.st)
	if err := db.Error(); err != nil {
		return nil, err
	}
	p.log.Info("pool deployed",
		zap.Stringer("tokenA", cfg.TokenA),
		zap.Stringer("tokenB", cfg.TokenB),
		zap.Uint64("lpFeeBps", cfg.LPFeeBps),
		zap.Uint64("protocolFeeBps", cfg.ProtocolFeeBps),
	)
	return p, nil
}

// acquire takes the reentrancy lock. It never blocks: a nested call and a
// concurrent call cannot be told apart, and waiting would deadlock the
// nested one.
func (p *Pool) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return ErrReentrant
	}
	p.locked = true
	return nil
}

func (p *Pool) release() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

// snapshotState returns a private copy of the committed state
func (p *Pool) snapshotState() *poolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.clone()
}

func (p *Pool) commitState(st *poolState) {
	p.mu.Lock()
	p.st = st
	p.mu.Unlock()
}

// Address returns the pool address
func (p *Pool) Address() common.Address { return p.cfg.Address }

// Config returns the deployment configuration
func (p *Pool) Config() Config { return p.cfg }

// Tokens returns the asset of each side
func (p *Pool) Tokens() (common.Address, common.Address) { return p.cfg.TokenA, p.cfg.TokenB }

// LPFeeBps returns the liquidity provider fee
func (p *Pool) LPFeeBps() uint64 { return p.cfg.LPFeeBps }

// Reserves returns the committed reserves
func (p *Pool) Reserves() (*uint256.Int, *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.ledger.ReserveA.Clone(), p.st.ledger.ReserveB.Clone()
}

// TotalLiquidity returns the outstanding liquidity units
func (p *Pool) TotalLiquidity() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.ledger.TotalLiquidity.Clone()
}

// Position returns the units owned by provider
func (p *Pool) Position(provider common.Address) *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.ledger.Position(provider)
}

// Positions returns every liquidity position
func (p *Pool) Positions() []liquidity.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.ledger.Positions()
}

// AccruedFees returns the unclaimed protocol fees of each side
func (p *Pool) AccruedFees() (*uint256.Int, *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.accruedA.Clone(), p.st.accruedB.Clone()
}

// FeeReceiver returns the current fee receiver
func (p *Pool) FeeReceiver() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.feeReceiver
}

// ProtocolFeeBps returns the current protocol fee rate
func (p *Pool) ProtocolFeeBps() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.protocolFeeBps
}
