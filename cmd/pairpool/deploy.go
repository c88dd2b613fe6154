// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"go.uber.org/zap"

	"github.com/luxfi/pairpool/config"
	"github.com/luxfi/pairpool/pool"
	"github.com/luxfi/pairpool/state"
	"github.com/luxfi/pairpool/token"
)

// deployment is a pool deployed on a fresh in-memory host
type deployment struct {
	db     *state.DB
	tokens *token.Registry
	pool   *pool.Pool
}

// deploy registers the configured tokens, credits the genesis allocations
// and deploys the pool. Genesis holders approve the pool without limit.
func deploy(cfg config.Config, logger *zap.Logger, metrics *pool.Metrics) (*deployment, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	db := state.New(memdb.New())
	reg := token.NewRegistry(db)
	for _, t := range cfg.Tokens {
		addr, err := config.ParseAddress(t.Address)
		if err != nil {
			return nil, err
		}
		opts := []token.FungibleOption{}
		if t.Name != "" {
			opts = append(opts, token.WithName(t.Name))
		}
		if t.TaxBps != 0 {
			opts = append(opts, token.WithTransferTax(t.TaxBps))
		}
		f := token.NewFungible(db, addr, opts...)
		if t.Kind == config.KindWrapped {
			reg.Register(&token.Wrapped{Fungible: f})
		} else {
			reg.Register(f)
		}
		logger.Debug("token registered",
			zap.Stringer("address", addr),
			zap.String("name", f.Name()),
			zap.Uint64("taxBps", t.TaxBps),
		)
	}

	unlimited := new(uint256.Int).SetAllOne()
	for i, a := range cfg.Genesis {
		asset, err := config.ParseAddress(a.Token)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		holder, err := config.ParseAddress(a.Holder)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		amount, err := config.ParseAmount(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if token.IsNative(asset) {
			db.AddBalance(holder, amount, tracing.BalanceChangeTransfer)
			continue
		}
		if err := credit(reg, asset, holder, pc.Address, amount, unlimited); err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}

	p, err := pool.New(db, pc,
		pool.WithLogger(logger),
		pool.WithMetrics(metrics),
		pool.WithTokens(reg),
	)
	if err != nil {
		return nil, err
	}
	if err := db.Commit(); err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	logger.Info("genesis applied",
		zap.Stringer("pool", pc.Address),
		zap.Int("tokens", len(cfg.Tokens)),
		zap.Int("allocations", len(cfg.Genesis)),
	)
	return &deployment{db: db, tokens: reg, pool: p}, nil
}

// minter is satisfied by Fungible and Wrapped
type minter interface {
	Mint(holder common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

func credit(reg *token.Registry, asset, holder, spender common.Address, amount, allowance *uint256.Int) error {
	tok, err := reg.Resolve(asset, nil)
	if err != nil {
		return err
	}
	m, ok := tok.(minter)
	if !ok {
		return fmt.Errorf("token %s cannot be minted", asset.Hex())
	}
	if err := m.Mint(holder, amount); err != nil {
		return err
	}
	return m.Approve(holder, spender, allowance)
}

// receiptOutput is the JSON form of a committed execution
type receiptOutput struct {
	Instructions int          `json:"instructions"`
	ReserveA     *uint256.Int `json:"reserveA"`
	ReserveB     *uint256.Int `json:"reserveB"`
	AccruedA     *uint256.Int `json:"accruedA"`
	AccruedB     *uint256.Int `json:"accruedB"`
	Logs         []*types.Log `json:"logs"`
}

func newReceiptOutput(r *pool.Receipt) receiptOutput {
	return receiptOutput{
		Instructions: r.Instructions,
		ReserveA:     r.ReserveA,
		ReserveB:     r.ReserveB,
		AccruedA:     r.AccruedA,
		AccruedB:     r.AccruedB,
		Logs:         r.Logs,
	}
}
