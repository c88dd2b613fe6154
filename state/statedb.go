// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides the host state a pair pool executes against: account
// storage, native balances, snapshots and logs.
package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
)

// ErrInsufficientBalance is returned by SubBalance when the account is short
var ErrInsufficientBalance = errors.New("insufficient balance")

// StateDB is the subset of EVM state the pool and its tokens need.
// SubBalance reports a short balance instead of wrapping.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int
	SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) (uint256.Int, error)
	Snapshot() int
	RevertToSnapshot(id int)
	AddLog(log *types.Log)
	Logs() []*types.Log

	// Error returns the first database failure hit by a read
	Error() error
}

// Key prefixes in the backing database
var (
	storagePrefix = []byte("stor")
	balancePrefix = []byte("bal_")
)

type journalKind uint8

const (
	storageChange journalKind = iota
	balanceChange
	logChange
)

// journalEntry records the value overwritten by one mutation
type journalEntry struct {
	kind    journalKind
	addr    common.Address
	key     common.Hash
	prevVal common.Hash
	prevBal *uint256.Int
}

// DB is an in-memory overlay with a revert journal on top of a database.
// Reads fall through the overlay to the database; Commit flushes the overlay.
type DB struct {
	db database.Database

	// dbErr is the first read failure other than a missing key. Once set,
	// Commit refuses to write.
	dbErr error

	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	logs     []*types.Log
	journal  []journalEntry
}

var _ StateDB = (*DB)(nil)

// New returns a DB backed by db
func New(db database.Database) *DB {
	return &DB{
		db:       db,
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
	}
}

func storageKey(addr common.Address, key common.Hash) []byte {
	k := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	k = append(k, storagePrefix...)
	k = append(k, addr.Bytes()...)
	return append(k, key.Bytes()...)
}

func balanceKey(addr common.Address) []byte {
	k := make([]byte, 0, len(balancePrefix)+common.AddressLength)
	k = append(k, balancePrefix...)
	return append(k, addr.Bytes()...)
}

// read loads a committed value, treating a missing key as zero. Any other
// failure is recorded and also reads as zero.
func (s *DB) read(key []byte) []byte {
	v, err := s.db.Get(key)
	switch {
	case err == nil:
		return v
	case errors.Is(err, database.ErrNotFound):
	default:
		s.setError(fmt.Errorf("read state: %w", err))
	}
	return nil
}

func (s *DB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first database failure hit by a read
func (s *DB) Error() error { return s.dbErr }

// GetState returns a storage slot
func (s *DB) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	return common.BytesToHash(s.read(storageKey(addr, key)))
}

// SetState writes a storage slot and returns the previous value
func (s *DB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	prev := s.GetState(addr, key)
	s.journal = append(s.journal, journalEntry{kind: storageChange, addr: addr, key: key, prevVal: prev})
	s.setState(addr, key, value)
	return prev
}

func (s *DB) setState(addr common.Address, key common.Hash, value common.Hash) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.storage[addr] = slots
	}
	slots[key] = value
}

// GetBalance returns the native balance of addr
func (s *DB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int).SetBytes(s.read(balanceKey(addr)))
}

// AddBalance credits addr and returns the previous balance
func (s *DB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	s.journal = append(s.journal, journalEntry{kind: balanceChange, addr: addr, prevBal: prev})
	s.balances[addr] = new(uint256.Int).Add(prev, amount)
	return *prev
}

// SubBalance debits addr. The balance is left untouched when it is short.
func (s *DB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) (uint256.Int, error) {
	prev := s.GetBalance(addr)
	if prev.Lt(amount) {
		return *prev, fmt.Errorf("%w: account=%s, balance=%s, amount=%s", ErrInsufficientBalance, addr.Hex(), prev, amount)
	}
	s.journal = append(s.journal, journalEntry{kind: balanceChange, addr: addr, prevBal: prev})
	s.balances[addr] = new(uint256.Int).Sub(prev, amount)
	return *prev, nil
}

// Snapshot returns an identifier for the current state
func (s *DB) Snapshot() int { return len(s.journal) }

// RevertToSnapshot undoes every mutation made after id was taken
func (s *DB) RevertToSnapshot(id int) {
	if id < 0 || id > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		e := s.journal[i]
		switch e.kind {
		case storageChange:
			s.setState(e.addr, e.key, e.prevVal)
		case balanceChange:
			s.balances[e.addr] = e.prevBal
		case logChange:
			s.logs = s.logs[:len(s.logs)-1]
		}
	}
	s.journal = s.journal[:id]
}

// AddLog records an event
func (s *DB) AddLog(log *types.Log) {
	s.journal = append(s.journal, journalEntry{kind: logChange})
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

// Logs returns every event recorded since the last Commit
func (s *DB) Logs() []*types.Log {
	out := make([]*types.Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// Commit writes the overlay to the database in one batch and clears the
// journal and logs. Snapshots taken before Commit become invalid. A read
// failure recorded earlier is returned without writing anything.
func (s *DB) Commit() error {
	if s.dbErr != nil {
		return s.dbErr
	}
	batch := s.db.NewBatch()
	for addr, slots := range s.storage {
		for key, value := range slots {
			if err := batch.Put(storageKey(addr, key), value.Bytes()); err != nil {
				return err
			}
		}
	}
	for addr, bal := range s.balances {
		word := bal.Bytes32()
		if err := batch.Put(balanceKey(addr), word[:]); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}

	s.storage = make(map[common.Address]map[common.Hash]common.Hash)
	s.balances = make(map[common.Address]*uint256.Int)
	s.journal = nil
	s.logs = nil
	return nil
}
