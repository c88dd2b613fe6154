// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/pairpool/liquidity"
	"github.com/luxfi/pairpool/state"
)

// Storage key prefixes for pool state
var (
	configPrefix      = []byte("pcfg")
	reservePrefix     = []byte("resv")
	liquidityPrefix   = []byte("pliq")
	positionPrefix    = []byte("posn")
	positionIdxPrefix = []byte("pidx")
	positionSetPrefix = []byte("pset")
	feePrefix         = []byte("pfee")
)

// Config slots
var (
	slotDeployed    = makeStorageKey(configPrefix, []byte("deployed"))
	slotTokenA      = makeStorageKey(configPrefix, []byte("tokenA"))
	slotTokenB      = makeStorageKey(configPrefix, []byte("tokenB"))
	slotLPFee       = makeStorageKey(configPrefix, []byte("lpFee"))
	slotWrapped     = makeStorageKey(configPrefix, []byte("wrapped"))
	slotReserveA    = makeStorageKey(reservePrefix, []byte{0})
	slotReserveB    = makeStorageKey(reservePrefix, []byte{1})
	slotTotal       = makeStorageKey(liquidityPrefix, nil)
	slotAccruedA    = makeStorageKey(feePrefix, []byte("accruedA"))
	slotAccruedB    = makeStorageKey(feePrefix, []byte("accruedB"))
	slotProtocolFee = makeStorageKey(feePrefix, []byte("rate"))
	slotReceiver    = makeStorageKey(feePrefix, []byte("receiver"))
	slotPositionLen = makeStorageKey(positionIdxPrefix, []byte("len"))
)

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func positionKey(provider common.Address) common.Hash {
	return makeStorageKey(positionPrefix, provider.Bytes())
}

func positionIndexKey(i uint64) common.Hash {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], i)
	return makeStorageKey(positionIdxPrefix, id[:])
}

func positionSetKey(provider common.Address) common.Hash {
	return makeStorageKey(positionSetPrefix, provider.Bytes())
}

func uintWord(v *uint256.Int) common.Hash { return common.Hash(v.Bytes32()) }

func wordUint(h common.Hash) *uint256.Int { return new(uint256.Int).SetBytes32(h[:]) }

func addrWord(a common.Address) common.Hash { return common.BytesToHash(a.Bytes()) }

func wordAddr(h common.Hash) common.Address { return common.BytesToAddress(h[12:]) }

func (p *Pool) get(key common.Hash) common.Hash { return p.db.GetState(p.cfg.Address, key) }

func (p *Pool) put(key, value common.Hash) { p.db.SetState(p.cfg.Address, key, value) }

// saveConfig writes the immutable deployment parameters
func (p *Pool) saveConfig() {
	p.put(slotDeployed, uintWord(uint256.NewInt(1)))
	p.put(slotTokenA, addrWord(p.cfg.TokenA))
	p.put(slotTokenB, addrWord(p.cfg.TokenB))
	p.put(slotLPFee, uintWord(uint256.NewInt(p.cfg.LPFeeBps)))
	p.put(slotWrapped, addrWord(p.cfg.WrappedNative))
}

// save writes the mutable pool state. Providers are appended to a position
// index the first time they hold units and are never removed from it.
func (p *Pool) save(st *poolState) {
	p.put(slotReserveA, uintWord(st.ledger.ReserveA))
	p.put(slotReserveB, uintWord(st.ledger.ReserveB))
	p.put(slotTotal, uintWord(st.ledger.TotalLiquidity))
	p.put(slotAccruedA, uintWord(st.accruedA))
	p.put(slotAccruedB, uintWord(st.accruedB))
	p.put(slotProtocolFee, uintWord(uint256.NewInt(st.protocolFeeBps)))
	p.put(slotReceiver, addrWord(st.feeReceiver))

	// zero out providers that exited
	n := wordUint(p.get(slotPositionLen)).Uint64()
	for i := uint64(0); i < n; i++ {
		provider := wordAddr(p.get(positionIndexKey(i)))
		p.put(positionKey(provider), uintWord(st.ledger.Position(provider)))
	}
	for _, pos := range st.ledger.Positions() {
		if wordUint(p.get(positionSetKey(pos.Provider))).IsZero() {
			p.put(positionIndexKey(n), addrWord(pos.Provider))
			n++
			p.put(positionSetKey(pos.Provider), uintWord(uint256.NewInt(n)))
		}
		p.put(positionKey(pos.Provider), uintWord(pos.Units))
	}
	p.put(slotPositionLen, uintWord(uint256.NewInt(n)))
}

// Load restores the pool deployed at address. The fee receiver and protocol
// fee come from storage; the constructor values are not needed.
func Load(db state.StateDB, address common.Address, opts ...Option) (*Pool, error) {
	read := func(key common.Hash) common.Hash { return db.GetState(address, key) }
	deployed := wordUint(read(slotDeployed))
	if err := db.Error(); err != nil {
		return nil, err
	}
	if deployed.IsZero() {
		return nil, ErrPoolNotFound
	}

	cfg := Config{
		Address:        address,
		TokenA:         wordAddr(read(slotTokenA)),
		TokenB:         wordAddr(read(slotTokenB)),
		LPFeeBps:       wordUint(read(slotLPFee)).Uint64(),
		ProtocolFeeBps: wordUint(read(slotProtocolFee)).Uint64(),
		FeeReceiver:    wordAddr(read(slotReceiver)),
		WrappedNative:  wordAddr(read(slotWrapped)),
	}
	p := newPool(db, cfg, opts)

	ledger := liquidity.NewLedger()
	ledger.ReserveA = wordUint(read(slotReserveA))
	ledger.ReserveB = wordUint(read(slotReserveB))
	ledger.TotalLiquidity = wordUint(read(slotTotal))
	n := wordUint(read(slotPositionLen)).Uint64()
	for i := uint64(0); i < n; i++ {
		provider := wordAddr(read(positionIndexKey(i)))
		ledger.SetPosition(provider, wordUint(read(positionKey(provider))))
	}
	p.st.ledger = ledger
	p.st.accruedA = wordUint(read(slotAccruedA))
	p.st.accruedB = wordUint(read(slotAccruedB))

	if err := db.Error(); err != nil {
		return nil, err
	}
	if err := ledger.CheckInvariants(); err != nil {
		return nil, err
	}
	return p, nil
}
