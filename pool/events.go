// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Event topics
var (
	TopicSwap               = eventTopic("Swap(address,bool,uint256,uint256,uint256)")
	TopicMint               = eventTopic("Mint(address,uint256,uint256,uint256)")
	TopicBurn               = eventTopic("Burn(address,uint256,uint256,uint256)")
	TopicFeesClaimed        = eventTopic("FeesClaimed(address,uint256,uint256)")
	TopicFeeReceiverUpdated = eventTopic("FeeReceiverUpdated(address,uint256)")
)

func eventTopic(signature string) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(signature)))
}

// emit appends a log whose first indexed argument is an address and whose
// data is the given words
func (p *Pool) emit(topic common.Hash, indexed common.Address, words ...*uint256.Int) {
	data := make([]byte, 0, 32*len(words))
	for _, w := range words {
		b := w.Bytes32()
		data = append(data, b[:]...)
	}
	p.db.AddLog(&types.Log{
		Address: p.cfg.Address,
		Topics:  []common.Hash{topic, common.BytesToHash(indexed.Bytes())},
		Data:    data,
	})
}

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func (p *Pool) emitSwap(caller common.Address, aToB bool, amountIn, amountOut, protocolFee *uint256.Int) {
	p.emit(TopicSwap, caller, boolWord(aToB), amountIn, amountOut, protocolFee)
}

func (p *Pool) emitMint(provider common.Address, units, amountA, amountB *uint256.Int) {
	p.emit(TopicMint, provider, units, amountA, amountB)
}

func (p *Pool) emitBurn(provider common.Address, units, amountA, amountB *uint256.Int) {
	p.emit(TopicBurn, provider, units, amountA, amountB)
}

func (p *Pool) emitFeesClaimed(receiver common.Address, feeA, feeB *uint256.Int) {
	p.emit(TopicFeesClaimed, receiver, feeA, feeB)
}

func (p *Pool) emitFeeReceiverUpdated(receiver common.Address, rateBps uint64) {
	p.emit(TopicFeeReceiverUpdated, receiver, uint256.NewInt(rateBps))
}
