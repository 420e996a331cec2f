// Copyright 2021 The tinyChain Authors
// This file is part of the tinyChain.
//
// The tinyChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tinyChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tinyChain. If not, see <http://www.gnu.org/licenses/>.

package network

import (
	`bytes`
	`encoding/hex`
	`sync`

	`tinyChain/core`
)

// MemoryPool collects transactions received over the network but not yet packed
// into a block, keyed by hex txid. It is shared across connection handlers.
type MemoryPool struct {
	mtx   sync.RWMutex
	inner map[string]core.Transaction
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{inner: make(map[string]core.Transaction)}
}

// Contains reports whether the pool holds the transaction with the given hex id.
func (pool *MemoryPool) Contains(txIdHex string) bool {
	pool.mtx.RLock()
	defer pool.mtx.RUnlock()
	_, ok := pool.inner[txIdHex]
	return ok
}

// Add stores tx under its hex id.
func (pool *MemoryPool) Add(tx core.Transaction) {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	pool.inner[hex.EncodeToString(tx.Id)] = tx
}

// Get returns the transaction with the given hex id.
func (pool *MemoryPool) Get(txIdHex string) (core.Transaction, bool) {
	pool.mtx.RLock()
	defer pool.mtx.RUnlock()
	tx, ok := pool.inner[txIdHex]
	return tx, ok
}

// Remove drops the transaction with the given hex id.
func (pool *MemoryPool) Remove(txIdHex string) {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	delete(pool.inner, txIdHex)
}

// GetAll returns every pooled transaction.
func (pool *MemoryPool) GetAll() []core.Transaction {
	pool.mtx.RLock()
	defer pool.mtx.RUnlock()
	txs := make([]core.Transaction, 0, len(pool.inner))
	for _, tx := range pool.inner {
		txs = append(txs, tx)
	}
	return txs
}

// Len returns the number of pooled transactions.
func (pool *MemoryPool) Len() int {
	pool.mtx.RLock()
	defer pool.mtx.RUnlock()
	return len(pool.inner)
}

// BlockInTransit is the FIFO queue of block hashes announced by a peer but not
// yet downloaded during a sync handshake.
type BlockInTransit struct {
	mtx   sync.RWMutex
	inner [][]byte
}

func NewBlockInTransit() *BlockInTransit {
	return &BlockInTransit{}
}

// AddBlocks appends a batch of block hashes to the queue.
func (transit *BlockInTransit) AddBlocks(blocks [][]byte) {
	transit.mtx.Lock()
	defer transit.mtx.Unlock()
	for _, hash := range blocks {
		transit.inner = append(transit.inner, append([]byte{}, hash...))
	}
}

// First returns the head of the queue without removing it.
func (transit *BlockInTransit) First() ([]byte, bool) {
	transit.mtx.RLock()
	defer transit.mtx.RUnlock()
	if len(transit.inner) == 0 {
		return nil, false
	}
	return append([]byte{}, transit.inner[0]...), true
}

// Remove drops the first queued hash equal to blockHash.
func (transit *BlockInTransit) Remove(blockHash []byte) {
	transit.mtx.Lock()
	defer transit.mtx.Unlock()
	for idx, hash := range transit.inner {
		if bytes.Equal(hash, blockHash) {
			transit.inner = append(transit.inner[:idx], transit.inner[idx+1:]...)
			return
		}
	}
}

// Len returns the number of queued hashes.
func (transit *BlockInTransit) Len() int {
	transit.mtx.RLock()
	defer transit.mtx.RUnlock()
	return len(transit.inner)
}

// Clear empties the queue.
func (transit *BlockInTransit) Clear() {
	transit.mtx.Lock()
	defer transit.mtx.Unlock()
	transit.inner = nil
}
