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

package core

import (
	`bytes`
	`crypto/sha256`
	`encoding/gob`
	`log`
	`time`

	`github.com/pkg/errors`
)

// GenesisPrevBlockHash is the prev-hash sentinel carried by the genesis block.
// It participates in the PoW header bytes, so the literal must never change.
const GenesisPrevBlockHash = "None"

// Block consists of the block header and the block body.
type Block struct {
	// block header
	TimeStamp     int64
	PrevBlockHash string
	Hash          string
	Nonce         int64
	Height        int

	// block body (a collection of transactions)
	Transactions []*Transaction
}

// NewBlock generates a new block at the given height with a slice of Transaction
// and the previous block's hex hash. PoW runs here; the resulting nonce and
// lowercase hex hash are stored on the block.
func NewBlock(prevBlockHash string, txs []*Transaction, height int) *Block {
	block := &Block{
		TimeStamp:     time.Now().Unix(),
		PrevBlockHash: prevBlockHash,
		Hash:          "",
		Nonce:         0,
		Height:        height,
		Transactions:  txs,
	}

	pow := NewPoW(block)
	nonce, hash := pow.Run()
	block.Nonce = nonce
	block.Hash = hash

	return block
}

// NewGenesisBlock generates the very first block of the chain with only the
// coinbase transaction.
func NewGenesisBlock(coinbaseTx *Transaction) *Block {
	return NewBlock(GenesisPrevBlockHash, []*Transaction{coinbaseTx}, 0)
}

// Serialize converts the block's content into a serialized byte slice.
func (block *Block) Serialize() []byte {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	err := encoder.Encode(block)
	if err != nil {
		log.Panic(err)
	}

	return buf.Bytes()
}

// DeserializeBlock returns a block pointer decoded from encodedData. Blocks arrive
// over the wire, so a malformed payload is an error, not a panic.
func DeserializeBlock(encodedData []byte) (*Block, error) {
	var block Block
	decoder := gob.NewDecoder(bytes.NewReader(encodedData))

	if err := decoder.Decode(&block); err != nil {
		return nil, errors.Wrap(err, "decode block")
	}

	return &block, nil
}

// HashTransactions returns the sha256 of the concatenation of every transaction id
// in order. This surrogate stands in for a merkle root in the block header.
func (block *Block) HashTransactions() []byte {
	var txIds [][]byte
	for _, tx := range block.Transactions {
		txIds = append(txIds, tx.Id)
	}
	hashed := sha256.Sum256(bytes.Join(txIds, []byte{}))
	return hashed[:]
}
