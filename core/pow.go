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
	`crypto/sha256`
	`encoding/hex`
	`fmt`
	`math`
	`math/big`

	`tinyChain/utils`
)

// number of 0 bits at the beginning of the hash for PoW
const targetBits = 8

// the trial of nonce ranging from 0 to maxNonce
const maxNonce = int64(math.MaxInt64)

type ProofOfWork struct {
	block  *Block
	target *big.Int
}

// NewPoW defines the PoW for each block.
func NewPoW(block *Block) *ProofOfWork {
	// set the target as 1 << (256 - targetBits)
	target := big.NewInt(1)
	target.Lsh(target, uint(256-targetBits))
	return &ProofOfWork{block, target}
}

// prepareData joins the header fields into a byte slice for hashing. The order and
// widths are fixed: prev-hash bytes, tx-hash surrogate, timestamp (int64 BE),
// targetBits (int32 LE), nonce (int64 BE). Already-mined blocks hash under exactly
// this layout.
func (pow *ProofOfWork) prepareData(nonce int64) []byte {
	var data []byte
	data = append(data, []byte(pow.block.PrevBlockHash)...)
	data = append(data, pow.block.HashTransactions()...)
	data = append(data, utils.Int2Hex(pow.block.TimeStamp)...)
	data = append(data, utils.Int2LeHex(int32(targetBits))...)
	data = append(data, utils.Int2Hex(nonce)...)
	return data
}

// Run finds the smallest nonce whose header hash, read as a big-endian unsigned
// integer, is strictly below the target. It returns the nonce and the lowercase
// hex encoding of the hash.
func (pow *ProofOfWork) Run() (int64, string) {
	var hashInt big.Int
	var hash [32]byte
	nonce := int64(0)

	fmt.Println("Mining a new block...")
	for nonce < maxNonce {
		data := pow.prepareData(nonce)
		hash = sha256.Sum256(data)
		hashInt.SetBytes(hash[:])
		if hashInt.Cmp(pow.target) == -1 {
			break
		}
		nonce++
	}
	fmt.Printf("%x\n", hash)

	return nonce, hex.EncodeToString(hash[:])
}

// Validate re-runs the hash with the stored nonce and checks it against the target.
func (pow *ProofOfWork) Validate() bool {
	var hashInt big.Int

	data := pow.prepareData(pow.block.Nonce)
	hash := sha256.Sum256(data)
	hashInt.SetBytes(hash[:])

	return hashInt.Cmp(pow.target) == -1
}
