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
	`encoding/hex`
	`log`
	`os`
	`path/filepath`
	`sync`

	`github.com/boltdb/bolt`
	`github.com/pkg/errors`

	`tinyChain/utils`
)

/* tinyChain is persisted in boltdb under the data directory. The blocks bucket maps
each block's hex hash to the serialized block and additionally holds the
distinguished key tip_block_hash pointing at the current tip. The chainstate bucket
(see utxo_set.go) mirrors the unspent outputs of the chain rooted at that tip. */
const (
	dataDir         = "data"
	dbFile          = "tinyChain.db"
	blocksBucket    = "blocks"
	tipBlockHashKey = "tip_block_hash"
)

// ErrNoBlockchain is reported when a command needs an existing chain and none has
// been created yet.
var ErrNoBlockchain = errors.New("no existing blockchain found, create one first")

// BlockChain holds the handle of the local block store and the hex hash of the
// current tip. The tip is guarded by a reader-writer lock so height queries and
// tip advancement stay atomic with respect to each other.
type BlockChain struct {
	mtx sync.RWMutex
	tip string

	Db *bolt.DB
}

func openDb() (*bolt.DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	db, err := bolt.Open(filepath.Join(dataDir, dbFile), 0644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open block store")
	}
	return db, nil
}

// CreateBlockChain opens (or creates) the local store. When a tip is already
// recorded the existing chain is reused; otherwise a coinbase transaction paying
// genesisAddr is mined into the genesis block and block plus tip are written in a
// single store transaction.
func CreateBlockChain(genesisAddr string) (*BlockChain, error) {
	db, err := openDb()
	if err != nil {
		return nil, err
	}

	var tip string
	err = db.Update(func(dbTx *bolt.Tx) error {
		bucket, err := dbTx.CreateBucketIfNotExists([]byte(blocksBucket))
		if err != nil {
			return err
		}
		if _, err := dbTx.CreateBucketIfNotExists([]byte(utxoBucket)); err != nil {
			return err
		}

		if stored := bucket.Get([]byte(tipBlockHashKey)); stored != nil {
			tip = string(stored)
			return nil
		}

		coinbaseTx := NewCoinbaseTx(genesisAddr)
		genesisBlock := NewGenesisBlock(coinbaseTx)

		if err := bucket.Put([]byte(genesisBlock.Hash), genesisBlock.Serialize()); err != nil {
			return err
		}
		if err := bucket.Put([]byte(tipBlockHashKey), []byte(genesisBlock.Hash)); err != nil {
			return err
		}
		tip = genesisBlock.Hash
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create blockchain")
	}

	return &BlockChain{tip: tip, Db: db}, nil
}

// NewBlockChain opens the existing local store; it fails when no tip is recorded.
func NewBlockChain() (*BlockChain, error) {
	if ok, _ := utils.FileExists(filepath.Join(dataDir, dbFile)); !ok {
		return nil, ErrNoBlockchain
	}

	db, err := openDb()
	if err != nil {
		return nil, err
	}

	var tip string
	err = db.View(func(dbTx *bolt.Tx) error {
		bucket := dbTx.Bucket([]byte(blocksBucket))
		if bucket == nil {
			return ErrNoBlockchain
		}
		stored := bucket.Get([]byte(tipBlockHashKey))
		if stored == nil {
			return ErrNoBlockchain
		}
		tip = string(stored)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BlockChain{tip: tip, Db: db}, nil
}

// GetTipHash returns the hex hash of the current tip.
func (chain *BlockChain) GetTipHash() string {
	chain.mtx.RLock()
	defer chain.mtx.RUnlock()
	return chain.tip
}

func (chain *BlockChain) setTipHash(newTip string) {
	chain.mtx.Lock()
	defer chain.mtx.Unlock()
	chain.tip = newTip
}

// GetBestHeight returns the height of the tip block.
func (chain *BlockChain) GetBestHeight() int {
	tipBlock, err := chain.GetBlock([]byte(chain.GetTipHash()))
	if err != nil {
		log.Panic(err)
	}
	if tipBlock == nil {
		log.Panic("Error: the tip hash points at no stored block")
	}
	return tipBlock.Height
}

// MineBlock appends a new block holding txs to the chain through PoW. Every
// transaction must verify against the current chain; an invalid one means the
// caller constructed an inconsistent transaction and is fatal.
func (chain *BlockChain) MineBlock(txs []*Transaction) *Block {
	for _, tx := range txs {
		if !chain.VerifyTx(tx) {
			log.Panic("Error: invalid transaction found while mining")
		}
	}

	bestHeight := chain.GetBestHeight()
	newBlock := NewBlock(chain.GetTipHash(), txs, bestHeight+1)

	err := chain.Db.Update(func(dbTx *bolt.Tx) error {
		bucket := dbTx.Bucket([]byte(blocksBucket))
		if err := bucket.Put([]byte(newBlock.Hash), newBlock.Serialize()); err != nil {
			return err
		}
		return bucket.Put([]byte(tipBlockHashKey), []byte(newBlock.Hash))
	})
	if err != nil {
		log.Panic(err)
	}
	chain.setTipHash(newBlock.Hash)

	return newBlock
}

// AddBlock stores a block received from the network. Re-adding a known block is a
// no-op. The persisted tip is re-read inside the store transaction and advanced
// only when the new block's height strictly exceeds it; the in-memory tip follows
// the persisted one.
func (chain *BlockChain) AddBlock(block *Block) error {
	tipAdvanced := false
	err := chain.Db.Update(func(dbTx *bolt.Tx) error {
		bucket := dbTx.Bucket([]byte(blocksBucket))
		if bucket.Get([]byte(block.Hash)) != nil {
			return nil
		}

		if err := bucket.Put([]byte(block.Hash), block.Serialize()); err != nil {
			return err
		}

		storedTip := bucket.Get([]byte(tipBlockHashKey))
		if storedTip == nil {
			return nil
		}
		tipBytes := bucket.Get(storedTip)
		if tipBytes == nil {
			return nil
		}
		tipBlock, err := DeserializeBlock(tipBytes)
		if err != nil {
			return err
		}

		if block.Height > tipBlock.Height {
			if err := bucket.Put([]byte(tipBlockHashKey), []byte(block.Hash)); err != nil {
				return err
			}
			tipAdvanced = true
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "add block")
	}

	if tipAdvanced {
		chain.setTipHash(block.Hash)
	}
	return nil
}

// GetBlock returns the block stored under blockHash (the hex hash as bytes), or
// nil when the store does not have it.
func (chain *BlockChain) GetBlock(blockHash []byte) (*Block, error) {
	var block *Block
	err := chain.Db.View(func(dbTx *bolt.Tx) error {
		bucket := dbTx.Bucket([]byte(blocksBucket))
		encodedBlock := bucket.Get(blockHash)
		if encodedBlock == nil {
			return nil
		}
		decoded, err := DeserializeBlock(encodedBlock)
		if err != nil {
			return err
		}
		block = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetBlockHashes collects the hashes of all blocks from the tip to genesis.
func (chain *BlockChain) GetBlockHashes() [][]byte {
	var hashes [][]byte
	iter := chain.Iterator()
	for {
		block := iter.Next()
		if block == nil {
			break
		}
		hashes = append(hashes, []byte(block.Hash))
	}
	return hashes
}

// FindTx returns the Transaction with the given id, scanning from tip to genesis.
func (chain *BlockChain) FindTx(txId []byte) (Transaction, error) {
	iter := chain.Iterator()
	for {
		block := iter.Next()
		if block == nil {
			break
		}
		for _, tx := range block.Transactions {
			if bytes.Equal(tx.Id, txId) {
				return *tx, nil
			}
		}
	}
	return Transaction{}, errors.New("transaction not found")
}

// FindUTXO walks the whole chain and returns, keyed by hex txid, every output not
// referenced by any non-coinbase input.
func (chain *BlockChain) FindUTXO() map[string]TxOutputs {
	utxo := make(map[string]TxOutputs)
	spentTxOutputs := make(map[string][]int)
	iter := chain.Iterator()

	for {
		block := iter.Next()
		if block == nil {
			break
		}
		for _, tx := range block.Transactions {
			txIdHex := hex.EncodeToString(tx.Id)

		Outputs:
			for txOutputIdx, txOutput := range tx.Vout {
				if spentTxOutputs[txIdHex] != nil {
					for _, spentOutIdx := range spentTxOutputs[txIdHex] {
						if txOutputIdx == spentOutIdx {
							continue Outputs
						}
					}
				}
				txOutputs := utxo[txIdHex]
				txOutputs.Outputs = append(txOutputs.Outputs, txOutput)
				utxo[txIdHex] = txOutputs
			}

			if !tx.IsCoinbase() {
				for _, txInput := range tx.Vin {
					inTxIdHex := hex.EncodeToString(txInput.TxId)
					spentTxOutputs[inTxIdHex] = append(spentTxOutputs[inTxIdHex], txInput.Vout)
				}
			}
		}
	}

	return utxo
}

/* The following two functions are wrappers to tx.Sign and tx.Verify. */

// SignTx signs the inputs of tx with the sender's PKCS#8-encoded private key.
func (chain *BlockChain) SignTx(tx *Transaction, pkcs8 []byte) {
	tx.Sign(pkcs8, chain.getPrevTxs(tx))
}

// VerifyTx verifies the input signatures of tx against the chain.
func (chain *BlockChain) VerifyTx(tx *Transaction) bool {
	if tx.IsCoinbase() {
		return true
	}
	return tx.Verify(chain.getPrevTxs(tx))
}

// getPrevTxs returns a map of the transactions whose outputs are pointed at by the
// inputs of tx, keyed by hex txid. A missing previous transaction is an invariant
// violation of the local chain.
func (chain *BlockChain) getPrevTxs(tx *Transaction) map[string]Transaction {
	prevTxs := make(map[string]Transaction)
	for _, txInput := range tx.Vin {
		prevTx, err := chain.FindTx(txInput.TxId)
		if err != nil {
			log.Panic(err)
		}
		prevTxs[hex.EncodeToString(prevTx.Id)] = prevTx
	}
	return prevTxs
}

// IterOnChain is an iterator on the blockchain, walking from the tip to genesis.
type IterOnChain struct {
	curBlockHash string
	db           *bolt.DB
}

// Iterator returns an IterOnChain starting at the current tip.
func (chain *BlockChain) Iterator() *IterOnChain {
	return &IterOnChain{chain.GetTipHash(), chain.Db}
}

// Next returns the block under the iterator's cursor and moves the cursor to its
// predecessor. It returns nil once the cursor's key is absent from the store (the
// genesis prev-hash "None" is never stored, so iteration terminates there).
func (iter *IterOnChain) Next() *Block {
	var block *Block
	err := iter.db.View(func(dbTx *bolt.Tx) error {
		bucket := dbTx.Bucket([]byte(blocksBucket))
		encodedBlock := bucket.Get([]byte(iter.curBlockHash))
		if encodedBlock == nil {
			return nil
		}
		decoded, err := DeserializeBlock(encodedBlock)
		if err != nil {
			return err
		}
		block = decoded
		return nil
	})
	if err != nil {
		log.Panic(err)
	}
	if block == nil {
		return nil
	}

	iter.curBlockHash = block.PrevBlockHash
	return block
}
