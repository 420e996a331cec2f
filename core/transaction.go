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
	`encoding/gob`
	`encoding/hex`
	`fmt`
	`log`
	`strings`

	`github.com/google/uuid`
	`github.com/pkg/errors`

	`tinyChain/utils`
)

// subsidy is the reward carried by every coinbase transaction. Minting the subsidy
// is the only way new coins enter the chain.
const subsidy = int32(10)

// ErrNotEnoughFunds is reported when the sender's spendable outputs do not cover
// the requested amount.
var ErrNotEnoughFunds = errors.New("Not enough funds")

// TxInput points at one output of a previous Transaction.
// TxId is the id of that transaction and Vout the index of the pointed output.
// Signature is produced with the sender's private key; PubKey is the sender's raw
// public key. A coinbase input carries an empty PubKey and a random unique tag in
// the Signature field.
type TxInput struct {
	TxId      []byte
	Vout      int
	Signature []byte
	PubKey    []byte
}

// UsesKey checks whether the input was created by the owner of pubKeyHash.
func (txInput *TxInput) UsesKey(pubKeyHash []byte) bool {
	lockingHash := HashPubKey(txInput.PubKey)
	return bytes.Equal(lockingHash, pubKeyHash)
}

// TxOutput holds a Value of coins locked to the PubKeyHash of the receiver.
type TxOutput struct {
	Value      int32
	PubKeyHash []byte
}

// Lock sets the output's receiver from a base58 address.
func (txOutput *TxOutput) Lock(addr string) {
	payload := utils.Base58Decode(addr)
	txOutput.PubKeyHash = payload[1 : len(payload)-addrChecksumLen]
}

// IsLockedWithKey checks whether the owner of pubKeyHash can spend txOutput.
func (txOutput *TxOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(txOutput.PubKeyHash, pubKeyHash)
}

// NewTxOutput creates a new TxOutput locked to addr.
func NewTxOutput(value int32, addr string) *TxOutput {
	txOutput := &TxOutput{value, nil}
	txOutput.Lock(addr)
	return txOutput
}

// Transaction consists of its Id, a collection of TxInput, and a collection of TxOutput.
type Transaction struct {
	Id   []byte
	Vin  []TxInput
	Vout []TxOutput
}

// IsCoinbase judges whether tx is a coinbase transaction: exactly one input whose
// PubKey is empty.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && len(tx.Vin[0].PubKey) == 0
}

// Serialize converts tx into a serialized byte slice.
func (tx Transaction) Serialize() []byte {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	err := encoder.Encode(tx)
	if err != nil {
		log.Panic(err)
	}

	return buf.Bytes()
}

// DeserializeTx decodes a Transaction from its serialized bytes. Transactions
// arrive over the wire, so a malformed payload is an error, not a panic.
func DeserializeTx(encodedData []byte) (Transaction, error) {
	var tx Transaction
	decoder := gob.NewDecoder(bytes.NewReader(encodedData))

	if err := decoder.Decode(&tx); err != nil {
		return Transaction{}, errors.Wrap(err, "decode transaction")
	}

	return tx, nil
}

// Hash returns the sha256 of tx serialized with its Id field cleared.
func (tx *Transaction) Hash() []byte {
	txCopy := *tx
	txCopy.Id = []byte{}
	return utils.Sha256Digest(txCopy.Serialize())
}

// NewCoinbaseTx returns a coinbase transaction paying the subsidy to dstAddr.
// The input's signature holds 16 random bytes; this unique tag is what keeps the
// ids of coinbase transactions on different blocks from colliding.
func NewCoinbaseTx(dstAddr string) *Transaction {
	tag := uuid.New()
	txIn := TxInput{nil, 0, tag[:], nil}
	txOut := NewTxOutput(subsidy, dstAddr)

	tx := Transaction{nil, []TxInput{txIn}, []TxOutput{*txOut}}
	tx.Id = tx.Hash()

	return &tx
}

// NewUTXOTransaction builds and signs a transaction moving amount coins from
// srcAddr to dstAddr, selecting inputs from the UTXO set.
func NewUTXOTransaction(srcAddr, dstAddr string, amount int32, utxoSet *UTXOSet) (*Transaction, error) {
	wallets, err := NewWallets()
	if err != nil {
		return nil, err
	}
	wallet, err := wallets.GetWallet(srcAddr)
	if err != nil {
		return nil, err
	}
	pubKeyHash := HashPubKey(wallet.PubKey)

	accumulated, unspentOutputs := utxoSet.FindSpendableOutputs(pubKeyHash, amount)
	if accumulated < amount {
		return nil, ErrNotEnoughFunds
	}

	var vin []TxInput
	for txIdHex, outputIndices := range unspentOutputs {
		txId, err := hex.DecodeString(txIdHex)
		if err != nil {
			return nil, errors.Wrap(err, "decode txid")
		}
		for _, outputIdx := range outputIndices {
			vin = append(vin, TxInput{txId, outputIdx, nil, wallet.PubKey})
		}
	}

	vout := []TxOutput{*NewTxOutput(amount, dstAddr)}
	if accumulated > amount {
		// the change goes back to the sender
		vout = append(vout, *NewTxOutput(accumulated-amount, srcAddr))
	}

	tx := Transaction{nil, vin, vout}
	tx.Id = tx.Hash()
	utxoSet.BlockChain.SignTx(&tx, wallet.PKCS8)

	return &tx, nil
}

// TrimmedCopy copies tx keeping only the TxId and Vout of each input; signatures
// and public keys are cleared. The per-input signing digest is derived from it.
func (tx *Transaction) TrimmedCopy() Transaction {
	var vin []TxInput
	var vout []TxOutput

	for _, txInput := range tx.Vin {
		vin = append(vin, TxInput{TxId: txInput.TxId, Vout: txInput.Vout})
	}
	for _, txOutput := range tx.Vout {
		vout = append(vout, TxOutput{Value: txOutput.Value, PubKeyHash: txOutput.PubKeyHash})
	}

	return Transaction{tx.Id, vin, vout}
}

// Sign signs each input of tx with the PKCS#8-encoded private key. prevTxs maps
// hex txid to the previous transaction each input points at; a missing previous
// transaction is an invariant violation of the local chain and panics.
func (tx *Transaction) Sign(pkcs8 []byte, prevTxs map[string]Transaction) {
	if tx.IsCoinbase() {
		return
	}

	for _, txInput := range tx.Vin {
		if prevTxs[hex.EncodeToString(txInput.TxId)].Id == nil {
			log.Panic("Error: previous transaction is not correct")
		}
	}

	txCopy := tx.TrimmedCopy()
	for txInputIdx, txInput := range txCopy.Vin {
		prevTx := prevTxs[hex.EncodeToString(txInput.TxId)]
		txCopy.Vin[txInputIdx].Signature = nil
		txCopy.Vin[txInputIdx].PubKey = prevTx.Vout[txInput.Vout].PubKeyHash
		txCopy.Id = txCopy.Hash()
		txCopy.Vin[txInputIdx].PubKey = nil

		tx.Vin[txInputIdx].Signature = utils.EcdsaSignDigest(pkcs8, txCopy.Id)
	}
}

// Verify rebuilds the signing digest of every input exactly as Sign does and
// checks the carried signature against the carried public key. Coinbase
// transactions verify vacuously.
func (tx *Transaction) Verify(prevTxs map[string]Transaction) bool {
	if tx.IsCoinbase() {
		return true
	}

	for _, txInput := range tx.Vin {
		if prevTxs[hex.EncodeToString(txInput.TxId)].Id == nil {
			log.Panic("Error: previous transaction is not correct")
		}
	}

	txCopy := tx.TrimmedCopy()
	for txInputIdx, txInput := range tx.Vin {
		prevTx := prevTxs[hex.EncodeToString(txInput.TxId)]
		txCopy.Vin[txInputIdx].Signature = nil
		txCopy.Vin[txInputIdx].PubKey = prevTx.Vout[txInput.Vout].PubKeyHash
		txCopy.Id = txCopy.Hash()
		txCopy.Vin[txInputIdx].PubKey = nil

		if !utils.EcdsaVerify(txInput.PubKey, txInput.Signature, txCopy.Id) {
			return false
		}
	}

	return true
}

// String formalizes the output style of a Transaction.
func (tx Transaction) String() string {
	var outStr []string
	outStr = append(outStr, fmt.Sprintf("TxId: %x", tx.Id))
	for txInputIdx, txInput := range tx.Vin {
		outStr = append(outStr, fmt.Sprintf("--Input #%d", txInputIdx))
		outStr = append(outStr, fmt.Sprintf("----TxId: %x", txInput.TxId))
		outStr = append(outStr, fmt.Sprintf("----Vout: %d", txInput.Vout))
		outStr = append(outStr, fmt.Sprintf("----Signature: %x", txInput.Signature))
		outStr = append(outStr, fmt.Sprintf("----PubKey: %x", txInput.PubKey))
	}
	for txOutputIdx, txOutput := range tx.Vout {
		outStr = append(outStr, fmt.Sprintf("--Output #%d", txOutputIdx))
		outStr = append(outStr, fmt.Sprintf("----Value: %d", txOutput.Value))
		outStr = append(outStr, fmt.Sprintf("----PubKeyHash: %x", txOutput.PubKeyHash))
	}
	return strings.Join(outStr, "\n")
}
