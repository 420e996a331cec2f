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

/* This file defines the data structure of Wallet and Wallets, with basic operations provided. */
package core

import (
	`bytes`
	`encoding/gob`
	`io/ioutil`

	`github.com/pkg/errors`

	`tinyChain/utils`
)

const version = byte(0x00)
const walletFile = "wallet.dat"
const addrChecksumLen = 4

// ErrWalletNotFound is reported when a send names an address with no local wallet.
var ErrWalletNotFound = errors.New("Wallet not found")

// Wallet holds an ECDSA key pair: the private key in its portable PKCS#8 encoding
// and the raw public key bytes.
type Wallet struct {
	PKCS8  []byte
	PubKey []byte
}

// NewWallet creates a Wallet with a freshly generated key pair.
func NewWallet() (*Wallet, error) {
	pkcs8, pubKey, err := utils.NewKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{pkcs8, pubKey}, nil
}

// GetAddress derives the wallet's address: base58 of
// version byte + pub-key-hash + the first 4 checksum bytes.
func (wallet *Wallet) GetAddress() string {
	pubKeyHash := HashPubKey(wallet.PubKey)
	versionedPayload := append([]byte{version}, pubKeyHash...)
	fullPayload := append(versionedPayload, checksum(versionedPayload)...)
	return utils.Base58Encode(fullPayload)
}

// HashPubKey hashes the raw public key with sha256 followed by ripemd160.
func HashPubKey(pubKey []byte) []byte {
	return utils.Ripemd160Digest(utils.Sha256Digest(pubKey))
}

// checksum generates the 4-byte checksum of payload: the head of a double sha256.
func checksum(payload []byte) []byte {
	second := utils.Sha256Digest(utils.Sha256Digest(payload))
	return second[:addrChecksumLen]
}

// ValidateAddr checks whether addr is a well-formed tinyChain address: it must
// decode, carry the expected version byte, and close with a matching checksum.
func ValidateAddr(addr string) bool {
	fullPayload := utils.Base58Decode(addr)
	if len(fullPayload) <= addrChecksumLen+1 {
		return false
	}

	actualVersion := fullPayload[0]
	if actualVersion != version {
		return false
	}
	pubKeyHash := fullPayload[1 : len(fullPayload)-addrChecksumLen]
	actualChecksum := fullPayload[len(fullPayload)-addrChecksumLen:]

	targetChecksum := checksum(append([]byte{actualVersion}, pubKeyHash...))
	return bytes.Equal(actualChecksum, targetChecksum)
}

// ConvertAddr renders a pub-key-hash back into its address form.
func ConvertAddr(pubKeyHash []byte) string {
	versionedPayload := append([]byte{version}, pubKeyHash...)
	fullPayload := append(versionedPayload, checksum(versionedPayload)...)
	return utils.Base58Encode(fullPayload)
}

// Wallets is the collection of local wallets, keyed by address.
type Wallets struct {
	WalletsMap map[string]*Wallet
}

// NewWallets loads the wallet collection from the local wallet file. A missing
// file yields an empty collection.
func NewWallets() (*Wallets, error) {
	wallets := Wallets{WalletsMap: make(map[string]*Wallet)}
	if ok, _ := utils.FileExists(walletFile); !ok {
		return &wallets, nil
	}
	err := wallets.LoadFromFile()
	return &wallets, err
}

// LoadFromFile loads the wallet file content into wallets.
func (wallets *Wallets) LoadFromFile() error {
	rawContent, err := ioutil.ReadFile(walletFile)
	if err != nil {
		return errors.Wrap(err, "read wallet file")
	}

	var tmpWallets Wallets
	decoder := gob.NewDecoder(bytes.NewReader(rawContent))
	if err := decoder.Decode(&tmpWallets); err != nil {
		return errors.Wrap(err, "decode wallet file")
	}

	wallets.WalletsMap = tmpWallets.WalletsMap
	return nil
}

// SaveToFile persists the whole collection into the local wallet file.
func (wallets *Wallets) SaveToFile() error {
	if err := ioutil.WriteFile(walletFile, utils.GobEncode(*wallets), 0644); err != nil {
		return errors.Wrap(err, "write wallet file")
	}
	return nil
}

// GetAddrs returns all addresses in the collection.
func (wallets *Wallets) GetAddrs() []string {
	var addrs []string
	for addr := range wallets.WalletsMap {
		addrs = append(addrs, addr)
	}
	return addrs
}

// GetWallet returns the Wallet stored under addr.
func (wallets *Wallets) GetWallet(addr string) (*Wallet, error) {
	wallet, ok := wallets.WalletsMap[addr]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return wallet, nil
}

// CreateWallet creates a new Wallet, adds it to the collection, persists the
// collection, and returns the new address.
func (wallets *Wallets) CreateWallet() (string, error) {
	wallet, err := NewWallet()
	if err != nil {
		return "", err
	}
	addr := wallet.GetAddress()
	wallets.WalletsMap[addr] = wallet

	if err := wallets.SaveToFile(); err != nil {
		return "", err
	}
	return addr, nil
}
