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
	`testing`

	`github.com/stretchr/testify/assert`
	`github.com/stretchr/testify/require`

	`tinyChain/utils`
)

func TestWalletAddressRoundTrip(t *testing.T) {
	wallet, err := NewWallet()
	require.NoError(t, err)

	addr := wallet.GetAddress()
	assert.True(t, ValidateAddr(addr))

	// the address embeds the pub-key-hash
	payload := utils.Base58Decode(addr)
	require.Len(t, payload, 1+20+addrChecksumLen)
	assert.Equal(t, HashPubKey(wallet.PubKey), payload[1:21])
	assert.Equal(t, addr, ConvertAddr(payload[1:21]))
}

func TestHashPubKeyLength(t *testing.T) {
	wallet, err := NewWallet()
	require.NoError(t, err)
	assert.Len(t, HashPubKey(wallet.PubKey), 20)
}

func TestValidateAddrRejections(t *testing.T) {
	assert.False(t, ValidateAddr(""))
	assert.False(t, ValidateAddr("xxx"))
	assert.False(t, ValidateAddr("0OIl not base58"))

	wallet, err := NewWallet()
	require.NoError(t, err)
	addr := wallet.GetAddress()

	// corrupt the checksum
	payload := utils.Base58Decode(addr)
	payload[len(payload)-1] ^= 0xff
	assert.False(t, ValidateAddr(utils.Base58Encode(payload)))

	// wrong version byte
	payload = utils.Base58Decode(addr)
	payload[0] = 0x42
	assert.False(t, ValidateAddr(utils.Base58Encode(payload)))
}

func TestWalletsPersistence(t *testing.T) {
	tempChdir(t)

	wallets, err := NewWallets()
	require.NoError(t, err)
	assert.Empty(t, wallets.GetAddrs())

	addr1, err := wallets.CreateWallet()
	require.NoError(t, err)
	addr2, err := wallets.CreateWallet()
	require.NoError(t, err)
	require.NotEqual(t, addr1, addr2)

	reloaded, err := NewWallets()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{addr1, addr2}, reloaded.GetAddrs())

	original, err := wallets.GetWallet(addr1)
	require.NoError(t, err)
	loaded, err := reloaded.GetWallet(addr1)
	require.NoError(t, err)
	assert.Equal(t, original.PKCS8, loaded.PKCS8)
	assert.Equal(t, original.PubKey, loaded.PubKey)
}

func TestGetWalletNotFound(t *testing.T) {
	tempChdir(t)

	wallets, err := NewWallets()
	require.NoError(t, err)
	_, err = wallets.GetWallet("unknown address")
	assert.Equal(t, ErrWalletNotFound, err)
}
