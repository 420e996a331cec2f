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
	`os`
	`testing`

	`github.com/stretchr/testify/require`
)

// tempChdir moves the test into a fresh temporary working directory, since the
// data directory and the wallet file live below the working directory.
func tempChdir(t *testing.T) {
	t.Helper()

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(origDir))
	})
}

// newTestWallet creates a wallet persisted in the current working directory and
// returns it with its address.
func newTestWallet(t *testing.T) (*Wallet, string) {
	t.Helper()

	wallets, err := NewWallets()
	require.NoError(t, err)
	addr, err := wallets.CreateWallet()
	require.NoError(t, err)
	wallet, err := wallets.GetWallet(addr)
	require.NoError(t, err)
	return wallet, addr
}
