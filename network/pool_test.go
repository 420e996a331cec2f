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
	`encoding/hex`
	`testing`

	`github.com/stretchr/testify/assert`
	`github.com/stretchr/testify/require`

	`tinyChain/core`
)

func TestMemoryPool(t *testing.T) {
	pool := NewMemoryPool()
	assert.Equal(t, 0, pool.Len())

	tx := core.Transaction{Id: []byte{0x01, 0x02}}
	txIdHex := hex.EncodeToString(tx.Id)
	assert.False(t, pool.Contains(txIdHex))

	pool.Add(tx)
	assert.True(t, pool.Contains(txIdHex))
	assert.Equal(t, 1, pool.Len())

	got, ok := pool.Get(txIdHex)
	require.True(t, ok)
	assert.Equal(t, tx.Id, got.Id)

	all := pool.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, tx.Id, all[0].Id)

	pool.Remove(txIdHex)
	assert.False(t, pool.Contains(txIdHex))
	assert.Equal(t, 0, pool.Len())
}

func TestBlockInTransitQueue(t *testing.T) {
	transit := NewBlockInTransit()
	assert.Equal(t, 0, transit.Len())
	_, ok := transit.First()
	assert.False(t, ok)

	hashes := [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}
	transit.AddBlocks(hashes)
	assert.Equal(t, 3, transit.Len())

	first, ok := transit.First()
	require.True(t, ok)
	assert.Equal(t, []byte("aa"), first)

	// removal keeps the queue order of the remaining hashes
	transit.Remove([]byte("aa"))
	first, ok = transit.First()
	require.True(t, ok)
	assert.Equal(t, []byte("bb"), first)

	// removing an unknown hash is a no-op
	transit.Remove([]byte("zz"))
	assert.Equal(t, 2, transit.Len())

	transit.Clear()
	assert.Equal(t, 0, transit.Len())
}

func TestBlockInTransitCopiesHashes(t *testing.T) {
	transit := NewBlockInTransit()
	hash := []byte("mutable")
	transit.AddBlocks([][]byte{hash})

	hash[0] = 'X'
	first, ok := transit.First()
	require.True(t, ok)
	assert.Equal(t, []byte("mutable"), first)
}
