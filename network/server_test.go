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
	`encoding/json`
	`net`
	`os`
	`testing`
	`time`

	`github.com/stretchr/testify/assert`
	`github.com/stretchr/testify/require`

	`tinyChain/core`
)

// newTestServer builds a server over a fresh chain living in a temporary working
// directory. The genesis reward goes to a newly created wallet.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(origDir))
	})

	wallets, err := core.NewWallets()
	require.NoError(t, err)
	addr, err := wallets.CreateWallet()
	require.NoError(t, err)

	chain, err := core.CreateBlockChain(addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, chain.Db.Close())
	})

	utxoSet := core.UTXOSet{BlockChain: chain}
	utxoSet.Reindex()

	return NewServer(chain, core.NewConfig()), addr
}

// startCapture accepts connections on a loopback port and funnels every decoded
// package into the returned channel.
func startCapture(t *testing.T) (string, <-chan Package) {
	t.Helper()

	listener, err := net.Listen(protocol, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	received := make(chan Package, 16)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				decoder := json.NewDecoder(conn)
				for {
					var pkg Package
					if decoder.Decode(&pkg) != nil {
						return
					}
					received <- pkg
				}
			}(conn)
		}
	}()

	return listener.Addr().String(), received
}

func awaitPackage(t *testing.T, received <-chan Package) Package {
	t.Helper()
	select {
	case pkg := <-received:
		return pkg
	case <-time.After(2 * time.Second):
		t.Fatal("no package arrived")
		return Package{}
	}
}

func TestHandleVersionAsksForBlocksWhenBehind(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, _ := newTestServer(t)
	peerAddr, received := startCapture(t)

	err := server.handleVersion("10.0.0.1:9999", &VersionPayload{
		AddrFrom:   peerAddr,
		Version:    nodeVersion,
		BestHeight: 5,
	})
	require.NoError(t, err)

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.GetBlocks)
	assert.Equal(t, server.config.GetNodeAddr(), pkg.GetBlocks.AddrFrom)

	// the observed TCP address was unknown, so the announced address was learned
	assert.True(t, server.nodes.NodeIsKnown(peerAddr))
}

func TestHandleVersionAnnouncesBackWhenAhead(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, addr := newTestServer(t)
	server.chain.MineBlock([]*core.Transaction{core.NewCoinbaseTx(addr)})
	peerAddr, received := startCapture(t)

	err := server.handleVersion(peerAddr, &VersionPayload{
		AddrFrom:   peerAddr,
		Version:    nodeVersion,
		BestHeight: 0,
	})
	require.NoError(t, err)

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.Version)
	assert.Equal(t, 1, pkg.Version.BestHeight)
}

func TestHandleGetBlocksSendsInventory(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, _ := newTestServer(t)
	peerAddr, received := startCapture(t)

	require.NoError(t, server.handleGetBlocks(&GetBlocksPayload{AddrFrom: peerAddr}))

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.Inv)
	assert.Equal(t, OpTypeBlock, pkg.Inv.OpType)
	require.Len(t, pkg.Inv.Items, 1)
	assert.Equal(t, []byte(server.chain.GetTipHash()), pkg.Inv.Items[0])
}

func TestHandleInvBlockRequestsFirstItem(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, _ := newTestServer(t)
	peerAddr, received := startCapture(t)

	items := [][]byte{[]byte("hash-one"), []byte("hash-two")}
	require.NoError(t, server.handleInv(&InvPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeBlock,
		Items:    items,
	}))

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.GetData)
	assert.Equal(t, OpTypeBlock, pkg.GetData.OpType)
	assert.Equal(t, []byte("hash-one"), pkg.GetData.Id)

	// the requested hash was removed from the queue again
	assert.Equal(t, 1, server.transit.Len())
	first, ok := server.transit.First()
	require.True(t, ok)
	assert.Equal(t, []byte("hash-two"), first)
}

func TestHandleInvTxFetchesUnknownTransaction(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, addr := newTestServer(t)
	peerAddr, received := startCapture(t)

	tx := core.NewCoinbaseTx(addr)
	require.NoError(t, server.handleInv(&InvPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeTx,
		Items:    [][]byte{tx.Id},
	}))

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.GetData)
	assert.Equal(t, OpTypeTx, pkg.GetData.OpType)
	assert.Equal(t, tx.Id, pkg.GetData.Id)

	// a pooled transaction is not fetched again
	server.memPool.Add(*tx)
	require.NoError(t, server.handleInv(&InvPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeTx,
		Items:    [][]byte{tx.Id},
	}))
	select {
	case pkg := <-received:
		t.Fatalf("unexpected package: %+v", pkg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleGetDataServesBlockAndTx(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, addr := newTestServer(t)
	peerAddr, received := startCapture(t)

	require.NoError(t, server.handleGetData(&GetDataPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeBlock,
		Id:       []byte(server.chain.GetTipHash()),
	}))
	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.Block)
	block, err := core.DeserializeBlock(pkg.Block.Block)
	require.NoError(t, err)
	assert.Equal(t, server.chain.GetTipHash(), block.Hash)

	tx := core.NewCoinbaseTx(addr)
	server.memPool.Add(*tx)
	require.NoError(t, server.handleGetData(&GetDataPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeTx,
		Id:       tx.Id,
	}))
	pkg = awaitPackage(t, received)
	require.NotNil(t, pkg.Tx)
	decoded, err := core.DeserializeTx(pkg.Tx.Transaction)
	require.NoError(t, err)
	assert.Equal(t, tx.Id, decoded.Id)

	// an unknown block id is silently ignored
	require.NoError(t, server.handleGetData(&GetDataPayload{
		AddrFrom: peerAddr,
		OpType:   OpTypeBlock,
		Id:       []byte("no such block"),
	}))
	select {
	case pkg := <-received:
		t.Fatalf("unexpected package: %+v", pkg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleBlockPersistsAndReindexes(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, addr := newTestServer(t)

	newBlock := core.NewBlock(server.chain.GetTipHash(), []*core.Transaction{core.NewCoinbaseTx(addr)}, 1)
	require.NoError(t, server.handleBlock(&BlockPayload{
		AddrFrom: "127.0.0.1:3001",
		Block:    newBlock.Serialize(),
	}))

	assert.Equal(t, newBlock.Hash, server.chain.GetTipHash())
	assert.Equal(t, 1, server.chain.GetBestHeight())

	// with an empty transit queue the UTXO set was rebuilt against the new tip
	utxoSet := core.UTXOSet{BlockChain: server.chain}
	assert.Equal(t, 2, utxoSet.CountTxs())
}

func TestHandleTxGossipsOnCentralNode(t *testing.T) {
	require.NoError(t, os.Unsetenv("NODE_ADDRESS"))
	server, addr := newTestServer(t)
	require.Equal(t, CentralNode, server.config.GetNodeAddr())

	peerAddr, received := startCapture(t)
	server.nodes.AddNode(peerAddr)

	tx := core.NewCoinbaseTx(addr)
	require.NoError(t, server.handleTx(&TxPayload{
		AddrFrom:    "127.0.0.1:3001",
		Transaction: tx.Serialize(),
	}))

	assert.True(t, server.memPool.Contains(hex.EncodeToString(tx.Id)))

	pkg := awaitPackage(t, received)
	require.NotNil(t, pkg.Inv)
	assert.Equal(t, OpTypeTx, pkg.Inv.OpType)
	require.Len(t, pkg.Inv.Items, 1)
	assert.Equal(t, tx.Id, pkg.Inv.Items[0])
}

func TestHandleTxDoesNotGossipOnOrdinaryNode(t *testing.T) {
	require.NoError(t, os.Setenv("NODE_ADDRESS", "127.0.0.1:3001"))
	defer os.Unsetenv("NODE_ADDRESS")

	server, addr := newTestServer(t)
	peerAddr, received := startCapture(t)
	server.nodes.AddNode(peerAddr)

	tx := core.NewCoinbaseTx(addr)
	require.NoError(t, server.handleTx(&TxPayload{
		AddrFrom:    "127.0.0.1:4001",
		Transaction: tx.Serialize(),
	}))

	assert.True(t, server.memPool.Contains(hex.EncodeToString(tx.Id)))
	select {
	case pkg := <-received:
		t.Fatalf("unexpected package: %+v", pkg)
	case <-time.After(100 * time.Millisecond):
	}
}
