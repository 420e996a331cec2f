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

/*
This package implements a simplified bitcoin-style p2p network:
	- the central node (the hardcoded seed at 127.0.0.1:2001) keeps the reference
	  copy of the chain and gossips transactions to every other known node;
	- every other node announces its tip height to the seed at startup and pulls
	  missing blocks through the getblocks / inv / getdata handshake;
	- transactions built with `send` (without local mining) travel to the seed and
	  from there to the rest of the network.
*/
package network

import (
	`bufio`
	`encoding/hex`
	`encoding/json`
	`fmt`
	`log`
	`net`
	`os`
	`runtime`
	`syscall`

	`github.com/pkg/errors`
	death `github.com/vrecan/death/v3`

	`tinyChain/core`
)

// Server runs the protocol state machine over one local chain. Its collaborators
// (peer set, memory pool, in-transit queue) are owned by the server instance and
// shared across connection handlers.
type Server struct {
	chain   *core.BlockChain
	config  *core.Config
	nodes   *Nodes
	memPool *MemoryPool
	transit *BlockInTransit
}

// NewServer wires a server around the given chain and configuration. The peer set
// starts with the seed node.
func NewServer(chain *core.BlockChain, config *core.Config) *Server {
	nodes := NewNodes()
	nodes.AddNode(CentralNode)

	return &Server{
		chain:   chain,
		config:  config,
		nodes:   nodes,
		memPool: NewMemoryPool(),
		transit: NewBlockInTransit(),
	}
}

// Run binds the listener and serves connections until the process dies. A node
// that is not the seed announces its tip height to the seed first.
func (server *Server) Run() error {
	nodeAddr := server.config.GetNodeAddr()
	listener, err := net.Listen(protocol, nodeAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", nodeAddr)
	}

	go server.closeDbOnShutdown()

	if nodeAddr != CentralNode {
		if err := server.sendVersion(CentralNode, server.chain.GetBestHeight()); err != nil {
			return err
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "accept connection")
		}
		go server.serve(conn)
	}
}

// closeDbOnShutdown closes the block store when the process is signalled, so a
// Ctrl-C cannot leave the db file locked.
func (server *Server) closeDbOnShutdown() {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		defer os.Exit(1)
		defer runtime.Goexit()
		if err := server.chain.Db.Close(); err != nil {
			log.Println(err)
		}
	})
}

// serve reads a stream of JSON-encoded packages from one connection and
// dispatches them in arrival order. A handler error or malformed input ends the
// connection; the node keeps serving others.
func (server *Server) serve(conn net.Conn) {
	defer conn.Close()

	peerAddr := conn.RemoteAddr().String()
	decoder := json.NewDecoder(bufio.NewReader(conn))

	for {
		var pkg Package
		if err := decoder.Decode(&pkg); err != nil {
			return
		}

		var err error
		switch {
		case pkg.Version != nil:
			err = server.handleVersion(peerAddr, pkg.Version)
		case pkg.GetBlocks != nil:
			err = server.handleGetBlocks(pkg.GetBlocks)
		case pkg.Inv != nil:
			err = server.handleInv(pkg.Inv)
		case pkg.GetData != nil:
			err = server.handleGetData(pkg.GetData)
		case pkg.Block != nil:
			err = server.handleBlock(pkg.Block)
		case pkg.Tx != nil:
			err = server.handleTx(pkg.Tx)
		default:
			err = errors.New("package carries no known variant")
		}
		if err != nil {
			log.Printf("error handling request from %s: %v", peerAddr, err)
			return
		}
	}
}

// handleVersion compares tip heights: the lower side asks for blocks, the higher
// side announces its own version back. The sender becomes a known peer when the
// observed TCP address is new.
func (server *Server) handleVersion(peerAddr string, payload *VersionPayload) error {
	localHeight := server.chain.GetBestHeight()
	if localHeight < payload.BestHeight {
		if err := server.sendGetBlocks(payload.AddrFrom); err != nil {
			return err
		}
	}
	if localHeight > payload.BestHeight {
		if err := server.sendVersion(payload.AddrFrom, localHeight); err != nil {
			return err
		}
	}

	if !server.nodes.NodeIsKnown(peerAddr) {
		server.nodes.AddNode(payload.AddrFrom)
	}
	return nil
}

// handleGetBlocks answers with the full list of local block hashes.
func (server *Server) handleGetBlocks(payload *GetBlocksPayload) error {
	return server.sendInv(payload.AddrFrom, OpTypeBlock, server.chain.GetBlockHashes())
}

// handleInv reacts to advertised object ids. For blocks the whole batch is queued
// and the first item requested right away; for transactions the first advertised
// id is fetched unless it is already pooled.
func (server *Server) handleInv(payload *InvPayload) error {
	fmt.Printf("Received inventory with %d %s(s)\n", len(payload.Items), payload.OpType)

	switch payload.OpType {
	case OpTypeBlock:
		server.transit.AddBlocks(payload.Items)

		if len(payload.Items) > 0 {
			blockHash := payload.Items[0]
			if err := server.sendGetData(payload.AddrFrom, OpTypeBlock, blockHash); err != nil {
				return err
			}
			server.transit.Remove(blockHash)
		}
	case OpTypeTx:
		if len(payload.Items) == 0 {
			return errors.New("inv carries no transaction id")
		}
		txId := payload.Items[0]
		if !server.memPool.Contains(hex.EncodeToString(txId)) {
			return server.sendGetData(payload.AddrFrom, OpTypeTx, txId)
		}
	}
	return nil
}

// handleGetData serves a single requested object from the block store or the
// memory pool. An unknown id is silently ignored.
func (server *Server) handleGetData(payload *GetDataPayload) error {
	switch payload.OpType {
	case OpTypeBlock:
		block, err := server.chain.GetBlock(payload.Id)
		if err != nil {
			return err
		}
		if block != nil {
			return server.sendBlock(payload.AddrFrom, block)
		}
	case OpTypeTx:
		if tx, ok := server.memPool.Get(hex.EncodeToString(payload.Id)); ok {
			return server.sendTx(payload.AddrFrom, &tx)
		}
	}
	return nil
}

// handleBlock persists a received block and keeps the sync handshake going: while
// block hashes remain in transit the next one is requested from the same peer;
// once the queue drains the UTXO set is rebuilt against the new tip.
func (server *Server) handleBlock(payload *BlockPayload) error {
	block, err := core.DeserializeBlock(payload.Block)
	if err != nil {
		return err
	}
	if err := server.chain.AddBlock(block); err != nil {
		return err
	}
	fmt.Printf("Added block %s\n", block.Hash)

	if server.transit.Len() > 0 {
		if blockHash, ok := server.transit.First(); ok {
			if err := server.sendGetData(payload.AddrFrom, OpTypeBlock, blockHash); err != nil {
				return err
			}
			server.transit.Remove(blockHash)
		}
	} else {
		utxoSet := core.UTXOSet{BlockChain: server.chain}
		utxoSet.Reindex()
	}
	return nil
}

// handleTx pools a received transaction. The seed node additionally gossips the
// txid to every known peer other than itself and the sender. Pooled transactions
// are only stored; the server never packs them into a block.
func (server *Server) handleTx(payload *TxPayload) error {
	tx, err := core.DeserializeTx(payload.Transaction)
	if err != nil {
		return err
	}
	txId := tx.Id
	server.memPool.Add(tx)

	nodeAddr := server.config.GetNodeAddr()
	if nodeAddr == CentralNode {
		for _, node := range server.nodes.GetNodes() {
			if node == nodeAddr || node == payload.AddrFrom {
				continue
			}
			if err := server.sendInv(node, OpTypeTx, [][]byte{txId}); err != nil {
				return err
			}
		}
	}
	return nil
}

/* The outbound side: every send dials a fresh stream to its target. */

func (server *Server) sendVersion(dstAddr string, height int) error {
	return sendData(server.nodes, dstAddr, &Package{Version: &VersionPayload{
		AddrFrom:   server.config.GetNodeAddr(),
		Version:    nodeVersion,
		BestHeight: height,
	}})
}

func (server *Server) sendGetBlocks(dstAddr string) error {
	return sendData(server.nodes, dstAddr, &Package{GetBlocks: &GetBlocksPayload{
		AddrFrom: server.config.GetNodeAddr(),
	}})
}

func (server *Server) sendInv(dstAddr string, opType OpType, items [][]byte) error {
	return sendData(server.nodes, dstAddr, &Package{Inv: &InvPayload{
		AddrFrom: server.config.GetNodeAddr(),
		OpType:   opType,
		Items:    items,
	}})
}

func (server *Server) sendGetData(dstAddr string, opType OpType, id []byte) error {
	return sendData(server.nodes, dstAddr, &Package{GetData: &GetDataPayload{
		AddrFrom: server.config.GetNodeAddr(),
		OpType:   opType,
		Id:       id,
	}})
}

func (server *Server) sendBlock(dstAddr string, block *core.Block) error {
	return sendData(server.nodes, dstAddr, &Package{Block: &BlockPayload{
		AddrFrom: server.config.GetNodeAddr(),
		Block:    block.Serialize(),
	}})
}

func (server *Server) sendTx(dstAddr string, tx *core.Transaction) error {
	return sendData(server.nodes, dstAddr, &Package{Tx: &TxPayload{
		AddrFrom:    server.config.GetNodeAddr(),
		Transaction: tx.Serialize(),
	}})
}
